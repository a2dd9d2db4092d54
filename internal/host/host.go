// Package host writes mirror repositories to the destination platform.
package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
)

// Action names the write attempted against the host.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Repo is the metadata written to a mirror repository. Mirrors are always
// public with issues and wiki disabled and downloads enabled.
type Repo struct {
	Name        string
	Description string
	Homepage    string
}

// Client abstracts the destination platform.
type Client interface {
	// Name identifies the provider ("github", "gitlab").
	Name() string

	// Create creates the repository in the configured organisation.
	Create(ctx context.Context, repo Repo) error

	// Update rewrites the metadata of an existing repository.
	Update(ctx context.Context, repo Repo) error

	// Login returns the account the token authenticates as.
	Login(ctx context.Context) (string, error)
}

// WriteError is a rejected create or update.
type WriteError struct {
	Action Action
	Status int
	// Exists is set when a create was rejected because the name is taken.
	Exists bool
	Err    error
}

func (e *WriteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s failed (status %d): %v", e.Action, e.Status, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is a create rejected because the
// repository already exists.
func IsAlreadyExists(err error) bool {
	var we *WriteError
	return errors.As(err, &we) && we.Exists
}

// New returns the Client for cfg.Provider.
func New(cfg config.HostConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGitHub, "":
		return NewGitHub(cfg)
	case config.ProviderGitLab:
		return NewGitLab(cfg)
	default:
		return nil, fmt.Errorf("unsupported host provider %q", cfg.Provider)
	}
}

func timeoutOf(cfg config.HostConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
