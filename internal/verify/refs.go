// Package verify compares the branches and tags of a forge repository
// with those of its mirror.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Refs maps reference names (refs/heads/..., refs/tags/...) to object ids.
type Refs map[string]string

// Lister lists the references advertised by a remote.
type Lister interface {
	List(ctx context.Context, remoteURL string) (Refs, error)
}

// GitLister lists references with go-git, without cloning.
type GitLister struct {
	// tokens maps a hostname to the token sent as HTTP basic auth.
	tokens map[string]string
}

// NewGitLister returns a lister authenticating to the given hosts.
func NewGitLister(tokens map[string]string) *GitLister {
	return &GitLister{tokens: tokens}
}

func (g *GitLister) List(ctx context.Context, remoteURL string) (Refs, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})
	opts := &gogit.ListOptions{}
	if token := g.tokenFor(remoteURL); token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "forgemirror", Password: token}
	}

	slog.Debug("listing remote refs", "url", remoteURL)
	advertised, err := remote.ListContext(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", remoteURL, err)
	}
	refs := make(Refs, len(advertised))
	for _, ref := range advertised {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		name := ref.Name()
		if !name.IsBranch() && !name.IsTag() {
			continue
		}
		refs[name.String()] = ref.Hash().String()
	}
	return refs, nil
}

func (g *GitLister) tokenFor(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	return g.tokens[u.Hostname()]
}

// PublicURL turns an SSH mirror address (git@github.com:Org/name.git) into
// its anonymous HTTPS form. Other addresses are returned unchanged.
func PublicURL(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	at := strings.Index(address, "@")
	colon := strings.Index(address, ":")
	if colon == -1 || colon < at {
		return address
	}
	return "https://" + address[at+1:colon] + "/" + address[colon+1:]
}
