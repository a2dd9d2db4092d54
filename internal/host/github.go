package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHub implements Client for GitHub and GitHub Enterprise organisations.
type GitHub struct {
	client *gogithub.Client
	org    string
}

// NewGitHub creates a GitHub client from the given configuration.
func NewGitHub(cfg config.HostConfig) (*GitHub, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeoutOf(cfg)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if cfg.APIURL != "" && !strings.Contains(cfg.APIURL, "api.github.com") {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}
	return &GitHub{client: client, org: cfg.Org}, nil
}

func (g *GitHub) Name() string { return config.ProviderGitHub }

func (g *GitHub) Create(ctx context.Context, repo Repo) error {
	_, resp, err := g.client.Repositories.Create(ctx, g.org, g.settings(repo))
	if err != nil {
		return &WriteError{
			Action: ActionCreate,
			Status: responseStatus(resp),
			Exists: nameTaken(err),
			Err:    fmt.Errorf("creating %s/%s on GitHub: %w", g.org, repo.Name, err),
		}
	}
	return nil
}

func (g *GitHub) Update(ctx context.Context, repo Repo) error {
	_, resp, err := g.client.Repositories.Edit(ctx, g.org, repo.Name, g.settings(repo))
	if err != nil {
		return &WriteError{
			Action: ActionUpdate,
			Status: responseStatus(resp),
			Err:    fmt.Errorf("updating %s/%s on GitHub: %w", g.org, repo.Name, err),
		}
	}
	return nil
}

func (g *GitHub) Login(ctx context.Context) (string, error) {
	u, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("fetching authenticated GitHub user: %w", err)
	}
	return u.GetLogin(), nil
}

func (g *GitHub) settings(repo Repo) *gogithub.Repository {
	return &gogithub.Repository{
		Name:         gogithub.Ptr(repo.Name),
		Description:  gogithub.Ptr(repo.Description),
		Homepage:     gogithub.Ptr(repo.Homepage),
		Private:      gogithub.Ptr(false),
		HasIssues:    gogithub.Ptr(false),
		HasWiki:      gogithub.Ptr(false),
		HasDownloads: gogithub.Ptr(true),
	}
}

// nameTaken recognises GitHub's validation failure for an existing name.
func nameTaken(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, e := range ghErr.Errors {
		if strings.Contains(e.Message, "already exists") {
			return true
		}
	}
	return strings.Contains(ghErr.Message, "already exists")
}

func responseStatus(resp *gogithub.Response) int {
	if resp == nil {
		return 0
	}
	return statusOf(resp.Response)
}
