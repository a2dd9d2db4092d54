package host

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLab implements Client for GitLab groups (cloud and self-hosted).
// GitLab has no homepage field, so the canonical URL is folded into the
// description.
type GitLab struct {
	client *gitlab.Client
	group  string
}

// NewGitLab creates a GitLab client from the given configuration.
func NewGitLab(cfg config.HostConfig) (*GitLab, error) {
	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(&http.Client{Timeout: timeoutOf(cfg)}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.APIURL))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLab{client: client, group: cfg.Org}, nil
}

func (g *GitLab) Name() string { return config.ProviderGitLab }

func (g *GitLab) Create(ctx context.Context, repo Repo) error {
	group, resp, err := g.client.Groups.GetGroup(g.group, nil, gitlab.WithContext(ctx))
	if err != nil {
		return &WriteError{
			Action: ActionCreate,
			Status: gitlabStatus(resp),
			Err:    fmt.Errorf("resolving GitLab group %s: %w", g.group, err),
		}
	}
	_, resp, err = g.client.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:              gitlab.Ptr(repo.Name),
		Path:              gitlab.Ptr(repo.Name),
		NamespaceID:       gitlab.Ptr(group.ID),
		Description:       gitlab.Ptr(g.description(repo)),
		Visibility:        gitlab.Ptr(gitlab.PublicVisibility),
		IssuesAccessLevel: gitlab.Ptr(gitlab.DisabledAccessControl),
		WikiAccessLevel:   gitlab.Ptr(gitlab.DisabledAccessControl),
	}, gitlab.WithContext(ctx))
	if err != nil {
		status := gitlabStatus(resp)
		return &WriteError{
			Action: ActionCreate,
			Status: status,
			Exists: status == http.StatusBadRequest && strings.Contains(err.Error(), "has already been taken"),
			Err:    fmt.Errorf("creating %s/%s on GitLab: %w", g.group, repo.Name, err),
		}
	}
	return nil
}

func (g *GitLab) Update(ctx context.Context, repo Repo) error {
	pid := g.group + "/" + repo.Name
	_, resp, err := g.client.Projects.EditProject(pid, &gitlab.EditProjectOptions{
		Description:       gitlab.Ptr(g.description(repo)),
		Visibility:        gitlab.Ptr(gitlab.PublicVisibility),
		IssuesAccessLevel: gitlab.Ptr(gitlab.DisabledAccessControl),
		WikiAccessLevel:   gitlab.Ptr(gitlab.DisabledAccessControl),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return &WriteError{
			Action: ActionUpdate,
			Status: gitlabStatus(resp),
			Err:    fmt.Errorf("updating GitLab project %s: %w", pid, err),
		}
	}
	return nil
}

func (g *GitLab) Login(ctx context.Context) (string, error) {
	u, _, err := g.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching authenticated GitLab user: %w", err)
	}
	return u.Username, nil
}

func (g *GitLab) description(repo Repo) string {
	if repo.Homepage == "" {
		return repo.Description
	}
	return fmt.Sprintf("%s (%s)", repo.Description, repo.Homepage)
}

func gitlabStatus(resp *gitlab.Response) int {
	if resp == nil {
		return 0
	}
	return statusOf(resp.Response)
}
