// Package mirror reconciles forge repositories with their mirrors on the
// host platform.
//
// The forge is the only source of truth for whether a mirror exists; the
// host is a write target. Every repository goes through
//
//	Fetching -> Checking -> (Skip | Creating -> Authorizing -> Linking) -> Done
//
// and ends in exactly one Result. Batches are processed sequentially in the
// order the forge returned them.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
	"github.com/CosmoTheDev/forgemirror/internal/host"
)

// ForgeClient is the subset of the Conduit client the reconciler uses.
type ForgeClient interface {
	Repositories(ctx context.Context, constraint string, values []any) ([]forge.Repository, error)
	Passphrases(ctx context.Context, ids []string) ([]forge.Passphrase, error)
	CreateMirrorLink(ctx context.Context, link forge.MirrorLink) (string, error)
	QueryRepositoryPHIDs(ctx context.Context, queryKey string) ([]string, error)
}

// HostClient writes repositories on the destination platform.
type HostClient interface {
	Create(ctx context.Context, repo host.Repo) error
	Update(ctx context.Context, repo host.Repo) error
}

// State is a step of the per-repository state machine.
type State string

const (
	StateFetching    State = "fetching"
	StateChecking    State = "checking"
	StateCreating    State = "creating"
	StateAuthorizing State = "authorizing"
	StateLinking     State = "linking"
	StateDone        State = "done"
)

// Settings is the process-wide configuration of a Reconciler.
type Settings struct {
	// ForgeURL is the forge base address used for canonical URLs.
	ForgeURL string
	Target   Target
	// Marker is the substring of an existing mirror URI (e.g. github.com).
	Marker string
}

// Options controls one reconciliation.
type Options struct {
	// CredentialID is the passphrase id authorising pushes to the host.
	CredentialID string
	// BypassExisting proceeds even when a mirror is already declared.
	BypassExisting bool
	// DryRun performs every read and decision but no write.
	DryRun bool
	// SkipHost leaves the host untouched and only writes the forge link.
	SkipHost  bool
	Overrides Overrides
}

// Reconciler drives reconciliation against a forge and a host.
type Reconciler struct {
	forge    ForgeClient
	host     HostClient
	settings Settings
}

// New returns a Reconciler.
func New(f ForgeClient, h HostClient, s Settings) *Reconciler {
	return &Reconciler{forge: f, host: h, settings: s}
}

// Reconcile ensures id is mirrored on the host and reports the outcome.
func (r *Reconciler) Reconcile(ctx context.Context, id Identifier, opts Options) Result {
	res := Result{Repo: id.String(), DryRun: opts.DryRun}
	d, err := r.Mirror(ctx, id, opts)
	var skip *SkipError
	switch {
	case errors.As(err, &skip):
		res.Kind = OutcomeSkipped
		res.Reason = skip.Reason()
		slog.Info("mirror skipped", "repo", res.Repo, "reason", res.Reason)
	case err != nil:
		res.Kind = OutcomeFailed
		res.Err = err
		slog.Warn("mirror failed", "repo", res.Repo, "kind", KindOf(err), "error", err)
	default:
		res.Kind = OutcomeMirrored
		res.Descriptor = &d
		slog.Info("mirror reconciled", "repo", res.Repo, "mirror", d.MirrorURL, "dry_run", opts.DryRun)
	}
	return res
}

// Mirror runs one reconciliation and returns the descriptor it acted on.
// A repository that already carries a mirror yields a *SkipError matching
// ErrSkipped and no writes.
func (r *Reconciler) Mirror(ctx context.Context, id Identifier, opts Options) (Descriptor, error) {
	trace(id, StateFetching)
	repo, err := r.fetch(ctx, id)
	if err != nil {
		return Descriptor{}, err
	}
	if !repo.IsPublic() {
		return Descriptor{}, &Error{
			Kind: KindPolicy,
			Repo: id.String(),
			Err:  fmt.Errorf("view policy is %q", repo.ViewPolicy),
		}
	}

	trace(id, StateChecking)
	d, derr := BuildDescriptor(repo, r.settings.ForgeURL, r.settings.Target, opts.Overrides)
	if !opts.BypassExisting {
		if addr, ok := existingMirror(repo, r.settings.Marker, d.MirrorURL); ok {
			return Descriptor{}, &SkipError{Repo: id.String(), Address: addr}
		}
	}
	if derr != nil {
		return Descriptor{}, derr
	}

	if !opts.DryRun && !opts.SkipHost {
		trace(id, StateCreating)
		if err := r.createOrUpdate(ctx, id, d); err != nil {
			return Descriptor{}, err
		}
	}

	trace(id, StateAuthorizing)
	credential, err := r.resolveCredential(ctx, id, opts.CredentialID)
	if err != nil {
		return Descriptor{}, err
	}

	trace(id, StateLinking)
	switch {
	case linkPresent(repo, d.MirrorURL):
		slog.Debug("mirror link already present", "repo", id.String(), "uri", d.MirrorURL)
	case !opts.DryRun:
		link := forge.MirrorLink{RepositoryPHID: d.PHID, URI: d.MirrorURL, CredentialPHID: credential}
		if _, err := r.forge.CreateMirrorLink(ctx, link); err != nil {
			return Descriptor{}, &Error{Kind: KindLinkWrite, Repo: id.String(), Err: err}
		}
	}

	trace(id, StateDone)
	return d, nil
}

// Update refreshes the host metadata of an already mirrored repository
// without touching its push link.
func (r *Reconciler) Update(ctx context.Context, id Identifier, dryRun bool) Result {
	res := Result{Repo: id.String(), DryRun: dryRun}
	d, err := r.update(ctx, id, dryRun)
	if err != nil {
		res.Kind = OutcomeFailed
		res.Err = err
		slog.Warn("mirror update failed", "repo", res.Repo, "kind", KindOf(err), "error", err)
		return res
	}
	res.Kind = OutcomeUpdated
	res.Descriptor = &d
	slog.Info("mirror metadata updated", "repo", res.Repo, "name", d.Name, "dry_run", dryRun)
	return res
}

func (r *Reconciler) update(ctx context.Context, id Identifier, dryRun bool) (Descriptor, error) {
	repo, err := r.fetch(ctx, id)
	if err != nil {
		return Descriptor{}, err
	}
	if !repo.IsPublic() {
		return Descriptor{}, &Error{
			Kind: KindPolicy,
			Repo: id.String(),
			Err:  fmt.Errorf("view policy is %q", repo.ViewPolicy),
		}
	}
	d, err := BuildDescriptor(repo, r.settings.ForgeURL, r.settings.Target, Overrides{})
	if err != nil {
		return Descriptor{}, err
	}
	if !dryRun {
		if err := r.host.Update(ctx, hostRepo(d)); err != nil {
			return Descriptor{}, remoteWriteError(id.String(), host.ActionUpdate, err)
		}
	}
	return d, nil
}

// Describe fetches id and derives its descriptor without any policy or
// existence decision.
func (r *Reconciler) Describe(ctx context.Context, id Identifier) (forge.Repository, Descriptor, error) {
	repo, err := r.fetch(ctx, id)
	if err != nil {
		return forge.Repository{}, Descriptor{}, err
	}
	d, err := BuildDescriptor(repo, r.settings.ForgeURL, r.settings.Target, Overrides{})
	return repo, d, err
}

func (r *Reconciler) fetch(ctx context.Context, id Identifier) (forge.Repository, error) {
	if id.IsZero() {
		return forge.Repository{}, &Error{Kind: KindDescriptor, Err: fmt.Errorf("empty repository identifier")}
	}
	repos, err := r.forge.Repositories(ctx, id.Constraint(), []any{id.Value()})
	if err != nil {
		return forge.Repository{}, fmt.Errorf("fetching repository %s: %w", id, err)
	}
	if len(repos) == 0 {
		return forge.Repository{}, &Error{
			Kind: KindDescriptor,
			Repo: id.String(),
			Err:  fmt.Errorf("no repository matches %s %q", id.Constraint(), id.String()),
		}
	}
	return repos[0], nil
}

// createOrUpdate creates the host repository, falling back to an update when
// the name is already taken.
func (r *Reconciler) createOrUpdate(ctx context.Context, id Identifier, d Descriptor) error {
	repo := hostRepo(d)
	err := r.host.Create(ctx, repo)
	if err == nil {
		return nil
	}
	if !host.IsAlreadyExists(err) {
		return remoteWriteError(id.String(), host.ActionCreate, err)
	}
	slog.Debug("host repository exists, updating", "name", d.Name)
	if err := r.host.Update(ctx, repo); err != nil {
		return remoteWriteError(id.String(), host.ActionUpdate, err)
	}
	return nil
}

// resolveCredential maps a passphrase id to its PHID, taking the first entry
// of the response.
func (r *Reconciler) resolveCredential(ctx context.Context, id Identifier, ref string) (string, error) {
	if ref == "" {
		return "", &Error{Kind: KindCredential, Repo: id.String(), Err: fmt.Errorf("no credential id given")}
	}
	entries, err := r.forge.Passphrases(ctx, []string{ref})
	if err != nil {
		return "", &Error{Kind: KindCredential, Repo: id.String(), Err: err}
	}
	if len(entries) == 0 || entries[0].PHID == "" {
		return "", &Error{Kind: KindCredential, Repo: id.String(), Err: fmt.Errorf("passphrase %s not found", ref)}
	}
	return entries[0].PHID, nil
}

func hostRepo(d Descriptor) host.Repo {
	return host.Repo{Name: d.Name, Description: d.Description, Homepage: d.URL}
}

func trace(id Identifier, s State) {
	slog.Debug("reconcile", "repo", id.String(), "state", s)
}
