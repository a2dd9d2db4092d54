package mirror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
	"github.com/CosmoTheDev/forgemirror/internal/host"
)

type fakeForge struct {
	repos       map[string]forge.Repository
	passphrases []forge.Passphrase
	query       []string
	queryErr    error
	fetchErr    map[string]error
	linkErr     error

	fetches     int
	constraints []string
	credCalls   int
	links       []forge.MirrorLink
	queryCalls  int
}

func (f *fakeForge) Repositories(_ context.Context, constraint string, values []any) ([]forge.Repository, error) {
	f.fetches++
	f.constraints = append(f.constraints, constraint)
	key := fmt.Sprint(values[0])
	if err := f.fetchErr[key]; err != nil {
		return nil, err
	}
	repo, ok := f.repos[key]
	if !ok {
		return nil, nil
	}
	return []forge.Repository{repo}, nil
}

func (f *fakeForge) Passphrases(_ context.Context, _ []string) ([]forge.Passphrase, error) {
	f.credCalls++
	return f.passphrases, nil
}

func (f *fakeForge) CreateMirrorLink(_ context.Context, link forge.MirrorLink) (string, error) {
	if f.linkErr != nil {
		return "", f.linkErr
	}
	f.links = append(f.links, link)
	return "PHID-RURI-new", nil
}

func (f *fakeForge) QueryRepositoryPHIDs(_ context.Context, _ string) ([]string, error) {
	f.queryCalls++
	return f.query, f.queryErr
}

type fakeHost struct {
	createErr error
	updateErr error
	creates   []host.Repo
	updates   []host.Repo
}

func (h *fakeHost) Create(_ context.Context, repo host.Repo) error {
	h.creates = append(h.creates, repo)
	return h.createErr
}

func (h *fakeHost) Update(_ context.Context, repo host.Repo) error {
	h.updates = append(h.updates, repo)
	return h.updateErr
}

func (h *fakeHost) writes() int { return len(h.creates) + len(h.updates) }

var testSettings = Settings{
	ForgeURL: "https://forge.example/",
	Target:   Target{Org: "Acme", SSHPrefix: "git@github.com"},
	Marker:   "github.com",
}

func acme() forge.Repository {
	return forge.Repository{
		ID:         42,
		PHID:       "PHID-REPO-acme",
		Name:       "Acme tools",
		ShortName:  "acme",
		ViewPolicy: forge.Public,
		URIs: []forge.URI{
			{Effective: "https://forge.example/source/acme.git", IO: "observe"},
		},
	}
}

func newFixture(repos ...forge.Repository) (*fakeForge, *fakeHost, *Reconciler) {
	f := &fakeForge{
		repos: map[string]forge.Repository{},
		passphrases: []forge.Passphrase{
			{ID: "2", PHID: "PHID-CDTL-two"},
		},
	}
	for _, r := range repos {
		f.repos[r.PHID] = r
		f.repos[fmt.Sprint(r.ID)] = r
	}
	h := &fakeHost{}
	return f, h, New(f, h, testSettings)
}

func TestReconcileMirrorsNewRepository(t *testing.T) {
	f, h, r := newFixture(acme())

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if res.Kind != OutcomeMirrored {
		t.Fatalf("outcome = %s (%v), want mirrored", res.Kind, res.Err)
	}
	if len(f.constraints) != 1 || f.constraints[0] != ConstraintIDs {
		t.Errorf("constraints = %v, want [%s]", f.constraints, ConstraintIDs)
	}
	d := res.Descriptor
	if d.URL != "https://forge.example/source/acme/" {
		t.Errorf("url = %q", d.URL)
	}
	if d.MirrorURL != "git@github.com:Acme/acme.git" {
		t.Errorf("mirror url = %q", d.MirrorURL)
	}
	if d.Name != "acme" || d.Description != "Acme tools" || d.PHID != "PHID-REPO-acme" {
		t.Errorf("descriptor = %+v", d)
	}

	if len(h.creates) != 1 || len(h.updates) != 0 {
		t.Fatalf("host writes: %d creates, %d updates", len(h.creates), len(h.updates))
	}
	if got := h.creates[0]; got.Name != "acme" || got.Homepage != d.URL {
		t.Errorf("host repo = %+v", got)
	}
	if len(f.links) != 1 {
		t.Fatalf("links = %d, want 1", len(f.links))
	}
	want := forge.MirrorLink{RepositoryPHID: "PHID-REPO-acme", URI: d.MirrorURL, CredentialPHID: "PHID-CDTL-two"}
	if f.links[0] != want {
		t.Errorf("link = %+v, want %+v", f.links[0], want)
	}
}

func TestReconcileSkipsExistingMirror(t *testing.T) {
	repo := acme()
	repo.URIs = append(repo.URIs, forge.URI{Effective: "git@github.com:Other/acme.git", IO: "mirror"})
	f, h, r := newFixture(repo)

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if res.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", res.Kind)
	}
	if h.writes() != 0 || len(f.links) != 0 || f.credCalls != 0 {
		t.Errorf("skip performed writes: host=%d links=%d creds=%d", h.writes(), len(f.links), f.credCalls)
	}
	if res.Reason == "" {
		t.Error("skip without reason")
	}
}

func TestReconcileBypassExisting(t *testing.T) {
	repo := acme()
	repo.URIs = append(repo.URIs, forge.URI{Effective: "git@github.com:Other/acme.git", IO: "mirror"})
	f, h, r := newFixture(repo)

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2", BypassExisting: true})
	if res.Kind != OutcomeMirrored {
		t.Fatalf("outcome = %s (%v), want mirrored", res.Kind, res.Err)
	}
	if len(h.creates) != 1 || len(f.links) != 1 {
		t.Errorf("writes: creates=%d links=%d", len(h.creates), len(f.links))
	}
}

func TestReconcileOwnTargetIsNotAnExistingMirror(t *testing.T) {
	repo := acme()
	repo.URIs = append(repo.URIs, forge.URI{Effective: "git@github.com:Acme/acme.git", IO: "mirror"})
	f, h, r := newFixture(repo)

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if res.Kind != OutcomeMirrored {
		t.Fatalf("outcome = %s (%v), want mirrored", res.Kind, res.Err)
	}
	if len(h.creates) != 1 {
		t.Errorf("creates = %d, want 1", len(h.creates))
	}
	if len(f.links) != 0 {
		t.Errorf("link already attached but %d written", len(f.links))
	}
}

func TestReconcilePolicyViolation(t *testing.T) {
	repo := acme()
	repo.ViewPolicy = "users"
	for _, opts := range []Options{
		{CredentialID: "2"},
		{CredentialID: "2", BypassExisting: true},
		{CredentialID: "2", DryRun: true},
	} {
		f, h, r := newFixture(repo)
		res := r.Reconcile(context.Background(), ID(42), opts)
		if res.Kind != OutcomeFailed || !errors.Is(res.Err, ErrPolicyViolation) {
			t.Fatalf("opts %+v: outcome = %s, err = %v", opts, res.Kind, res.Err)
		}
		if h.writes() != 0 || len(f.links) != 0 {
			t.Errorf("opts %+v: writes after policy violation", opts)
		}
	}
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	f, h, r := newFixture(acme())

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2", DryRun: true})
	if res.Kind != OutcomeMirrored || !res.DryRun {
		t.Fatalf("outcome = %s dry=%v (%v)", res.Kind, res.DryRun, res.Err)
	}
	if h.writes() != 0 || len(f.links) != 0 {
		t.Errorf("dry run wrote: host=%d links=%d", h.writes(), len(f.links))
	}
	if f.credCalls != 1 {
		t.Errorf("credential lookups = %d, want 1", f.credCalls)
	}
	if res.Descriptor.MirrorURL != "git@github.com:Acme/acme.git" {
		t.Errorf("mirror url = %q", res.Descriptor.MirrorURL)
	}
}

func TestReconcileSkipHost(t *testing.T) {
	f, h, r := newFixture(acme())

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2", SkipHost: true})
	if res.Kind != OutcomeMirrored {
		t.Fatalf("outcome = %s (%v)", res.Kind, res.Err)
	}
	if h.writes() != 0 {
		t.Errorf("host writes = %d, want 0", h.writes())
	}
	if len(f.links) != 1 {
		t.Errorf("links = %d, want 1", len(f.links))
	}
}

func TestReconcileCreateFallsBackToUpdate(t *testing.T) {
	f, h, r := newFixture(acme())
	h.createErr = &host.WriteError{Action: host.ActionCreate, Status: 422, Exists: true, Err: errors.New("name already exists")}

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if res.Kind != OutcomeMirrored {
		t.Fatalf("outcome = %s (%v)", res.Kind, res.Err)
	}
	if len(h.updates) != 1 || len(f.links) != 1 {
		t.Errorf("updates=%d links=%d", len(h.updates), len(f.links))
	}
}

func TestReconcileRemoteWriteError(t *testing.T) {
	f, h, r := newFixture(acme())
	h.createErr = &host.WriteError{Action: host.ActionCreate, Status: 403, Err: errors.New("forbidden")}

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if !errors.Is(res.Err, ErrRemoteWrite) {
		t.Fatalf("err = %v, want remote write error", res.Err)
	}
	var me *Error
	if !errors.As(res.Err, &me) || me.Status != 403 || me.Action != host.ActionCreate {
		t.Errorf("error = %+v", me)
	}
	if len(f.links) != 0 || f.credCalls != 0 {
		t.Errorf("continued after host failure: links=%d creds=%d", len(f.links), f.credCalls)
	}
}

func TestReconcileUpdateFallbackFailureReportsUpdate(t *testing.T) {
	_, h, r := newFixture(acme())
	h.createErr = &host.WriteError{Action: host.ActionCreate, Status: 422, Exists: true, Err: errors.New("exists")}
	h.updateErr = &host.WriteError{Action: host.ActionUpdate, Status: 500, Err: errors.New("boom")}

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	var me *Error
	if !errors.As(res.Err, &me) || me.Action != host.ActionUpdate || me.Status != 500 {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestReconcileCredentialErrors(t *testing.T) {
	f, h, r := newFixture(acme())
	res := r.Reconcile(context.Background(), ID(42), Options{})
	if !errors.Is(res.Err, ErrCredential) {
		t.Fatalf("missing credential: err = %v", res.Err)
	}
	if len(f.links) != 0 {
		t.Errorf("link written without credential")
	}
	if len(h.creates) != 1 {
		t.Errorf("host create = %d, want 1 before authorising", len(h.creates))
	}

	f, _, r = newFixture(acme())
	f.passphrases = nil
	res = r.Reconcile(context.Background(), ID(42), Options{CredentialID: "9"})
	if !errors.Is(res.Err, ErrCredential) {
		t.Fatalf("unknown credential: err = %v", res.Err)
	}
}

func TestReconcileCredentialUsesFirstEntry(t *testing.T) {
	f, _, r := newFixture(acme())
	f.passphrases = []forge.Passphrase{
		{ID: "9", PHID: "PHID-CDTL-nine"},
		{ID: "1", PHID: "PHID-CDTL-one"},
	}
	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "9"})
	if res.Failed() {
		t.Fatal(res.Err)
	}
	if got := f.links[0].CredentialPHID; got != "PHID-CDTL-nine" {
		t.Errorf("credential = %q", got)
	}
}

func TestReconcileLinkWriteIsInconsistent(t *testing.T) {
	f, h, r := newFixture(acme())
	f.linkErr = errors.New("conduit said no")

	res := r.Reconcile(context.Background(), ID(42), Options{CredentialID: "2"})
	if !errors.Is(res.Err, ErrLinkWrite) || !Inconsistent(res.Err) {
		t.Fatalf("err = %v, want link write error", res.Err)
	}
	if len(h.creates) != 1 {
		t.Errorf("creates = %d", len(h.creates))
	}
}

func TestReconcileNotFound(t *testing.T) {
	_, h, r := newFixture()
	res := r.Reconcile(context.Background(), ID(7), Options{CredentialID: "2"})
	if KindOf(res.Err) != KindDescriptor {
		t.Fatalf("err = %v, want descriptor error", res.Err)
	}
	if h.writes() != 0 {
		t.Error("host written for missing repository")
	}
}

func TestReconcileSkipPrecedesDescriptorError(t *testing.T) {
	repo := forge.Repository{
		PHID:       "PHID-REPO-anon",
		ViewPolicy: forge.Public,
		URIs:       []forge.URI{{Effective: "git@github.com:Old/thing.git"}},
	}
	_, _, r := newFixture(repo)

	res := r.Reconcile(context.Background(), Name("PHID-REPO-anon"), Options{CredentialID: "2"})
	if res.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %s (%v), want skipped", res.Kind, res.Err)
	}

	res = r.Reconcile(context.Background(), Name("PHID-REPO-anon"), Options{CredentialID: "2", BypassExisting: true})
	if !errors.Is(res.Err, ErrDescriptor) {
		t.Fatalf("err = %v, want descriptor error", res.Err)
	}
}

func TestReconcileOverrides(t *testing.T) {
	f, h, r := newFixture(acme())
	opts := Options{
		CredentialID: "2",
		Overrides:    Overrides{Name: "acme-tools", Description: "Tools", URL: "https://example.org/acme"},
	}
	res := r.Reconcile(context.Background(), ID(42), opts)
	if res.Failed() {
		t.Fatal(res.Err)
	}
	if got := h.creates[0]; got.Name != "acme-tools" || got.Description != "Tools" || got.Homepage != "https://example.org/acme" {
		t.Errorf("host repo = %+v", got)
	}
	if f.links[0].URI != "git@github.com:Acme/acme-tools.git" {
		t.Errorf("link uri = %q", f.links[0].URI)
	}
}

func TestUpdate(t *testing.T) {
	f, h, r := newFixture(acme())

	res := r.Update(context.Background(), ID(42), false)
	if res.Kind != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", res.Kind, res.Err)
	}
	if len(h.updates) != 1 || len(h.creates) != 0 || len(f.links) != 0 {
		t.Errorf("writes: updates=%d creates=%d links=%d", len(h.updates), len(h.creates), len(f.links))
	}

	res = r.Update(context.Background(), ID(42), true)
	if res.Kind != OutcomeUpdated || len(h.updates) != 1 {
		t.Errorf("dry run update wrote: updates=%d", len(h.updates))
	}
}

func TestUpdateRejectsPrivate(t *testing.T) {
	repo := acme()
	repo.ViewPolicy = "admin"
	_, h, r := newFixture(repo)
	res := r.Update(context.Background(), ID(42), false)
	if !errors.Is(res.Err, ErrPolicyViolation) || h.writes() != 0 {
		t.Fatalf("err = %v writes = %d", res.Err, h.writes())
	}
}

func TestMirrorReportsSkip(t *testing.T) {
	repo := acme()
	repo.URIs = append(repo.URIs, forge.URI{Effective: "git@github.com:Other/acme.git"})
	_, _, r := newFixture(repo)

	_, err := r.Mirror(context.Background(), ID(42), Options{CredentialID: "2"})
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("err = %v, want ErrSkipped", err)
	}
	var skip *SkipError
	if !errors.As(err, &skip) || skip.Address != "git@github.com:Other/acme.git" {
		t.Errorf("skip = %+v", skip)
	}
	if KindOf(err) != "" {
		t.Errorf("skip classified as failure kind %q", KindOf(err))
	}
}

func TestDescribe(t *testing.T) {
	repo := acme()
	repo.ViewPolicy = "users"
	f, h, r := newFixture(repo)

	got, d, err := r.Describe(context.Background(), Name("PHID-REPO-acme"))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.constraints) != 1 || f.constraints[0] != ConstraintPHIDs {
		t.Errorf("constraints = %v, want [%s]", f.constraints, ConstraintPHIDs)
	}
	if got.PHID != "PHID-REPO-acme" || d.MirrorURL != "git@github.com:Acme/acme.git" {
		t.Errorf("describe = %+v %+v", got, d)
	}
	if h.writes() != 0 || len(f.links) != 0 || f.credCalls != 0 {
		t.Error("describe performed writes")
	}
}
