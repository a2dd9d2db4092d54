package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/mirror"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTemp(t)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	results := []mirror.Result{
		{
			Repo:       "42",
			Kind:       mirror.OutcomeMirrored,
			Descriptor: &mirror.Descriptor{Name: "acme", MirrorURL: "git@github.com:Acme/acme.git"},
		},
		{Repo: "43", Kind: mirror.OutcomeSkipped, Reason: "existing mirror git@github.com:Old/x.git"},
		{
			Repo: "44",
			Kind: mirror.OutcomeFailed,
			Err:  &mirror.Error{Kind: mirror.KindPolicy, Repo: "44", Err: errors.New("view policy is \"users\"")},
		},
	}
	for _, res := range results {
		if err := s.Record(ctx, "run-1", "mirrors", res); err != nil {
			t.Fatalf("Record(%s): %v", res.Repo, err)
		}
	}

	runs, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].Repo != "44" || runs[2].Repo != "42" {
		t.Errorf("order = %s,%s,%s, want newest first", runs[0].Repo, runs[1].Repo, runs[2].Repo)
	}
	if runs[0].ErrorKind != string(mirror.KindPolicy) || runs[0].Outcome != "failed" {
		t.Errorf("failed run = %+v", runs[0])
	}
	if runs[2].MirrorURL != "git@github.com:Acme/acme.git" || runs[2].CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("mirrored run = %+v", runs[2])
	}
	if runs[1].Message == "" {
		t.Error("skip reason not recorded")
	}
}

func TestListFilters(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		repo := "a"
		if i%2 == 1 {
			repo = "b"
		}
		if err := s.Record(ctx, "run", "mirror", mirror.Result{Repo: repo, Kind: mirror.OutcomeMirrored, DryRun: true}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.List(ctx, ListOptions{Repo: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("repo filter: %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if !r.DryRun {
			t.Errorf("dry_run lost: %+v", r)
		}
	}

	runs, err = s.List(ctx, ListOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("limit: %d runs, want 3", len(runs))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), config.DatabaseConfig{Path: path})
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		s.Close()
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}
