package history

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
)

const runsTable = "mirror_runs"

// Run is one recorded outcome.
type Run struct {
	ID        int64  `db:"id"         json:"id"         yaml:"id"`
	RunID     string `db:"run_id"     json:"run_id"     yaml:"run_id"`
	Command   string `db:"command"    json:"command"    yaml:"command"`
	Repo      string `db:"repo"       json:"repo"       yaml:"repo"`
	Outcome   string `db:"outcome"    json:"outcome"    yaml:"outcome"`
	ErrorKind string `db:"error_kind" json:"error_kind" yaml:"error_kind"`
	Message   string `db:"message"    json:"message"    yaml:"message"`
	MirrorURL string `db:"mirror_url" json:"mirror_url" yaml:"mirror_url"`
	DryRun    bool   `db:"dry_run"    json:"dry_run"    yaml:"dry_run"`
	CreatedAt string `db:"created_at" json:"created_at" yaml:"created_at"`
}

// Store reads and writes mirror_runs.
type Store struct {
	db DB
	// now is replaced in tests.
	now func() time.Time
}

// NewStore wraps an already migrated DB.
func NewStore(db DB) *Store { return &Store{db: db} }

// Driver names the backend.
func (s *Store) Driver() string { return s.db.Driver() }

// Ping checks the backend connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// NewRunID returns an identifier grouping the results of one invocation.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// Record stores res under runID.
func (s *Store) Record(ctx context.Context, runID, command string, res mirror.Result) error {
	run := Run{
		RunID:     runID,
		Command:   command,
		Repo:      res.Repo,
		Outcome:   string(res.Kind),
		ErrorKind: string(mirror.KindOf(res.Err)),
		Message:   res.Reason,
		DryRun:    res.DryRun,
		CreatedAt: s.clock().UTC().Format(time.RFC3339Nano),
	}
	if res.Err != nil {
		run.Message = res.Err.Error()
	}
	if res.Descriptor != nil {
		run.MirrorURL = res.Descriptor.MirrorURL
	}
	if _, err := s.db.Insert(ctx, runsTable, run); err != nil {
		return fmt.Errorf("recording %s: %w", res.Repo, err)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	Repo  string
	Limit int
}

// List returns recorded runs, newest first.
func (s *Store) List(ctx context.Context, o ListOptions) ([]Run, error) {
	limit := o.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT * FROM " + runsTable
	var args []any
	if o.Repo != "" {
		query += " WHERE repo = ?"
		args = append(args, o.Repo)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var runs []Run
	if err := s.db.Select(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
