// Package schedule runs saved-query reconciliations on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/robfig/cron/v3"
)

// RunFunc reconciles one schedule's saved query.
type RunFunc func(ctx context.Context, sched config.ScheduleConfig) error

// Entry is a registered schedule and its next fire time.
type Entry struct {
	Name string
	Expr string
	Next time.Time
}

// Scheduler registers configured schedules with robfig/cron. A schedule
// whose previous run is still going is skipped rather than queued, and at
// most one run executes at a time across all schedules.
type Scheduler struct {
	cron *cron.Cron
	run  RunFunc

	// running serialises runs so batches never share the host account
	// concurrently.
	running sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
	specs   map[string]config.ScheduleConfig
}

// New returns a stopped Scheduler.
func New(run RunFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:     run,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]config.ScheduleConfig),
	}
}

// Validate checks that expr is parseable by robfig/cron without adding it
// to any runner.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Add validates and registers sched. Names must be unique.
func (s *Scheduler) Add(sched config.ScheduleConfig) error {
	if sched.Name == "" {
		sched.Name = sched.Query
	}
	if sched.Query == "" {
		return fmt.Errorf("schedule %q has no saved query", sched.Name)
	}
	if err := Validate(sched.Expr); err != nil {
		return fmt.Errorf("schedule %q: %w", sched.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[sched.Name]; dup {
		return fmt.Errorf("duplicate schedule name %q", sched.Name)
	}
	id, err := s.cron.AddFunc(sched.Expr, func() { s.fire(sched) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", sched.Name, err)
	}
	s.entries[sched.Name] = id
	s.specs[sched.Name] = sched
	return nil
}

// Entries lists registered schedules ordered by name. Next is zero until
// the scheduler has started.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		out = append(out, Entry{Name: name, Expr: s.specs[name].Expr, Next: s.cron.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start runs the cron loop. Runs receive ctx, so cancelling it aborts the
// remaining items of an in-flight batch.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.entries)
	s.mu.Unlock()
	s.cron.Start()
	slog.Info("scheduler started", "schedules", n)
}

// Stop halts the cron loop; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Trigger runs the named schedule immediately in the caller's goroutine,
// waiting for any run already in progress.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	sched, ok := s.specs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown schedule %q", name)
	}
	s.running.Lock()
	defer s.running.Unlock()
	return s.run(ctx, sched)
}

func (s *Scheduler) fire(sched config.ScheduleConfig) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.running.Lock()
	defer s.running.Unlock()
	if ctx.Err() != nil {
		slog.Info("schedule dropped after shutdown", "name", sched.Name)
		return
	}

	start := time.Now()
	slog.Info("schedule fired", "name", sched.Name, "query", sched.Query)
	if err := s.run(ctx, sched); err != nil {
		slog.Warn("scheduled run failed", "name", sched.Name, "error", err)
		return
	}
	slog.Info("schedule finished", "name", sched.Name, "duration", time.Since(start).Round(time.Millisecond))
}
