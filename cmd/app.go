package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/forge"
	"github.com/CosmoTheDev/forgemirror/internal/history"
	"github.com/CosmoTheDev/forgemirror/internal/host"
	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/CosmoTheDev/forgemirror/internal/notify"
)

// app holds the collaborators every reconciling command needs.
type app struct {
	cfg      *config.Config
	forge    *forge.Client
	host     host.Client
	rec      *mirror.Reconciler
	store    *history.Store
	notifier *notify.Dispatcher
	runID    string
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: loading config: %w", config.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires clients from the validated configuration. History is best
// effort: a store that cannot be opened is logged and skipped.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	hc, err := host.New(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	fc := forge.New(cfg.Forge)

	a := &app{
		cfg:   cfg,
		forge: fc,
		host:  hc,
		rec: mirror.New(fc, hc, mirror.Settings{
			ForgeURL: cfg.Forge.URL,
			Target:   mirror.Target{Org: cfg.Host.Org, SSHPrefix: cfg.Host.SSHPrefix},
			Marker:   cfg.Host.Marker,
		}),
		notifier: notify.NewDispatcher(cfg.Notify),
		runID:    history.NewRunID(time.Now()),
	}
	store, err := history.Open(ctx, cfg.Database)
	if err != nil {
		slog.Warn("run history disabled", "error", err)
	} else {
		a.store = store
	}
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// credential returns the flag value, else the configured default.
func (a *app) credential(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Forge.CredentialID
}

// report records and announces one result. It still runs after the
// command context is cancelled so interrupted items are recorded.
func (a *app) report(ctx context.Context, command string, res mirror.Result) {
	ctx = context.WithoutCancel(ctx)
	if a.store != nil {
		if err := a.store.Record(ctx, a.runID, command, res); err != nil {
			slog.Warn("recording run failed", "repo", res.Repo, "error", err)
		}
	}
	if evt, ok := notify.ResultEvent(command, res); ok {
		a.notifier.Notify(ctx, evt)
	}
}
