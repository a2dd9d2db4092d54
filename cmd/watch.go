package cmd

import (
	"context"
	"fmt"
	"iter"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/CosmoTheDev/forgemirror/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	watchOnce   bool
	watchDryRun bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the configured saved-query schedules",
	Long: `Registers every entry of watch.schedules with a cron runner and reconciles
its saved query each time it fires, until interrupted.

  "watch": {
    "schedules": [
      {"name": "nightly", "expr": "0 3 * * *", "query": "abc123XYZ"}
    ]
  }

With --once every schedule runs a single time, in order, and the command exits.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run every schedule once and exit")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "Perform every read and decision but no write")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Watch.Schedules) == 0 {
		return fmt.Errorf("%w: watch.schedules is empty", config.ErrConfiguration)
	}

	s := schedule.New(func(ctx context.Context, sc config.ScheduleConfig) error {
		return a.runSchedule(ctx, sc)
	})
	for _, sc := range a.cfg.Watch.Schedules {
		if err := s.Add(sc); err != nil {
			return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
	}

	if watchOnce {
		for _, e := range s.Entries() {
			if err := s.Trigger(ctx, e.Name); err != nil {
				return err
			}
		}
		return nil
	}

	s.Start(ctx)
	fmt.Println(headerStyle.Render("forgemirror watch"))
	for _, e := range s.Entries() {
		fmt.Printf("  %-20s %-16s next %s\n", e.Name, e.Expr, dimStyle.Render(e.Next.Local().Format("2006-01-02 15:04")))
	}
	<-ctx.Done()
	fmt.Println(dimStyle.Render("Stopping, waiting for running batches..."))
	<-s.Stop().Done()
	return nil
}

func (a *app) runSchedule(ctx context.Context, sc config.ScheduleConfig) error {
	var (
		seq     iter.Seq[mirror.Result]
		err     error
		command = "mirrors"
	)
	if sc.UpdateOnly {
		command = "update-mirrors"
		seq, err = a.rec.UpdateQuery(ctx, sc.Query, watchDryRun)
	} else {
		credential := sc.CredentialID
		if credential == "" {
			credential = a.cfg.Forge.CredentialID
		}
		seq, err = a.rec.MirrorQuery(ctx, sc.Query, mirror.Options{
			CredentialID:   credential,
			BypassExisting: sc.BypassExisting,
			DryRun:         watchDryRun,
		})
	}
	if err != nil {
		return err
	}
	_, err = a.drain(ctx, command, sc.Query, seq, outputTable)
	return err
}
