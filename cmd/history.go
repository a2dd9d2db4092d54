package cmd

import (
	"fmt"
	"os"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/history"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyRepo   string
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded reconciliation outcomes",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of entries")
	historyCmd.Flags().StringVar(&historyRepo, "repo", "", "Only show this repository identifier")
	historyCmd.Flags().StringVar(&historyOutput, "output", outputTable, "Output format: table|json|yaml")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := checkOutput(historyOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("%w: loading config: %w", config.ErrConfiguration, err)
	}
	store, err := history.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	runs, err := store.List(ctx, history.ListOptions{Repo: historyRepo, Limit: historyLimit})
	if err != nil {
		return err
	}
	if ok, err := render(os.Stdout, historyOutput, runs); ok || err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(dimStyle.Render("No runs recorded yet."))
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("WHEN", "COMMAND", "REPO", "OUTCOME", "DETAIL")
	for _, r := range runs {
		detail := r.MirrorURL
		if r.Message != "" {
			detail = r.Message
		}
		outcome := r.Outcome
		if r.DryRun {
			outcome += " (dry-run)"
		}
		t.Row(r.CreatedAt, r.Command, r.Repo, outcome, detail)
	}
	fmt.Println(t.Render())
	return nil
}
