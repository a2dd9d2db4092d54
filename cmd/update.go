package cmd

import (
	"os"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/spf13/cobra"
)

var (
	updateDryRun bool
	updateOutput string
)

var updateMirrorCmd = &cobra.Command{
	Use:   "update-mirror <repo>",
	Short: "Refresh the host metadata of a mirrored repository",
	Long: `Rewrites the name, description and homepage of the host repository from
the forge record. The forge-side mirror link is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdateMirror,
}

var updateMirrorsCmd = &cobra.Command{
	Use:   "update-mirrors <saved-query>",
	Short: "Refresh host metadata for every repository of a saved query",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateMirrors,
}

func init() {
	for _, c := range []*cobra.Command{updateMirrorCmd, updateMirrorsCmd} {
		c.Flags().BoolVar(&updateDryRun, "dry-run", false, "Show the metadata that would be written")
		c.Flags().StringVar(&updateOutput, "output", outputTable, "Output format: table|json|yaml")
	}
}

func runUpdateMirror(cmd *cobra.Command, args []string) error {
	if err := checkOutput(updateOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res := a.rec.Update(ctx, mirror.ParseIdentifier(args[0]), updateDryRun)
	a.report(ctx, "update-mirror", res)

	p := newResultPrinter(os.Stdout, updateOutput)
	p.add(res)
	if err := p.flush(false); err != nil {
		return err
	}
	if res.Failed() {
		return errReported
	}
	return nil
}

func runUpdateMirrors(cmd *cobra.Command, args []string) error {
	if err := checkOutput(updateOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	query := args[0]
	seq, err := a.rec.UpdateQuery(ctx, query, updateDryRun)
	if err != nil {
		return err
	}
	_, err = a.drain(ctx, "update-mirrors", query, seq, updateOutput)
	return err
}
