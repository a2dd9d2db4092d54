package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/CosmoTheDev/forgemirror/internal/verify"
	"github.com/spf13/cobra"
)

var verifyOutput string

var verifyCmd = &cobra.Command{
	Use:   "verify <repo>",
	Short: "Compare the branches and tags of a repository with its mirror",
	Long: `Lists the references of the forge repository and of its mirror and reports
refs that are missing or point at a different commit on the mirror.
Exits non-zero when the mirror is behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOutput, "output", outputTable, "Output format: table|json|yaml")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := checkOutput(verifyOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	repo, d, err := a.rec.Describe(ctx, mirror.ParseIdentifier(args[0]))
	if err != nil {
		return err
	}
	source := verify.SourceURL(repo, strings.TrimSuffix(d.URL, "/")+".git")
	lister := verify.NewGitLister(map[string]string{a.cfg.Host.Marker: a.cfg.Host.Token})

	report, err := verify.New(lister).Verify(ctx, source, verify.PublicURL(d.MirrorURL))
	if err != nil {
		return err
	}

	if ok, err := render(os.Stdout, verifyOutput, report); ok || err != nil {
		if err == nil && !report.InSync() {
			return errReported
		}
		return err
	}

	fmt.Println(headerStyle.Render("verify " + args[0]))
	fmt.Println(dimStyle.Render("forge:  " + report.Source))
	fmt.Println(dimStyle.Render("mirror: " + report.Mirror))
	fmt.Println()
	for _, name := range report.Missing {
		fmt.Println(failStyle.Render("missing ") + name)
	}
	for _, name := range report.Stale {
		fmt.Println(warnStyle.Render("stale   ") + name)
	}
	for _, name := range report.Extra {
		fmt.Println(dimStyle.Render("extra   ") + name)
	}
	if report.InSync() {
		fmt.Println(successStyle.Render(fmt.Sprintf("In sync: %d refs match.", report.Matching)))
		return nil
	}
	fmt.Println(warnStyle.Render(fmt.Sprintf("Out of sync: %d missing, %d stale, %d matching.",
		len(report.Missing), len(report.Stale), report.Matching)))
	return errReported
}
