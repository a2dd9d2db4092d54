package cmd

import (
	"context"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/CosmoTheDev/forgemirror/internal/notify"
	"github.com/spf13/cobra"
)

var (
	mirrorCredential  string
	mirrorBypass      bool
	mirrorDryRun      bool
	mirrorNoHost      bool
	mirrorOutput      string
	mirrorName        string
	mirrorDescription string
	mirrorURL         string
	mirrorsTimeout    time.Duration
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror <repo>",
	Short: "Mirror one forge repository",
	Long: `Creates (or updates) the repository on the host and declares the push
mirror on the forge. <repo> is a numeric id, a PHID or a callsign / short name.

Repositories that already declare a mirror are skipped unless
--bypass-existing-check is given. Non-public repositories are never mirrored.

Examples:
  forgemirror mirror 42
  forgemirror mirror PHID-REPO-abcdef --dry-run
  forgemirror mirror swh-core --name swh-core-mirror --credential 3`,
	Args: cobra.ExactArgs(1),
	RunE: runMirror,
}

var mirrorsCmd = &cobra.Command{
	Use:   "mirrors <saved-query>",
	Short: "Mirror every repository returned by a saved forge query",
	Long: `Lists the repositories of a saved Diffusion query and mirrors each one in
order. A failure on one repository is reported and the batch continues.`,
	Args: cobra.ExactArgs(1),
	RunE: runMirrors,
}

func init() {
	for _, c := range []*cobra.Command{mirrorCmd, mirrorsCmd} {
		c.Flags().StringVar(&mirrorCredential, "credential", "", "Passphrase id authorising pushes (default: forge.credential_id)")
		c.Flags().BoolVar(&mirrorBypass, "bypass-existing-check", false, "Mirror even when a mirror is already declared")
		c.Flags().BoolVar(&mirrorDryRun, "dry-run", false, "Perform every read and decision but no write")
		c.Flags().BoolVar(&mirrorNoHost, "no-host", false, "Skip host repository creation, only declare the forge link")
		c.Flags().StringVar(&mirrorOutput, "output", outputTable, "Output format: table|json|yaml")
	}
	mirrorCmd.Flags().StringVar(&mirrorName, "name", "", "Override the mirror repository name")
	mirrorCmd.Flags().StringVar(&mirrorDescription, "description", "", "Override the mirror description")
	mirrorCmd.Flags().StringVar(&mirrorURL, "url", "", "Override the homepage URL")
	mirrorsCmd.Flags().DurationVar(&mirrorsTimeout, "timeout", 0, "Abort the remaining repositories after this long (0 = no limit)")
}

func mirrorOptions(a *app) mirror.Options {
	return mirror.Options{
		CredentialID:   a.credential(mirrorCredential),
		BypassExisting: mirrorBypass,
		DryRun:         mirrorDryRun,
		SkipHost:       mirrorNoHost,
	}
}

func runMirror(cmd *cobra.Command, args []string) error {
	if err := checkOutput(mirrorOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts := mirrorOptions(a)
	opts.Overrides = mirror.Overrides{Name: mirrorName, Description: mirrorDescription, URL: mirrorURL}

	res := a.rec.Reconcile(ctx, mirror.ParseIdentifier(args[0]), opts)
	a.report(ctx, "mirror", res)

	p := newResultPrinter(os.Stdout, mirrorOutput)
	p.add(res)
	if err := p.flush(false); err != nil {
		return err
	}
	if res.Failed() {
		return errReported
	}
	return nil
}

func runMirrors(cmd *cobra.Command, args []string) error {
	if err := checkOutput(mirrorOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	if mirrorsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mirrorsTimeout)
		defer cancel()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	query := args[0]
	seq, err := a.rec.MirrorQuery(ctx, query, mirrorOptions(a))
	if err != nil {
		return err
	}
	_, err = a.drain(ctx, "mirrors", query, seq, mirrorOutput)
	return err
}

// drain consumes a batch, rendering, recording and announcing each result,
// and returns its summary.
func (a *app) drain(ctx context.Context, command, query string, seq iter.Seq[mirror.Result], format string) (mirror.Summary, error) {
	p := newResultPrinter(os.Stdout, format)
	if format == outputTable {
		fmt.Println(headerStyle.Render(fmt.Sprintf("%s %s", command, query)))
	}
	for res := range seq {
		a.report(ctx, command, res)
		p.add(res)
	}
	a.notifier.Notify(context.WithoutCancel(ctx), notify.BatchEvent(command, query, p.summary))
	return p.summary, p.flush(true)
}
