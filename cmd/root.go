package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// errReported is returned once a failure has already been rendered, so
// Execute only sets the exit status.
var errReported = errors.New("failure already reported")

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "forgemirror",
	Short: "Mirror forge repositories to GitHub or GitLab",
	Long: `forgemirror keeps push mirrors of Phabricator (Diffusion) repositories on a
hosting platform. For each repository it creates or updates the remote
repository and declares the push mirror on the forge.

Get started:
  forgemirror init                 Interactive setup wizard
  forgemirror doctor               Verify credentials and connectivity
  forgemirror mirror <repo>        Mirror one repository
  forgemirror mirrors <query>      Mirror every repository of a saved query
  forgemirror watch                Run the configured schedules`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go. Configuration errors
// exit with status 2, every other failure with 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	if errors.Is(err, config.ErrConfiguration) {
		os.Exit(2)
	}
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.forgemirror/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		initCmd,
		mirrorCmd,
		mirrorsCmd,
		updateMirrorCmd,
		updateMirrorsCmd,
		verifyCmd,
		historyCmd,
		watchCmd,
		configCmd,
		doctorCmd,
	)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
