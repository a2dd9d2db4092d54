package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/schedule"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard",
	Long: `Walks you through configuring forgemirror:
  - forge address, Conduit token and push credential
  - host provider (GitHub or GitLab), organisation and token
  - an optional nightly saved-query schedule for 'forgemirror watch'

Tokens left blank are read from the token files under ~/.config/swh/.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  forgemirror · forge to host mirror setup"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}
	existing := cfg.Redacted()

	forgeToken := ""
	hostToken := ""
	timeout := strconv.Itoa(cfg.Forge.TimeoutSeconds)

	forgeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Forge URL").
				Description("Base address of the Phabricator instance.").
				Value(&cfg.Forge.URL).
				Validate(required("forge URL")),
			huh.NewInput().
				Title("Conduit API token").
				Description(tokenHint(existing.Forge.Token, cfg.Forge.TokenFile)).
				Placeholder("api-...").
				EchoMode(huh.EchoModePassword).
				Value(&forgeToken),
			huh.NewInput().
				Title("Push credential id").
				Description("Passphrase id the forge uses to push to the mirror.").
				Value(&cfg.Forge.CredentialID),
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&timeout).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return errors.New("must be a number")
					}
					return nil
				}),
		).Title("Step 1/3 · Forge"),
	)
	if err := forgeForm.Run(); err != nil {
		return fmt.Errorf("forge setup cancelled: %w", err)
	}

	hostForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Host provider").
				Options(
					huh.NewOption("GitHub", config.ProviderGitHub),
					huh.NewOption("GitLab", config.ProviderGitLab),
				).
				Value(&cfg.Host.Provider),
			huh.NewInput().
				Title("API URL (leave blank for the public service)").
				Placeholder("https://github.example.com/api/v3/").
				Value(&cfg.Host.APIURL),
			huh.NewInput().
				Title("Organisation / group").
				Value(&cfg.Host.Org).
				Validate(required("organisation")),
			huh.NewInput().
				Title("Host API token").
				Description(tokenHint(existing.Host.Token, cfg.Host.TokenFile)).
				EchoMode(huh.EchoModePassword).
				Value(&hostToken),
		).Title("Step 2/3 · Host"),
	)
	if err := hostForm.Run(); err != nil {
		return fmt.Errorf("host setup cancelled: %w", err)
	}

	var addSchedule bool
	var sched config.ScheduleConfig
	sched.Name = "nightly"
	sched.Expr = "0 3 * * *"
	scheduleForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Add a nightly saved-query schedule?").
				Value(&addSchedule),
		).Title("Step 3/3 · Schedule"),
		huh.NewGroup(
			huh.NewInput().Title("Saved query key").Value(&sched.Query).Validate(required("query")),
			huh.NewInput().Title("Cron expression").Value(&sched.Expr).Validate(schedule.Validate),
		).WithHideFunc(func() bool { return !addSchedule }),
	)
	if err := scheduleForm.Run(); err != nil {
		return fmt.Errorf("schedule setup cancelled: %w", err)
	}

	if forgeToken != "" {
		cfg.Forge.Token = forgeToken
	}
	if hostToken != "" {
		cfg.Host.Token = hostToken
	}
	cfg.Forge.TimeoutSeconds, _ = strconv.Atoi(timeout)
	if addSchedule {
		cfg.Watch.Schedules = append(cfg.Watch.Schedules, sched)
	}

	path, err := config.ConfigPath(cfgFile)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println(successStyle.Render("  Configuration saved to " + path))
	fmt.Println(dimStyle.Render("  Next: run 'forgemirror doctor' to check connectivity."))
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func tokenHint(current, file string) string {
	if current != "" {
		return "Leave blank to keep the current token (" + current + ")."
	}
	return "Leave blank to read it from " + file + "."
}
