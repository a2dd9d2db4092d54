package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/forge"
	"github.com/CosmoTheDev/forgemirror/internal/history"
	"github.com/CosmoTheDev/forgemirror/internal/host"
	"github.com/CosmoTheDev/forgemirror/internal/notify"
	"github.com/CosmoTheDev/forgemirror/internal/schedule"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, credentials and connectivity",
	Long: `Checks that the configuration is complete, the Conduit token is accepted
by the forge, the host token authenticates, the push credential resolves,
the history database can be reached, every schedule parses and whether
any notification channel is enabled.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("%w: loading config: %w", config.ErrConfiguration, err)
	}

	allOK := true
	check := func(label string, fn func() (string, error)) {
		fmt.Printf("%-24s ", label+" "+dots(24-len(label)-1))
		detail, err := fn()
		if err != nil {
			fmt.Println(failStyle.Render("FAIL") + " (" + err.Error() + ")")
			allOK = false
			return
		}
		fmt.Println(successStyle.Render("OK") + dimStyle.Render(" ("+detail+")"))
	}

	fmt.Println(headerStyle.Render("forgemirror doctor"))

	check("Configuration", func() (string, error) {
		if err := cfg.Validate(); err != nil {
			return "", err
		}
		return cfg.Forge.URL + " → " + cfg.Host.Provider + "/" + cfg.Host.Org, nil
	})

	fc := forge.New(cfg.Forge)
	check("Forge (conduit.ping)", func() (string, error) {
		return fc.Ping(ctx)
	})

	check("Push credential", func() (string, error) {
		if cfg.Forge.CredentialID == "" {
			return "not set, pass --credential", nil
		}
		entries, err := fc.Passphrases(ctx, []string{cfg.Forge.CredentialID})
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", fmt.Errorf("passphrase %s not found", cfg.Forge.CredentialID)
		}
		return fmt.Sprintf("passphrase %s", cfg.Forge.CredentialID), nil
	})

	check("Host ("+cfg.Host.Provider+")", func() (string, error) {
		hc, err := host.New(cfg.Host)
		if err != nil {
			return "", err
		}
		login, err := hc.Login(ctx)
		if err != nil {
			return "", err
		}
		return "authenticated as " + login, nil
	})

	check("History database", func() (string, error) {
		store, err := history.Open(ctx, cfg.Database)
		if err != nil {
			return "", err
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			return "", err
		}
		return store.Driver(), nil
	})

	check("Schedules", func() (string, error) {
		for _, sc := range cfg.Watch.Schedules {
			if err := schedule.Validate(sc.Expr); err != nil {
				return "", fmt.Errorf("%s: %w", sc.Name, err)
			}
		}
		return fmt.Sprintf("%d configured", len(cfg.Watch.Schedules)), nil
	})

	check("Notifications", func() (string, error) {
		if !notify.NewDispatcher(cfg.Notify).IsAnyConfigured() {
			return "none configured", nil
		}
		return "enabled", nil
	})

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, forgemirror is ready."))
		return nil
	}
	fmt.Println(warnStyle.Render("Some checks failed, run 'forgemirror init' to fix."))
	return errReported
}

func dots(n int) string {
	return strings.Repeat(".", max(n, 3))
}
