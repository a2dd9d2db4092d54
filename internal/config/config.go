package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".forgemirror"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".forgemirror/history.db"

	DefaultForgeURL       = "https://forge.softwareheritage.org"
	DefaultForgeTokenFile = "~/.config/swh/forge-token"
	DefaultHostTokenFile  = "~/.config/swh/github-token"
	DefaultOrg            = "SoftwareHeritage"

	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// ErrConfiguration marks configuration problems detected before any
// repository is processed.
var ErrConfiguration = errors.New("configuration error")

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("FORGEMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	applyProviderDefaults(&cfg.Host)
	if err := resolveTokens(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk as JSON. Tokens that were read from token
// files stay in those files.
func Save(cfg *Config, configPath string) error {
	if configPath == "" {
		p, err := ConfigPath("")
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out := *cfg
	if out.Forge.tokenFromFile {
		out.Forge.Token = ""
	}
	if out.Host.tokenFromFile {
		out.Host.Token = ""
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Validate checks everything the reconciler needs up front. Every returned
// error wraps ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string
	if c.Forge.URL == "" {
		problems = append(problems, "forge.url is empty")
	} else if u, err := url.Parse(c.Forge.URL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("forge.url %q is not an absolute URL", c.Forge.URL))
	}
	if c.Forge.Token == "" {
		problems = append(problems, fmt.Sprintf("no forge token (set forge.token or install one in %s)", c.Forge.TokenFile))
	}
	switch c.Host.Provider {
	case ProviderGitHub, ProviderGitLab:
	default:
		problems = append(problems, fmt.Sprintf("unsupported host.provider %q (supported: github, gitlab)", c.Host.Provider))
	}
	if c.Host.Token == "" {
		problems = append(problems, fmt.Sprintf("no host token (set host.token or install one in %s)", c.Host.TokenFile))
	}
	if c.Host.Org == "" {
		problems = append(problems, "host.org is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy of c with secrets masked, suitable for printing.
func (c Config) Redacted() Config {
	if c.Forge.Token != "" {
		c.Forge.Token = "api-***"
	}
	if c.Host.Token != "" {
		c.Host.Token = "***"
	}
	if c.Notify.Webhook.Secret != "" {
		c.Notify.Webhook.Secret = "***"
	}
	if c.Database.DSN != "" {
		c.Database.DSN = "***"
	}
	return c
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("forge.url", DefaultForgeURL)
	v.SetDefault("forge.token", "")
	v.SetDefault("forge.token_file", DefaultForgeTokenFile)
	v.SetDefault("forge.credential_id", "")
	v.SetDefault("forge.timeout_seconds", 30)

	v.SetDefault("host.provider", ProviderGitHub)
	v.SetDefault("host.api_url", "")
	v.SetDefault("host.token", "")
	v.SetDefault("host.token_file", DefaultHostTokenFile)
	v.SetDefault("host.org", DefaultOrg)
	v.SetDefault("host.ssh_prefix", "")
	v.SetDefault("host.marker", "")
	v.SetDefault("host.timeout_seconds", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")
}

// applyProviderDefaults fills the mirror address prefix and existence marker
// from the provider when they are not configured explicitly.
func applyProviderDefaults(h *HostConfig) {
	h.Provider = strings.ToLower(strings.TrimSpace(h.Provider))
	if h.Provider == "" {
		h.Provider = ProviderGitHub
	}
	domain := "github.com"
	if h.Provider == ProviderGitLab {
		domain = "gitlab.com"
	}
	if h.APIURL != "" && !isPublicAPI(h.APIURL) {
		if u, err := url.Parse(h.APIURL); err == nil && u.Hostname() != "" {
			domain = u.Hostname()
		}
	}
	if h.SSHPrefix == "" {
		h.SSHPrefix = "git@" + domain
	}
	if h.Marker == "" {
		h.Marker = domain
	}
}

func isPublicAPI(apiURL string) bool {
	lower := strings.ToLower(apiURL)
	return strings.Contains(lower, "api.github.com") || strings.Contains(lower, "://gitlab.com")
}

// resolveTokens loads tokens from their token files when not set inline.
func resolveTokens(cfg *Config) error {
	var err error
	if cfg.Forge.Token == "" {
		if cfg.Forge.Token, err = readTokenFile(cfg.Forge.TokenFile); err != nil {
			return err
		}
		cfg.Forge.tokenFromFile = cfg.Forge.Token != ""
	}
	if cfg.Host.Token == "" {
		if cfg.Host.Token, err = readTokenFile(cfg.Host.TokenFile); err != nil {
			return err
		}
		cfg.Host.tokenFromFile = cfg.Host.Token != ""
	}
	return nil
}

// readTokenFile returns the trimmed file content, or "" when the file does
// not exist.
func readTokenFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user configuration
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: reading token file %s: %v", ErrConfiguration, path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Forge.TokenFile = expandHome(cfg.Forge.TokenFile, home)
	cfg.Host.TokenFile = expandHome(cfg.Host.TokenFile, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
