package config

// Config is the root configuration structure for forgemirror.
// Serialised to ~/.forgemirror/config.json.
type Config struct {
	Forge    ForgeConfig    `mapstructure:"forge"    json:"forge"`
	Host     HostConfig     `mapstructure:"host"     json:"host"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Watch    WatchConfig    `mapstructure:"watch"    json:"watch"`
}

// ForgeConfig points at the Phabricator forge that owns the repositories.
type ForgeConfig struct {
	// URL is the forge base address (e.g. https://forge.softwareheritage.org).
	URL   string `mapstructure:"url"   json:"url"`
	Token string `mapstructure:"token" json:"token"`
	// TokenFile is read when Token is empty.
	TokenFile string `mapstructure:"token_file" json:"token_file"`
	// CredentialID is the default passphrase id used to push to the host.
	CredentialID   string `mapstructure:"credential_id"   json:"credential_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`

	tokenFromFile bool
}

// HostConfig describes the platform mirrors are pushed to.
type HostConfig struct {
	// Provider is "github" (default) or "gitlab".
	Provider string `mapstructure:"provider" json:"provider"`
	// APIURL overrides the API root for GitHub Enterprise or self-hosted GitLab.
	APIURL    string `mapstructure:"api_url"    json:"api_url"`
	Token     string `mapstructure:"token"      json:"token"`
	TokenFile string `mapstructure:"token_file" json:"token_file"`
	// Org is the organisation (GitHub) or group (GitLab) owning the mirrors.
	Org string `mapstructure:"org" json:"org"`
	// SSHPrefix is the left half of the mirror address, e.g. git@github.com.
	SSHPrefix string `mapstructure:"ssh_prefix" json:"ssh_prefix"`
	// Marker is the substring identifying an existing mirror URI on the forge.
	Marker         string `mapstructure:"marker"          json:"marker"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`

	tokenFromFile bool
}

// DatabaseConfig controls where run history is recorded.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// NotifyConfig holds the optional notification channels.
type NotifyConfig struct {
	// Events limits which event types are sent (empty = defaults).
	Events  []string            `mapstructure:"events"  json:"events"`
	Webhook WebhookNotifyConfig `mapstructure:"webhook" json:"webhook"`
	Slack   SlackNotifyConfig   `mapstructure:"slack"   json:"slack"`
}

// WebhookNotifyConfig posts JSON events to an arbitrary endpoint.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"`
}

// SlackNotifyConfig posts to a Slack incoming webhook.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// WatchConfig lists the schedules run by `forgemirror watch`.
type WatchConfig struct {
	Schedules []ScheduleConfig `mapstructure:"schedules" json:"schedules"`
}

// ScheduleConfig runs one saved query on a cron expression.
type ScheduleConfig struct {
	Name string `mapstructure:"name" json:"name"`
	// Expr is a robfig/cron expression ("@every 6h", "0 2 * * *").
	Expr           string `mapstructure:"expr"            json:"expr"`
	Query          string `mapstructure:"query"           json:"query"`
	CredentialID   string `mapstructure:"credential_id"   json:"credential_id"`
	BypassExisting bool   `mapstructure:"bypass_existing" json:"bypass_existing"`
	// UpdateOnly refreshes metadata instead of creating mirrors.
	UpdateOnly bool `mapstructure:"update_only" json:"update_only"`
}
