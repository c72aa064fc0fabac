package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Jira   JiraConfig   `mapstructure:"jira"   validate:"required"`
	Sync   SyncConfig   `mapstructure:"sync"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// JiraConfig contains settings for reaching the remote tracker.
// The session cookie is ambient browser-session material forwarded to the
// daemon; the service never creates or refreshes credentials itself.
type JiraConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// SessionCookieName is the cookie carrying the tracker session token.
	SessionCookieName string `mapstructure:"session_cookie_name" validate:"required"`

	// SessionCookieValue may be empty, in which case requests go out
	// unauthenticated and the tracker's markup error page is surfaced as
	// a not-authenticated failure.
	SessionCookieValue string `mapstructure:"session_cookie_value"`

	// Timezone is the IANA zone name used to decide which local calendar
	// date a worklog entry belongs to.
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// SyncConfig contains tuning knobs for the background sync engine.
type SyncConfig struct {
	// MaxConcurrency bounds how many date lookups run at once against the
	// tracker, across all sessions.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"required,gt=0,lte=16"`

	// IssueFanout bounds concurrent per-issue worklog fetches inside one
	// date lookup.
	IssueFanout int `mapstructure:"issue_fanout" validate:"required,gt=0,lte=32"`

	// MaxSearchResults caps the issue search so the per-date fan-out stays small.
	MaxSearchResults int `mapstructure:"max_search_results" validate:"required,gt=0,lte=500"`

	// RequestTimeoutSeconds is the hard per-attempt timeout for tracker calls.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0,lte=300"`
}
