package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingEnv is wrapped with the name of the variable that is not set.
var ErrMissingEnv = errors.New("required environment variable is not set")

// Profile selects which process the configuration is loaded for.
// Each process only requires the variables of the stores it touches.
type Profile string

const (
	ProfileMonitor       Profile = "monitor"
	ProfileRepair        Profile = "repair"
	ProfileBackfill      Profile = "backfill"
	ProfilePurchaseLinks Profile = "purchaselinks"
)

const (
	WatermarkBackendGist = "gist"
	WatermarkBackendFile = "file"
)

// SourceConfig describes the MySQL campaign database.
type SourceConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	TLS       string        // go-sql-driver tls parameter, "skip-verify" by default
	UTCOffset time.Duration // civil time offset baked into stored timestamps
}

// MirrorConfig describes the Postgres (Supabase) tracking store.
type MirrorConfig struct {
	DatabaseURL string
	Table       string
}

// WatermarkConfig selects and addresses the watermark blob.
type WatermarkConfig struct {
	Backend     string
	GistID      string
	GitHubToken string
	GistFile    string // empty means auto-detect
	GitHubAPI   string
	FilePath    string
	Retention   time.Duration
}

// NotifierConfig holds the outbound channels.
type NotifierConfig struct {
	ReviewWebhookURL       string
	PurchaseLinkWebhookURL string
	TelegramToken          string
	TelegramChatID         int64
	Delay                  time.Duration
}

// EngineConfig tunes the reconciliation cycle.
type EngineConfig struct {
	SafetyWindow       time.Duration
	MirrorRetryBackoff time.Duration
	CronSpec           string
	CycleTimeout       time.Duration
	RunOnce            bool
}

// BackfillConfig tunes the one-shot backfill.
type BackfillConfig struct {
	Since     time.Time // zero means now minus watermark retention
	FillLimit int       // page size for FillMissing
}

// PurchaseLinkConfig tunes the purchase-link compliance monitor.
type PurchaseLinkConfig struct {
	CronSpec       string
	StateFile      string
	RenotifyAfter  time.Duration
	LookbackMonths int
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	Profile      Profile
	Source       SourceConfig
	Mirror       MirrorConfig
	Watermark    WatermarkConfig
	Notifier     NotifierConfig
	Engine       EngineConfig
	Backfill     BackfillConfig
	PurchaseLink PurchaseLinkConfig
	LogLevel     string
	Environment  string
}

// Load reads configuration from environment variables and .env file (if present),
// and validates the variables the given profile needs.
func Load(profile Profile) (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist. godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{Profile: profile}
	var err error

	cfg.Source.Host = os.Getenv("MYSQL_HOST")
	cfg.Source.User = os.Getenv("MYSQL_USERNAME")
	cfg.Source.Password = os.Getenv("MYSQL_PASSWORD")
	cfg.Source.Database = os.Getenv("MYSQL_DATABASE")
	cfg.Source.TLS = envOr("MYSQL_TLS", "skip-verify")
	if cfg.Source.Port, err = envInt("MYSQL_PORT", 3306); err != nil {
		return nil, err
	}
	if cfg.Source.UTCOffset, err = envDuration("SOURCE_UTC_OFFSET", 9*time.Hour); err != nil {
		return nil, err
	}

	cfg.Mirror.DatabaseURL = os.Getenv("MIRROR_DATABASE_URL")
	cfg.Mirror.Table = envOr("MIRROR_TABLE", "exposure_tracking")

	cfg.Watermark.Backend = strings.ToLower(envOr("WATERMARK_BACKEND", WatermarkBackendGist))
	cfg.Watermark.GistID = os.Getenv("GIST_ID")
	cfg.Watermark.GitHubToken = os.Getenv("GH_TOKEN")
	cfg.Watermark.GistFile = os.Getenv("GIST_FILENAME")
	cfg.Watermark.GitHubAPI = strings.TrimRight(envOr("GITHUB_API_URL", "https://api.github.com"), "/")
	cfg.Watermark.FilePath = envOr("WATERMARK_FILE", "review_state.json")
	if cfg.Watermark.Retention, err = envDuration("WATERMARK_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Notifier.ReviewWebhookURL = os.Getenv("SLACK_REVIEW_WEBHOOK_URL")
	cfg.Notifier.PurchaseLinkWebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	cfg.Notifier.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.Notifier.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.Notifier.Delay, err = envDuration("NOTIFY_DELAY", time.Second); err != nil {
		return nil, err
	}

	if cfg.Engine.SafetyWindow, err = envDuration("SAFETY_WINDOW", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Engine.MirrorRetryBackoff, err = envDuration("MIRROR_RETRY_BACKOFF", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Engine.CycleTimeout, err = envDuration("CYCLE_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	cfg.Engine.CronSpec = envOr("MONITOR_CRON_SPEC", "@every 2m") // Default: every 2 minutes
	if cfg.Engine.RunOnce, err = envBool("RUN_ONCE", false); err != nil {
		return nil, err
	}

	if since := os.Getenv("BACKFILL_SINCE"); since != "" {
		cfg.Backfill.Since, err = time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKFILL_SINCE: %w", err)
		}
	}
	if cfg.Backfill.FillLimit, err = envInt("BACKFILL_FILL_LIMIT", 500); err != nil {
		return nil, err
	}

	cfg.PurchaseLink.CronSpec = envOr("PURCHASE_LINK_CRON_SPEC", "@every 10m") // Default: every 10 minutes
	cfg.PurchaseLink.StateFile = envOr("PURCHASE_LINK_STATE_FILE", "notification_log.json")
	if cfg.PurchaseLink.RenotifyAfter, err = envDuration("PURCHASE_LINK_RENOTIFY_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PurchaseLink.LookbackMonths, err = envInt("PURCHASE_LINK_LOOKBACK_MONTHS", 2); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	required := map[string]string{}
	source := func() {
		required["MYSQL_HOST"] = c.Source.Host
		required["MYSQL_USERNAME"] = c.Source.User
		required["MYSQL_PASSWORD"] = c.Source.Password
		required["MYSQL_DATABASE"] = c.Source.Database
	}
	mirror := func() {
		required["MIRROR_DATABASE_URL"] = c.Mirror.DatabaseURL
	}
	watermark := func() {
		if c.Watermark.Backend == WatermarkBackendGist {
			required["GIST_ID"] = c.Watermark.GistID
			required["GH_TOKEN"] = c.Watermark.GitHubToken
		}
	}

	switch c.Profile {
	case ProfileMonitor:
		source()
		mirror()
		watermark()
		required["SLACK_REVIEW_WEBHOOK_URL"] = c.Notifier.ReviewWebhookURL
	case ProfileRepair:
		source()
		mirror()
		watermark()
	case ProfileBackfill:
		source()
		mirror()
	case ProfilePurchaseLinks:
		source()
		required["SLACK_WEBHOOK_URL"] = c.Notifier.PurchaseLinkWebhookURL
	default:
		return fmt.Errorf("unknown config profile %q", c.Profile)
	}

	if c.Watermark.Backend != WatermarkBackendGist && c.Watermark.Backend != WatermarkBackendFile {
		return fmt.Errorf("invalid WATERMARK_BACKEND %q: expected %q or %q", c.Watermark.Backend, WatermarkBackendGist, WatermarkBackendFile)
	}
	if (c.Notifier.TelegramToken == "") != (c.Notifier.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	// Report in a fixed order so the first missing variable is deterministic.
	for _, name := range []string{
		"MYSQL_HOST", "MYSQL_USERNAME", "MYSQL_PASSWORD", "MYSQL_DATABASE",
		"MIRROR_DATABASE_URL", "GIST_ID", "GH_TOKEN",
		"SLACK_REVIEW_WEBHOOK_URL", "SLACK_WEBHOOK_URL",
	} {
		if value, ok := required[name]; ok && value == "" {
			return fmt.Errorf("%s: %w", name, ErrMissingEnv)
		}
	}
	return nil
}

// TelegramEnabled reports whether the optional Telegram channel is configured.
func (c *AppConfig) TelegramEnabled() bool {
	return c.Notifier.TelegramToken != "" && c.Notifier.TelegramChatID != 0
}

// SourceLocation is the fixed zone the source stores its timestamps in.
func (c *AppConfig) SourceLocation() *time.Location {
	return time.FixedZone("SOURCE", int(c.Source.UTCOffset/time.Second))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}
