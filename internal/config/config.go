package config

import (
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string // Shown in page titles and email subjects
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string
	ContentPath  string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret                string
	JWTExpiry                time.Duration
	TokenPasswordResetExpiry time.Duration
	BcryptCost               int
	// Proxies whose X-Forwarded-For / X-Real-IP headers are believed.
	// Empty means the TCP peer is the client.
	TrustedProxies []netip.Prefix

	// Accounts
	DefaultActive bool // is_active for freshly registered accounts

	// Email
	MailProvider string // "log", "resend" or "smtp"
	EmailFrom    string
	MailTimeout  time.Duration
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// Map
	LeafletTilesURL         string
	LeafletTilesAttribution string

	// Observability (optional)
	SentryDSN string

	// Storage (optional, S3-compatible) for CSV exports
	S3Region              string
	S3Bucket              string
	S3AccessKey           string
	S3SecretKey           string
	S3Endpoint            string
	S3PresignExpiryExport time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "User Map"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // Required: base URL for email links
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),
		ContentPath:  envString("CONTENT_PATH", "content"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/usermap.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret:                envRequired("JWT_SECRET"),
		JWTExpiry:                envDuration("JWT_EXPIRY", 168*time.Hour),                 // 7 days
		TokenPasswordResetExpiry: envDuration("TOKEN_PASSWORD_RESET_EXPIRY", 72*time.Hour), // 3 days
		BcryptCost:               envInt("BCRYPT_COST", 12),
		TrustedProxies:           envPrefixes("TRUSTED_PROXIES"),

		// Accounts
		DefaultActive: envBool("DEFAULT_ACTIVE", true),

		// Email
		MailProvider: envString("MAIL_PROVIDER", "log"),
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		MailTimeout:  envDuration("MAIL_TIMEOUT", 15*time.Second),
		ResendAPIKey: envString("RESEND_API_KEY", ""),
		SMTPHost:     envString("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envString("SMTP_USERNAME", ""),
		SMTPPassword: envString("SMTP_PASSWORD", ""),

		// Map
		LeafletTilesURL:         envString("LEAFLET_TILES_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"),
		LeafletTilesAttribution: envString("LEAFLET_TILES_ATTRIBUTION", "&copy; OpenStreetMap contributors"),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:              envString("S3_REGION", ""),
		S3Bucket:              envString("S3_BUCKET", ""),
		S3AccessKey:           envString("S3_ACCESS_KEY", ""),
		S3SecretKey:           envString("S3_SECRET_KEY", ""),
		S3Endpoint:            envString("S3_ENDPOINT", ""),
		S3PresignExpiryExport: envDuration("S3_PRESIGN_EXPIRY_EXPORT", 1*time.Hour),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// LoadDatabase reads only what the admin CLI needs, so it runs without the
// server's required secrets.
func LoadDatabase() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:        envString("APP_ENV", "development"),
		DBDriver:      envString("DB_DRIVER", "sqlite"),
		DBConnection:  envString("DB_CONNECTION", "./data/usermap.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),
		DefaultActive: envBool("DEFAULT_ACTIVE", true),
	}
}

// validateProduction ensures mail delivery is real in production.
// Development may use the log mailer, which only prints links.
func validateProduction(cfg *Config) {
	if cfg.MailProvider == "log" {
		slog.Error("production deployment requires MAIL_PROVIDER=resend or MAIL_PROVIDER=smtp",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envPrefixes parses a comma separated list of CIDRs or single addresses.
// Invalid entries are skipped, which only ever trusts fewer proxies.
func envPrefixes(key string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				slog.Warn("config invalid CIDR, ignoring", "key", key, "value", entry)
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("config invalid address, ignoring", "key", key, "value", entry)
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasStorage reports whether S3 export storage is configured.
func (c *Config) HasStorage() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
// Safe to expose in ctx, templates and client-facing contexts.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:      c.AppName,
		AppEnv:       c.AppEnv,
		AppURL:       c.AppURL,
		Port:         c.Port,
		SupportEmail: c.SupportEmail,

		EmailFrom: c.EmailFrom,

		LeafletTilesURL:         c.LeafletTilesURL,
		LeafletTilesAttribution: c.LeafletTilesAttribution,

		S3Endpoint: c.S3Endpoint, // Needed for CSP policies
	}
}
