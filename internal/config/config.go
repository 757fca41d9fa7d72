package config

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogMode    string
	ListenAddr string

	ServerSSLCertFile, ServerSSLKeyFile string

	DatabaseDriver string
	DatabaseDSN    string

	// ProxyAPIKey is sent as the apikey header on every dispatch to the build system.
	ProxyAPIKey     string
	DispatchTimeout time.Duration

	ProbeTimeout       time.Duration
	ProbeConcurrency   int
	HealthCheckCron    string
	WebhookSource      string
	TenantPrefixes     []string
	BuildArgoTimeout   time.Duration
	BuildArgoSweepCron string

	WebhookRetention   time.Duration
	WebhookCleanupCron string

	VaultBaseURL  string
	VaultRoleID   string
	VaultSecretID string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	SupportEmail string
	FrontendURL  string

	ErpnextBaseURL   string
	ErpnextAPIKey    string
	ErpnextAPISecret string

	StripeSecretKey string

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageBucket    string
	StorageSecure    bool
}

// New reads the configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func New() Config {
	_ = godotenv.Load()

	return Config{
		LogMode:            getenv("LOG_MODE", "development"),
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		ServerSSLCertFile:  os.Getenv("SERVER_SSL_CERT_FILE"),
		ServerSSLKeyFile:   os.Getenv("SERVER_SSL_KEY_FILE"),
		DatabaseDriver:     getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:        getenv("DATABASE_DSN", "geohost.db"),
		ProxyAPIKey:        os.Getenv("PROXY_API_KEY"),
		DispatchTimeout:    getenvDuration("DISPATCH_TIMEOUT", 30*time.Second),
		ProbeTimeout:       getenvDuration("PROBE_TIMEOUT", 10*time.Second),
		ProbeConcurrency:   getenvInt("PROBE_CONCURRENCY", 10),
		HealthCheckCron:    getenv("HEALTH_CHECK_CRON", "*/5 * * * *"),
		WebhookSource:      strings.ToLower(getenv("WEBHOOK_SOURCE", "argocd")),
		TenantPrefixes:     splitList(getenv("TENANT_PREFIXES", "devops-")),
		BuildArgoTimeout:   getenvDuration("BUILD_ARGO_TIMEOUT", 0),
		BuildArgoSweepCron: getenv("BUILD_ARGO_SWEEP_CRON", "*/15 * * * *"),
		WebhookRetention:   getenvDuration("WEBHOOK_RETENTION", 30*24*time.Hour),
		WebhookCleanupCron: getenv("WEBHOOK_CLEANUP_CRON", "0 3 * * *"),
		VaultBaseURL:       strings.TrimRight(os.Getenv("VAULT_BASE_URL"), "/"),
		VaultRoleID:        os.Getenv("VAULT_ROLE_ID"),
		VaultSecretID:      os.Getenv("VAULT_SECRET_ID"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getenvInt("SMTP_PORT", 587),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		MailFrom:           getenv("MAIL_FROM", "noreply@geohost.local"),
		SupportEmail:       os.Getenv("SUPPORT_EMAIL"),
		FrontendURL:        strings.TrimRight(os.Getenv("FRONTEND_URL"), "/"),
		ErpnextBaseURL:     strings.TrimRight(os.Getenv("ERPNEXT_BASE_URL"), "/"),
		ErpnextAPIKey:      os.Getenv("ERPNEXT_API_KEY"),
		ErpnextAPISecret:   os.Getenv("ERPNEXT_API_SECRET"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		StorageEndpoint:    os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey:   os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:   os.Getenv("STORAGE_SECRET_KEY"),
		StorageRegion:      getenv("STORAGE_REGION", "us-east-1"),
		StorageBucket:      getenv("STORAGE_BUCKET", "webhook-archive"),
		StorageSecure:      getenv("STORAGE_SECURE", "true") == "true",
	}
}

// Validate checks the values that would otherwise only fail when a job is scheduled.
func (c Config) Validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedules := map[string]string{
		"HEALTH_CHECK_CRON":     c.HealthCheckCron,
		"WEBHOOK_CLEANUP_CRON":  c.WebhookCleanupCron,
		"BUILD_ARGO_SWEEP_CRON": c.BuildArgoSweepCron,
	}
	for key, expr := range schedules {
		if _, err := parser.Parse(expr); err != nil {
			return errors.Wrapf(err, "invalid cron expression in %s", key)
		}
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported database driver: %s", c.DatabaseDriver)
	}

	if c.ProbeConcurrency <= 0 {
		return errors.New("PROBE_CONCURRENCY must be positive")
	}
	return nil
}

func (c Config) HasTLSConfig() bool {
	return c.ServerSSLCertFile != "" && c.ServerSSLKeyFile != ""
}

func (c Config) HasVault() bool {
	return c.VaultBaseURL != "" && c.VaultRoleID != "" && c.VaultSecretID != ""
}

func (c Config) HasErpnext() bool {
	return c.ErpnextBaseURL != ""
}

func (c Config) HasObjectStorage() bool {
	return c.StorageEndpoint != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
