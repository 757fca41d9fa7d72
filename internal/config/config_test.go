package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Setenv("TENANT_PREFIXES", "devops-, staging- ,")
	t.Setenv("DISPATCH_TIMEOUT", "5s")
	t.Setenv("PROBE_CONCURRENCY", "not-a-number")
	t.Setenv("WEBHOOK_SOURCE", "ArgoCD")
	t.Setenv("VAULT_BASE_URL", "https://vault.example.com/")

	cfg := New()
	assert.Equal(t, []string{"devops-", "staging-"}, cfg.TenantPrefixes)
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 10, cfg.ProbeConcurrency)
	assert.Equal(t, "argocd", cfg.WebhookSource)
	assert.Equal(t, "https://vault.example.com", cfg.VaultBaseURL)
	assert.Equal(t, time.Duration(0), cfg.BuildArgoTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad health check cron", mutate: func(c *Config) { c.HealthCheckCron = "every minute" }, wantErr: true},
		{name: "seconds field is rejected", mutate: func(c *Config) { c.WebhookCleanupCron = "0 0 3 * * *" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DatabaseDriver = "mysql" }, wantErr: true},
		{name: "postgres driver", mutate: func(c *Config) { c.DatabaseDriver = "postgres" }},
		{name: "zero probe concurrency", mutate: func(c *Config) { c.ProbeConcurrency = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
