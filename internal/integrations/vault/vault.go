package vault

import (
	"context"
	"geohost/internal/integrations"
	"github.com/pkg/errors"
	"net/http"
	"strings"
	"time"
)

const (
	tokenHeader = "X-Vault-Token"
	loginPath   = "/v1/auth/kartoza-apps/login"
)

type (
	// SecretReader reads the generated secrets of a deployment.
	SecretReader interface {
		Credentials(ctx context.Context, secretURL, appName string) (map[string]string, error)
	}

	Config struct {
		BaseURL  string
		RoleID   string
		SecretID string
		Timeout  time.Duration
	}

	client struct {
		cfg  Config
		auth integrations.HttpClient
		kv   integrations.HttpClient
	}

	loginResponse struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}

	kvResponse struct {
		Data struct {
			Data map[string]interface{} `json:"data"`
		} `json:"data"`
	}
)

func New(cfg Config) SecretReader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		cfg:  cfg,
		auth: integrations.NewHttpClientWithTimeout(cfg.BaseURL, cfg.Timeout),
		kv:   integrations.NewHttpClientWithTimeout("", cfg.Timeout),
	}
}

func (c *client) login(ctx context.Context) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.RoleID == "" || c.cfg.SecretID == "" {
		return "", errors.New("vault approle is not configured")
	}

	resp := loginResponse{}
	body := map[string]string{"role_id": c.cfg.RoleID, "secret_id": c.cfg.SecretID}
	if err := c.auth.Do(ctx, http.MethodPost, loginPath, body, &resp); err != nil {
		return "", errors.Wrap(err, "vault login failed")
	}
	if resp.Auth.ClientToken == "" {
		return "", errors.New("vault login returned no token")
	}
	return resp.Auth.ClientToken, nil
}

// Credentials logs in with the AppRole and reads the KV v2 secret at secretURL+appName,
// keeping only password-like keys.
func (c *client) Credentials(ctx context.Context, secretURL, appName string) (map[string]string, error) {
	token, err := c.login(ctx)
	if err != nil {
		return nil, err
	}

	resp := kvResponse{}
	header := integrations.Header{Key: tokenHeader, Value: token}
	if err := c.kv.Do(ctx, http.MethodGet, secretURL+appName, nil, &resp, header); err != nil {
		return nil, errors.Wrapf(err, "failed to read secret for %s", appName)
	}

	result := make(map[string]string)
	for key, value := range resp.Data.Data {
		if !strings.Contains(strings.ToLower(key), "password") {
			continue
		}
		if s, ok := value.(string); ok {
			result[key] = s
		}
	}
	return result, nil
}
