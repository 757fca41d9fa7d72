package service

import (
	"context"
	"fmt"
	"geohost/internal/integrations/mail"
	"geohost/internal/integrations/vault"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strings"
	"time"
)

const defaultUsername = "admin"

type (
	CredentialService interface {
		// Credentials returns the login of an instance read from the secret store.
		Credentials(ctx context.Context, instance *types.Instance) (types.InstanceCredentials, error)
		// Deliver mails the owner either the ready notice or the error notice. It
		// never fails; problems are logged.
		Deliver(ctx context.Context, instance *types.Instance)
	}

	CredentialConfig struct {
		FrontendURL  string
		SupportEmail string
		Timeout      time.Duration
	}

	credentialService struct {
		secrets vault.SecretReader
		mailer  mail.Mailer
		cfg     CredentialConfig
	}
)

func NewCredentialService(secrets vault.SecretReader, mailer mail.Mailer, cfg CredentialConfig) CredentialService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &credentialService{secrets: secrets, mailer: mailer, cfg: cfg}
}

func (c *credentialService) Credentials(ctx context.Context, instance *types.Instance) (types.InstanceCredentials, error) {
	if instance.Package.VaultURL == "" {
		return nil, errors.Errorf("package of %s has no secret location", instance.Name)
	}

	secrets, err := c.secrets.Credentials(ctx, instance.Package.VaultURL, instance.Name)
	if err != nil {
		return nil, err
	}

	result := types.InstanceCredentials{"USERNAME": defaultUsername}
	for k, v := range secrets {
		result[k] = v
	}
	return result, nil
}

func (c *credentialService) Deliver(ctx context.Context, instance *types.Instance) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	data := mail.InstanceMailData{
		Name:         instance.Owner.FullName(),
		AppName:      instance.Name,
		URL:          instance.URL(),
		DashboardURL: c.dashboardURL(instance.Name),
		SupportEmail: c.cfg.SupportEmail,
	}

	template := mail.TemplateReady
	if _, err := c.Credentials(ctx, instance); err != nil {
		logger.Warn("credentials not available, sending error notice",
			zap.String("instance", instance.Name),
			zap.Error(err))
		template = mail.TemplateError
	}

	body, err := mail.Render(template, data)
	if err != nil {
		logger.Error("failed to render credential mail", zap.String("instance", instance.Name), zap.Error(err))
		return
	}

	err = c.mailer.Send(ctx, mail.Message{
		To:      []string{instance.Owner.Email},
		Subject: fmt.Sprintf("%s is ready", instance.Name),
		HTML:    body,
	})
	if err != nil {
		logger.Error("failed to send credential mail",
			zap.String("instance", instance.Name),
			zap.String("to", instance.Owner.Email),
			zap.Error(err))
		return
	}
	logger.Info("credential mail sent", zap.String("instance", instance.Name), zap.String("template", template))
}

func (c *credentialService) dashboardURL(name string) string {
	u := fmt.Sprintf("%s#/dashboard?q=%s", c.cfg.FrontendURL, name)
	return strings.Replace(u, "#/#", "#", 1)
}
