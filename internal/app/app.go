package app

import (
	"geohost/internal/config"
	"geohost/internal/database"
	"geohost/internal/eventbus"
	"geohost/internal/integrations/billing"
	"geohost/internal/integrations/erpnext"
	"geohost/internal/integrations/jenkins"
	"geohost/internal/integrations/mail"
	"geohost/internal/integrations/vault"
	"geohost/internal/manager"
	"geohost/internal/service"
	"geohost/internal/storage"
	"geohost/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"net/http"
)

// App holds the wired service graph shared by the server and the operator commands.
type App struct {
	Config    config.Config
	DB        *gorm.DB
	Bus       eventbus.Bus
	Archive   storage.Storage
	Manager   manager.Manager
	Scheduler service.Scheduler
}

func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, db)
}

// Wire builds the services on top of an already opened database.
func Wire(cfg config.Config, db *gorm.DB) (*App, error) {
	archive, err := newArchive(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	activityRepo := database.NewActivityRepository(db)
	instanceRepo := database.NewInstanceRepository(db)
	catalogRepo := database.NewCatalogRepository(db)
	userRepo := database.NewUserRepository(db)
	salesOrderRepo := database.NewSalesOrderRepository(db)
	eventRepo := database.NewWebhookEventRepository(db)

	var erp erpnext.Client
	if cfg.HasErpnext() {
		erp = erpnext.New(cfg.ErpnextBaseURL, cfg.ErpnextAPIKey, cfg.ErpnextAPISecret)
	} else {
		erp = erpnext.NewNoop()
	}

	secrets := vault.New(vault.Config{
		BaseURL:  cfg.VaultBaseURL,
		RoleID:   cfg.VaultRoleID,
		SecretID: cfg.VaultSecretID,
	})
	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	dispatcher := jenkins.NewDispatcher(cfg.ProxyAPIKey, cfg.DispatchTimeout)
	validate := service.NewValidator()

	credentialService := service.NewCredentialService(secrets, mailer, service.CredentialConfig{
		FrontendURL:  cfg.FrontendURL,
		SupportEmail: cfg.SupportEmail,
	})
	instanceService := service.NewInstanceService(instanceRepo, activityRepo, salesOrderRepo,
		credentialService, billing.NewStripe(cfg.StripeSecretKey), bus)
	activityService := service.NewActivityService(activityRepo, catalogRepo, instanceService, dispatcher, erp, bus)
	provisioningService := service.NewProvisioningService(activityService, instanceService, activityRepo, instanceRepo,
		catalogRepo, userRepo, salesOrderRepo, validate)
	webhookService := service.NewWebhookService(service.WebhookConfig{
		Source:         cfg.WebhookSource,
		TenantPrefixes: cfg.TenantPrefixes,
		Retention:      cfg.WebhookRetention,
	}, eventRepo, instanceService, activityService, archive, validate)
	healthCheckService := service.NewHealthCheckService(service.HealthCheckConfig{
		Source:      cfg.WebhookSource,
		Timeout:     cfg.ProbeTimeout,
		Concurrency: cfg.ProbeConcurrency,
	}, &http.Client{}, instanceService, eventRepo)
	salesOrderService := service.NewSalesOrderService(salesOrderRepo, userRepo, provisioningService, erp, validate)

	scheduler, err := service.NewScheduler(service.SchedulerConfig{
		HealthCheckCron:    cfg.HealthCheckCron,
		WebhookCleanupCron: cfg.WebhookCleanupCron,
		ArchiveWebhooks:    cfg.HasObjectStorage(),
		BuildArgoSweepCron: cfg.BuildArgoSweepCron,
		BuildArgoTimeout:   cfg.BuildArgoTimeout,
	}, healthCheckService, webhookService, activityService)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	mn := manager.New(provisioningService, instanceService, activityService, webhookService,
		credentialService, salesOrderService, userRepo)

	return &App{
		Config:    cfg,
		DB:        db,
		Bus:       bus,
		Archive:   archive,
		Manager:   mn,
		Scheduler: scheduler,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	logger.Info("DB Closed", zap.Error(err))
	return err
}

func newArchive(cfg config.Config) (storage.Storage, error) {
	if !cfg.HasObjectStorage() {
		return storage.NewMemory(), nil
	}

	s, err := storage.NewObjectStorage(storage.Credentials{
		Endpoint:    cfg.StorageEndpoint,
		AccessKeyID: cfg.StorageAccessKey,
		SecretKey:   cfg.StorageSecretKey,
		Region:      cfg.StorageRegion,
		Bucket:      cfg.StorageBucket,
		Secure:      cfg.StorageSecure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create object storage client")
	}
	return s, nil
}
