package service

import (
	"context"
	"geohost/logger"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

const (
	JobHealthCheck    = "health-check"
	JobArchiveWebhook = "webhook-archive"
	JobExpireBuilds   = "build-argo-timeout"
)

type (
	// Scheduler runs the periodic maintenance of the orchestrator.
	Scheduler interface {
		Start(ctx context.Context) error
		Shutdown() error
		Jobs() []string
	}

	SchedulerConfig struct {
		HealthCheckCron    string
		WebhookCleanupCron string
		// ArchiveWebhooks enables the cleanup job.
		ArchiveWebhooks    bool
		BuildArgoSweepCron string
		// BuildArgoTimeout of zero disables the sweep.
		BuildArgoTimeout time.Duration
	}

	scheduler struct {
		cfg         SchedulerConfig
		scheduler   gocron.Scheduler
		healthCheck HealthCheckService
		webhooks    WebhookService
		activities  ActivityService
		jobs        []string
	}
)

func NewScheduler(cfg SchedulerConfig, healthCheck HealthCheckService, webhooks WebhookService, activities ActivityService) (Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(10, gocron.LimitModeWait))
	if err != nil {
		return nil, err
	}
	return &scheduler{
		cfg:         cfg,
		scheduler:   s,
		healthCheck: healthCheck,
		webhooks:    webhooks,
		activities:  activities,
	}, nil
}

func (s *scheduler) Start(ctx context.Context) error {
	if err := s.add(ctx, JobHealthCheck, s.cfg.HealthCheckCron, s.runHealthCheck); err != nil {
		return err
	}
	if s.cfg.ArchiveWebhooks {
		if err := s.add(ctx, JobArchiveWebhook, s.cfg.WebhookCleanupCron, s.archiveWebhooks); err != nil {
			return err
		}
	}
	if s.cfg.BuildArgoTimeout > 0 {
		if err := s.add(ctx, JobExpireBuilds, s.cfg.BuildArgoSweepCron, s.expireBuilds); err != nil {
			return err
		}
	}

	s.scheduler.Start()
	logger.Info("scheduler started", zap.Strings("jobs", s.jobs))
	return nil
}

func (s *scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *scheduler) Jobs() []string {
	return s.jobs
}

func (s *scheduler) add(ctx context.Context, name, expr string, task func(ctx context.Context)) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task, ctx),
		gocron.WithName(name),
		gocron.WithIdentifier(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return errors.Wrapf(err, "failed to schedule %s", name)
	}
	s.jobs = append(s.jobs, name)
	return nil
}

func (s *scheduler) runHealthCheck(ctx context.Context) {
	if err := s.healthCheck.Run(ctx); err != nil {
		logger.Error("health check run failed", zap.Error(err))
	}
}

func (s *scheduler) archiveWebhooks(ctx context.Context) {
	count, err := s.webhooks.ArchiveOrphans(ctx)
	if err != nil {
		logger.Error("webhook archive failed", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Info("webhook events archived", zap.Int("count", count))
	}
}

func (s *scheduler) expireBuilds(ctx context.Context) {
	count, err := s.activities.ExpireBuilds(ctx, s.cfg.BuildArgoTimeout)
	if err != nil {
		logger.Error("build timeout sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Warn("activities expired waiting for the build system", zap.Int("count", count))
	}
}
