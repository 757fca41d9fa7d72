package service

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/types"
	"geohost/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"net/http"
	"time"
)

type (
	HealthCheckService interface {
		// Run checks every instance that is not terminated, in parallel.
		Run(ctx context.Context) error
		Check(ctx context.Context, instance *types.Instance) error
	}

	HealthCheckConfig struct {
		Source      string
		Timeout     time.Duration
		Concurrency int
	}

	healthCheckService struct {
		cfg             HealthCheckConfig
		client          *http.Client
		instanceService InstanceService
		eventRepository database.WebhookEventRepository
	}
)

// NewHealthCheckService probes with client. Redirects are never followed so a 302
// counts as reachable.
func NewHealthCheckService(cfg HealthCheckConfig, client *http.Client, instanceService InstanceService,
	eventRepo database.WebhookEventRepository) HealthCheckService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if client == nil {
		client = &http.Client{}
	}
	probe := *client
	probe.Timeout = cfg.Timeout
	probe.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &healthCheckService{
		cfg:             cfg,
		client:          &probe,
		instanceService: instanceService,
		eventRepository: eventRepo,
	}
}

func (h *healthCheckService) Run(ctx context.Context) error {
	instances, err := h.instanceService.ListNotTerminated(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for _, instance := range instances {
		instance := instance
		g.Go(func() error {
			if err := h.Check(gctx, instance); err != nil {
				logger.Error("health check failed", zap.String("instance", instance.Name), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (h *healthCheckService) Check(ctx context.Context, instance *types.Instance) error {
	if instance.Status == types.InstanceStatusTerminating {
		deleted, err := h.eventRepository.HasStatusSince(ctx, instance.Name, h.cfg.Source, types.WebhookStatusDeleted, instance.CreatedAt)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}
		return h.instanceService.Terminated(ctx, instance.ID)
	}

	if h.probe(ctx, instance) {
		return h.instanceService.Online(ctx, instance.ID)
	}
	return h.instanceService.Offline(ctx, instance.ID)
}

func (h *healthCheckService) probe(ctx context.Context, instance *types.Instance) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance.URL()+"/", nil)
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		logger.Debug("instance unreachable", zap.String("instance", instance.Name), zap.Error(err))
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusFound
}
