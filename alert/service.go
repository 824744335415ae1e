package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/store"
)

// UpdateParams is a partial alert configuration patch. Nil fields keep
// their current values; a new configuration requires ThresholdPercent.
type UpdateParams struct {
	ThresholdPercent *int
	Channel          *store.AlertChannel
	Enabled          *bool
}

// Service owns alert configuration reads and writes. Every write re-runs
// the breach check so callers learn the immediate threshold status in the
// same round trip.
type Service struct {
	configs  store.AlertConfigStore
	detector *Detector
	logger   *slog.Logger
	auditLog *audit.Logger
}

// NewService creates a Service. auditLog may be nil.
func NewService(configs store.AlertConfigStore, detector *Detector, logger *slog.Logger, auditLog *audit.Logger) *Service {
	return &Service{
		configs:  configs,
		detector: detector,
		logger:   logger,
		auditLog: auditLog,
	}
}

// Get returns the tenant's alert configuration.
func (s *Service) Get(ctx context.Context, tenantID string) (*store.AlertConfig, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("alert: get config: %w", err)
	}
	return cfg, nil
}

// Update applies a partial configuration change and reports whether the
// tenant is already over the resulting threshold.
func (s *Service) Update(ctx context.Context, tenantID string, p UpdateParams) (*store.AlertConfig, bool, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		if p.ThresholdPercent == nil {
			return nil, false, billing.Errf(billing.CodeValidation, "threshold_percent is required to create an alert")
		}
		// Fresh configs start enabled, matching the column default.
		cfg = &store.AlertConfig{
			TenantID: tenantID,
			Channel:  store.ChannelEmail,
			Enabled:  true,
		}
	default:
		return nil, false, billing.Wrap(billing.CodePersistence, err, "read alert config")
	}

	if p.ThresholdPercent != nil {
		if *p.ThresholdPercent < 1 || *p.ThresholdPercent > 100 {
			return nil, false, billing.Errf(billing.CodeValidation, "threshold_percent must be between 1 and 100, got %d", *p.ThresholdPercent)
		}
		cfg.ThresholdPercent = *p.ThresholdPercent
	}
	if p.Channel != nil {
		if !store.ValidAlertChannels[*p.Channel] {
			return nil, false, billing.Errf(billing.CodeValidation, "invalid alert channel %q", *p.Channel)
		}
		cfg.Channel = *p.Channel
	}
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}

	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, false, billing.Wrap(billing.CodePersistence, err, "save alert config")
	}
	s.logger.Info("alert config saved",
		"tenant_id", tenantID,
		"threshold_percent", cfg.ThresholdPercent,
		"channel", string(cfg.Channel),
		"enabled", cfg.Enabled,
	)
	if s.auditLog != nil {
		s.auditLog.LogConfigChange(ctx, tenantID, "tenant",
			fmt.Sprintf("budget alert: threshold=%d%% channel=%s enabled=%t", cfg.ThresholdPercent, cfg.Channel, cfg.Enabled))
	}

	// The config write already succeeded; a failed breach check is reported
	// as not-breached rather than failing the save.
	breached, err := s.detector.CheckAndTrigger(ctx, tenantID)
	if err != nil {
		s.logger.Error("post-save alert check failed",
			"tenant_id", tenantID,
			"error", err,
		)
		return cfg, false, nil
	}
	return cfg, breached, nil
}
