package service

import (
	"context"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// SLAConfigService exposes the per-priority SLA budgets. Edits apply to a
// ticket the next time its deadline is recomputed.
type SLAConfigService struct {
	configs repository.SLAConfigRepository
	gate    *auth.Gate
	clock   sla.Clock
}

// NewSLAConfigService creates the service. Edits are stamped with clock.
func NewSLAConfigService(configs repository.SLAConfigRepository, gate *auth.Gate, clock sla.Clock) *SLAConfigService {
	return &SLAConfigService{configs: configs, gate: gate, clock: clock}
}

// List returns every configured priority.
func (s *SLAConfigService) List(ctx context.Context, id domain.Identity) ([]domain.SLAConfig, error) {
	if err := s.gate.Authorize(id, auth.OpViewSLA, nil); err != nil {
		return nil, err
	}
	configs, err := s.configs.List(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("sla config store", err)
	}
	return configs, nil
}

// Update replaces the budgets for one priority.
func (s *SLAConfigService) Update(ctx context.Context, id domain.Identity, priority domain.TicketPriority, responseMinutes, resolutionMinutes int) (*domain.SLAConfig, error) {
	details := map[string]any{}
	if !priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if responseMinutes <= 0 {
		details["response_minutes"] = "must be positive"
	}
	if resolutionMinutes <= 0 {
		details["resolution_minutes"] = "must be positive"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid sla configuration", details)
	}
	if err := s.gate.Authorize(id, auth.OpEditSLA, nil); err != nil {
		return nil, err
	}

	cfg := &domain.SLAConfig{
		Priority:          priority,
		ResponseMinutes:   responseMinutes,
		ResolutionMinutes: resolutionMinutes,
		UpdatedAt:         s.clock.Now(),
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, apperrors.NewUnavailable("sla config store", err)
	}
	return cfg, nil
}
