package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/dto"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/service"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// SLAHandler exposes per-priority SLA budgets.
type SLAHandler struct {
	service *service.SLAConfigService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(configService *service.SLAConfigService) *SLAHandler {
	return &SLAHandler{service: configService}
}

// List GET /sla/configs.
func (h *SLAHandler) List(c *fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	configs, err := h.service.List(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.SLAConfigResponse, 0, len(configs))
	for i := range configs {
		items = append(items, slaConfigResponse(&configs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /sla/configs/:priority.
func (h *SLAHandler) Update(c *fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.UpdateSLAConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.service.Update(c.UserContext(), id, domain.TicketPriority(c.Params("priority")), req.ResponseMinutes, req.ResolutionMinutes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaConfigResponse(cfg)})
}

func slaConfigResponse(cfg *domain.SLAConfig) dto.SLAConfigResponse {
	return dto.SLAConfigResponse{
		Priority:          cfg.Priority,
		ResponseMinutes:   cfg.ResponseMinutes,
		ResolutionMinutes: cfg.ResolutionMinutes,
		UpdatedAt:         cfg.UpdatedAt,
	}
}
