package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/dto"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/service"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{service: auditService}
}

// ListForTicket GET /tickets/:id/audit.
func (h *AuditHandler) ListForTicket(c *fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	result, err := h.service.ListForTicket(c.UserContext(), id, c.Params("id"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(auditPage(result, page, pageSize))
}

// Query GET /audit.
func (h *AuditHandler) Query(c *fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return err
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	result, err := h.service.Query(c.UserContext(), id, repository.AuditQuery{
		TicketID: c.Query("ticket_id"),
		Actor:    c.Query("actor"),
		From:     from,
		To:       to,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(auditPage(result, page, pageSize))
}

func auditPage(result *service.AuditPage, page, pageSize int) fiber.Map {
	items := make([]dto.AuditEntryResponse, 0, len(result.Entries))
	for _, entry := range result.Entries {
		items = append(items, dto.AuditEntryResponse{
			ID:            entry.ID,
			Actor:         entry.Actor,
			Action:        entry.Action,
			TicketID:      entry.TicketID,
			BeforeVersion: entry.BeforeVersion,
			AfterVersion:  entry.AfterVersion,
			FromStatus:    entry.FromStatus,
			ToStatus:      entry.ToStatus,
			Details:       entry.Details,
			Timestamp:     entry.Timestamp,
		})
	}
	return fiber.Map{
		"data":       items,
		"pagination": dto.Pagination{Page: page, PageSize: pageSize, Total: result.Total},
	}
}
