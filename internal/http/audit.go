package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/audit"
	auditrepo "github.com/mrlokans/elibrary/internal/database/audit"
	"github.com/mrlokans/elibrary/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// Events pages through the audit trail, newest first.
// GET /api/audit?type=&user_id=&page=&limit=
func (ac *AuditController) Events(c *gin.Context) {
	page, limit := pageParams(c)
	filter := auditrepo.Filter{
		EventType: entities.AuditEventType(c.Query("type")),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "Invalid user_id")
			return
		}
		filter.UserID = uint(id)
	}

	events, total, err := ac.auditService.GetEvents(filter)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to load audit events", err))
		return
	}
	respondPage(c, events, page, limit, total)
}
