package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/service"
)

type AuditHandler struct {
	audit  *service.AuditService
	logger *zap.Logger
}

func NewAuditHandler(audit *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// RecentEvents handles GET /api/v1/campuses/:campus_id/audit-events
func (h *AuditHandler) RecentEvents(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	events, err := h.audit.Recent(c.Request.Context(), c.Param("campus_id"), limit)
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInternal, "audit event query failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// PurgeOldEvents handles DELETE /api/v1/audit-events. Retention cutoff in
// days comes from the query string; the purge is age-based and approximate
// around the boundary.
func (h *AuditHandler) PurgeOldEvents(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil || days < 1 {
		respondError(c, h.logger, apperrors.New(apperrors.CodeInvalidRequest, "days must be a positive integer"))
		return
	}

	deleted, err := h.audit.ClearOlderThan(c.Request.Context(), days)
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInternal, "audit retention purge failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "days": days})
}
