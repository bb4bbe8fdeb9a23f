package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/service"
)

type SettlementHandler struct {
	settlements *service.SettlementService
	webhooks    *service.WebhookService
	logger      *zap.Logger
}

func NewSettlementHandler(settlements *service.SettlementService, webhooks *service.WebhookService, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, webhooks: webhooks, logger: logger}
}

type processSettlementRequest struct {
	Gateway string `json:"gateway" binding:"required"`
	AsOf    string `json:"as_of"`
}

// ProcessSettlement handles POST /api/v1/campuses/:campus_id/settlements
func (h *SettlementHandler) ProcessSettlement(c *gin.Context) {
	var req processSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed request body", err))
		return
	}

	gw, err := models.ParseGateway(req.Gateway)
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeUnknownGateway, "unsupported gateway", err))
		return
	}

	var asOf time.Time
	if req.AsOf != "" {
		asOf, err = time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidRequest, "as_of must be RFC3339", err))
			return
		}
	}

	settlement, err := h.settlements.ProcessAutomaticSettlement(c.Request.Context(), c.Param("campus_id"), gw, asOf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"settlement": settlement})
}

// SettlementWebhook handles POST /api/v1/webhooks/:gateway/settlement.
// The raw body is read before any parsing: signatures cover the exact bytes
// the provider sent.
func (h *SettlementHandler) SettlementWebhook(c *gin.Context) {
	gw, err := models.ParseGateway(c.Param("gateway"))
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeUnknownGateway, "unsupported gateway", err))
		return
	}

	campusID := c.Query("campus_id")
	if campusID == "" {
		respondError(c, h.logger, apperrors.New(apperrors.CodeInvalidRequest, "campus_id query parameter is required"))
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidRequest, "failed to read webhook body", err))
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Razorpay-Signature")
	}

	sc := models.SecurityContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: c.GetString("request_id"),
	}

	result, err := h.webhooks.HandleSettlementWebhook(c.Request.Context(), campusID, gw, payload, signature, sc)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
