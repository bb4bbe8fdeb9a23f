package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/service"
)

type GatewayHandler struct {
	credentials *service.CredentialService
	// previousSecret is the configured fallback for key rotation when the
	// request does not carry the old key explicitly.
	previousSecret string
	logger         *zap.Logger
}

func NewGatewayHandler(credentials *service.CredentialService, previousSecret string, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{credentials: credentials, previousSecret: previousSecret, logger: logger}
}

type configureGatewayRequest struct {
	Enabled       bool   `json:"enabled"`
	Mode          string `json:"mode"`
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
	WebhookSecret string `json:"webhook_secret"`
	MerchantKey   string `json:"merchant_key"`
	MerchantSalt  string `json:"merchant_salt"`
	AppID         string `json:"app_id"`
	SecretKey     string `json:"secret_key"`
}

func (r configureGatewayRequest) credentials(gw models.Gateway) models.GatewayCredentials {
	switch gw {
	case models.GatewayRazorpay:
		return models.RazorpayCredentials{KeyID: r.KeyID, KeySecret: r.KeySecret, WebhookSecret: r.WebhookSecret}
	case models.GatewayPayU:
		return models.PayUCredentials{MerchantKey: r.MerchantKey, MerchantSalt: r.MerchantSalt}
	case models.GatewayCashfree:
		return models.CashfreeCredentials{AppID: r.AppID, SecretKey: r.SecretKey}
	}
	return nil
}

// ConfigureGateway handles POST /api/v1/campuses/:campus_id/gateways/:gateway
func (h *GatewayHandler) ConfigureGateway(c *gin.Context) {
	campusID := c.Param("campus_id")
	gw, err := models.ParseGateway(c.Param("gateway"))
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeUnknownGateway, "unsupported gateway", err))
		return
	}

	var req configureGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed request body", err))
		return
	}

	masked, err := h.credentials.ConfigureGateway(c.Request.Context(), campusID, gw, req.credentials(gw), req.Enabled, models.GatewayMode(req.Mode))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"configuration": masked})
}

// TestGateway handles POST /api/v1/campuses/:campus_id/gateways/:gateway/test
func (h *GatewayHandler) TestGateway(c *gin.Context) {
	campusID := c.Param("campus_id")
	gw, err := models.ParseGateway(c.Param("gateway"))
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeUnknownGateway, "unsupported gateway", err))
		return
	}

	result, err := h.credentials.TestGateway(c.Request.Context(), campusID, gw)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAvailableGateways handles GET /api/v1/campuses/:campus_id/gateways
func (h *GatewayHandler) GetAvailableGateways(c *gin.Context) {
	gateways, err := h.credentials.GetAvailableGateways(c.Request.Context(), c.Param("campus_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gateways)
}

// MigrateLegacy handles POST /api/v1/campuses/:campus_id/gateways/migrate
func (h *GatewayHandler) MigrateLegacy(c *gin.Context) {
	migrated, err := h.credentials.MigrateLegacy(c.Request.Context(), c.Param("campus_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"migrated": migrated})
}

type rotateKeyRequest struct {
	OldKey string `json:"old_key"`
}

// RotateKey handles POST /api/v1/campuses/:campus_id/gateways/rotate-key
func (h *GatewayHandler) RotateKey(c *gin.Context) {
	var req rotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed request body", err))
		return
	}

	oldKey := req.OldKey
	if oldKey == "" {
		oldKey = h.previousSecret
	}
	if oldKey == "" {
		respondError(c, h.logger, apperrors.New(apperrors.CodeInvalidRequest,
			"old_key is required when no previous encryption key is configured"))
		return
	}

	if err := h.credentials.RotateKey(c.Request.Context(), c.Param("campus_id"), oldKey); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rotated": true})
}

// SecurityAudit handles GET /api/v1/campuses/:campus_id/security-audit
func (h *GatewayHandler) SecurityAudit(c *gin.Context) {
	report, err := h.credentials.PerformSecurityAudit(c.Request.Context(), c.Param("campus_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
