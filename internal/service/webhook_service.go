package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/gateway"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/metrics"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// webhookSeenTTL bounds the redelivery cache. Within the TTL a redelivered
// event returns without touching the database; the settlement state guard
// still keeps completion exactly-once when the cache is unavailable.
const webhookSeenTTL = 48 * time.Hour

// WebhookService verifies inbound gateway webhooks and reconciles settlement
// state. An invalid signature is treated as tampering, not a bad request.
type WebhookService struct {
	credentials *CredentialService
	settlements SettlementStore
	registry    gateway.Registry
	locker      Locker
	audit       *AuditService
	notifier    Notifier
	logger      *zap.Logger
}

func NewWebhookService(
	credentials *CredentialService,
	settlements SettlementStore,
	registry gateway.Registry,
	locker Locker,
	audit *AuditService,
	notifier Notifier,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		credentials: credentials,
		settlements: settlements,
		registry:    registry,
		locker:      locker,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
	}
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	Success      bool                      `json:"success"`
	Transitioned bool                      `json:"transitioned"`
	Settlement   *models.PaymentSettlement `json:"settlement,omitempty"`
}

// HandleSettlementWebhook verifies the provider signature, locates the
// settlement by its gateway batch ID, and applies the guarded state
// transition. The settlement must belong to the campus whose credentials
// verified the signature. Completion side effects fire only when this
// delivery actually performed the transition.
func (s *WebhookService) HandleSettlementWebhook(ctx context.Context, campusID string, gw models.Gateway, payload []byte, signature string, sc models.SecurityContext) (*WebhookResult, error) {
	provider, ok := s.registry.Get(gw)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnknownGateway, "unsupported gateway").
			WithDetails(map[string]any{"gateway": gw})
	}

	set, err := s.credentials.RetrieveCredentials(ctx, campusID)
	if err != nil {
		return nil, err
	}
	entry, configured := set[gw]
	if !configured || entry.Credentials == nil {
		return nil, apperrors.New(apperrors.CodeGatewayNotConfigured, "gateway is not configured for this campus")
	}

	if !provider.VerifyWebhookSignature(entry.Credentials, payload, signature) {
		metrics.WebhookVerifications.WithLabelValues(string(gw), "rejected").Inc()
		op := s.audit.StartOperation(models.EventWebhookTampering, campusID, "verify_webhook_signature").
			WithSecurityContext(sc)
		op.Finish(ctx, models.SeverityCritical, "failure", nil, map[string]any{
			"gateway":      gw,
			"payload_size": len(payload),
		})
		return nil, apperrors.New(apperrors.CodeWebhookSignature, "webhook signature verification failed").
			WithUser("The webhook could not be authenticated.")
	}
	metrics.WebhookVerifications.WithLabelValues(string(gw), "verified").Inc()

	event, err := provider.ParseSettlementEvent(payload)
	if err != nil {
		return nil, err
	}

	// Known redeliveries return before any DB work. Cache keys are scoped to
	// the campus so one tenant cannot occupy another's delivery slot.
	first, err := s.locker.MarkWebhookSeen(ctx, string(gw), campusID+":"+event.EventID, webhookSeenTTL)
	if err != nil {
		s.logger.Warn("webhook replay cache unavailable", zap.Error(err))
		first = true
	}
	if !first {
		s.logger.Debug("webhook redelivery short-circuited",
			zap.String("gateway", string(gw)), zap.String("event_id", event.EventID))
		return &WebhookResult{Success: true, Transitioned: false}, nil
	}

	settlement, err := s.settlements.GetByBatchID(ctx, gw, event.BatchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "settlement lookup failed", err)
	}
	if settlement == nil {
		return nil, apperrors.New(apperrors.CodeSettlementNotFound, "no settlement matches the webhook batch id").
			WithDetails(map[string]any{"batch_id": event.BatchID, "gateway": gw})
	}
	if settlement.CampusID != campusID {
		op := s.audit.StartOperation(models.EventWebhookTampering, campusID, "match_webhook_settlement").
			WithSecurityContext(sc)
		op.Finish(ctx, models.SeverityCritical, "failure", nil, map[string]any{
			"gateway":           gw,
			"batch_id":          event.BatchID,
			"settlement_campus": settlement.CampusID,
		})
		// A batch owned by another campus is reported as unknown.
		return nil, apperrors.New(apperrors.CodeSettlementNotFound, "no settlement matches the webhook batch id").
			WithDetails(map[string]any{"batch_id": event.BatchID, "gateway": gw})
	}

	update := models.SettlementUpdate{Reference: event.Reference}
	if event.Status == models.SettlementStatusFailed {
		update.FailureReason = "gateway reported settlement failure"
		update.Retryable = true
	}

	transitioned, err := s.settlements.Transition(ctx, settlement.ID, models.SettlementStatusProcessing, event.Status, update)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "settlement transition failed", err)
	}
	if !transitioned {
		return nil, apperrors.New(apperrors.CodeInvalidTransition, "settlement is not awaiting gateway confirmation").
			WithDetails(map[string]any{"settlement_id": settlement.ID, "status": settlement.SettlementStatus})
	}

	op := s.audit.StartOperation(models.EventWebhookProcessed, settlement.CampusID, "apply_settlement_webhook").
		WithSecurityContext(sc)
	op.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{
		"gateway":       gw,
		"settlement_id": settlement.ID,
		"new_status":    event.Status,
	})

	updated, err := s.settlements.GetByID(ctx, settlement.ID)
	if err != nil || updated == nil {
		updated = settlement
	}

	if event.Status == models.SettlementStatusCompleted {
		done := s.audit.StartOperation(models.EventSettlementCompleted, settlement.CampusID, "complete_settlement")
		done.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{
			"settlement_id": settlement.ID,
			"net_amount":    settlement.NetSettlementAmount,
		})
		if s.notifier != nil {
			if err := s.notifier.NotifySettlement(ctx, updated); err != nil {
				s.logger.Warn("settlement completion notification failed",
					zap.String("settlement_id", settlement.ID), zap.Error(err))
			}
		}
	}

	return &WebhookResult{Success: true, Transitioned: transitioned, Settlement: updated}, nil
}
