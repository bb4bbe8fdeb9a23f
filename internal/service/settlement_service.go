package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/config"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/gateway"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/metrics"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// SettlementService drives settlement runs end to end: validate gateway
// config, select eligible transactions, calculate amounts, persist the
// settlement record, call the provider, and hand off to webhook-driven
// completion. It does not retry; an external scheduler invokes it per
// (campus, gateway) on a cadence.
type SettlementService struct {
	credentials *CredentialService
	txns        TransactionStore
	settlements SettlementStore
	registry    gateway.Registry
	locker      Locker
	audit       *AuditService
	notifier    Notifier
	cfg         *config.Config
	logger      *zap.Logger
}

func NewSettlementService(
	credentials *CredentialService,
	txns TransactionStore,
	settlements SettlementStore,
	registry gateway.Registry,
	locker Locker,
	audit *AuditService,
	notifier Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		credentials: credentials,
		txns:        txns,
		settlements: settlements,
		registry:    registry,
		locker:      locker,
		audit:       audit,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
	}
}

// ProcessAutomaticSettlement runs one settlement for (campus, gateway) with
// the window ending at asOf (zero value means now). Failures before the
// record is created leave no settlement behind, only an audit entry;
// failures after creation are status transitions.
func (s *SettlementService) ProcessAutomaticSettlement(ctx context.Context, campusID string, gw models.Gateway, asOf time.Time) (*models.PaymentSettlement, error) {
	op := s.audit.StartOperation(models.EventSettlementInitiated, campusID, "process_automatic_settlement")
	if asOf.IsZero() {
		asOf = time.Now()
	}

	settlement, err := s.run(ctx, campusID, gw, asOf)
	if err != nil {
		appErr := apperrors.From(err)
		severity := models.SeverityMedium
		if appErr.Recoverable() {
			severity = models.SeverityLow
		}
		op.Finish(ctx, severity, "failure", err, map[string]any{"gateway": gw})
		metrics.SettlementsProcessed.WithLabelValues(string(gw), "failure").Inc()
		return nil, err
	}

	op.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{
		"gateway":       gw,
		"settlement_id": settlement.ID,
		"net_amount":    settlement.NetSettlementAmount,
	})
	metrics.SettlementsProcessed.WithLabelValues(string(gw), "success").Inc()
	metrics.SettlementAmount.WithLabelValues(string(gw)).Observe(settlement.NetSettlementAmount)
	return settlement, nil
}

func (s *SettlementService) run(ctx context.Context, campusID string, gw models.Gateway, asOf time.Time) (*models.PaymentSettlement, error) {
	provider, ok := s.registry.Get(gw)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnknownGateway, "unsupported gateway").
			WithDetails(map[string]any{"gateway": gw})
	}

	// Validate gateway configuration before touching transactions.
	set, err := s.credentials.RetrieveCredentials(ctx, campusID)
	if err != nil {
		return nil, err
	}
	entry, configured := set[gw]
	if !configured || entry.Credentials == nil || len(entry.Credentials.MissingFields()) > 0 {
		return nil, apperrors.New(apperrors.CodeGatewayNotConfigured, "gateway is not configured for this campus").
			WithUser("Configure the payment gateway before running settlements.")
	}
	if !entry.Enabled {
		return nil, apperrors.New(apperrors.CodeGatewayDisabled, "gateway is disabled for this campus").
			WithUser("Enable the gateway to resume settlements.")
	}

	// The advisory lock spans selection through record creation so two
	// concurrent runs cannot claim overlapping transactions. The storage
	// unique constraint stays as the hard guarantee.
	acquired, err := s.locker.AcquireSettlementLock(ctx, campusID, string(gw), s.cfg.LockTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "settlement lock acquisition failed", err)
	}
	if !acquired {
		return nil, apperrors.New(apperrors.CodeSettlementInProgress, "another settlement run is in progress for this campus and gateway")
	}
	defer func() {
		if err := s.locker.ReleaseSettlementLock(context.Background(), campusID, string(gw)); err != nil {
			s.logger.Warn("failed to release settlement lock",
				zap.String("campus_id", campusID), zap.Error(err))
		}
	}()

	period := SettlementPeriodFor(s.cfg.Fees.Schedule, asOf, s.cfg.Fees.CustomDays)
	eligible, err := s.txns.FindEligible(ctx, campusID, gw, period)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "eligible transaction query failed", err)
	}
	if len(eligible) == 0 {
		return nil, apperrors.New(apperrors.CodeNoEligibleTransactions, "no eligible transactions in the settlement period").
			WithUser("There are no verified payments to settle in this period.")
	}

	amounts := ComputeAmounts(eligible, s.cfg.Fees)
	if err := CheckMinimum(amounts, s.cfg.Fees.MinimumSettlement); err != nil {
		return nil, err
	}

	ids := make([]string, len(eligible))
	for i, txn := range eligible {
		ids[i] = txn.ID
	}

	now := time.Now()
	settlement := &models.PaymentSettlement{
		ID:                     uuid.New().String(),
		CampusID:               campusID,
		GatewayProvider:        gw,
		SettlementBatchID:      "pending-" + uuid.New().String(),
		SettlementPeriodStart:  period.Start,
		SettlementPeriodEnd:    period.End,
		SettlementStatus:       models.SettlementStatusPending,
		TotalTransactionAmount: amounts.TotalTransactionAmount,
		TotalGatewayFees:       amounts.TotalGatewayFees,
		TotalPlatformFees:      amounts.TotalPlatformFees,
		TotalTaxes:             amounts.TotalTaxes,
		NetSettlementAmount:    amounts.NetSettlementAmount,
		TransactionSummary:     models.TransactionSummary{TransactionIDs: ids, Count: len(ids)},
		SecurityMetadata: models.SecurityMetadata{
			SettlementHash: SettlementHash(campusID, gw, ids, amounts.TotalTransactionAmount, amounts.NetSettlementAmount),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.settlements.Create(ctx, settlement); err != nil {
		return nil, err
	}

	created := s.audit.StartOperation(models.EventSettlementCreated, campusID, "create_settlement_record")
	created.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{
		"settlement_id": settlement.ID,
		"transactions":  len(ids),
		"net_amount":    settlement.NetSettlementAmount,
	})

	// From here the record exists: failures become status transitions.
	ack, gwErr := s.initiateWithTimeout(ctx, provider, entry.Credentials, settlement)
	if gwErr != nil {
		update := models.SettlementUpdate{FailureReason: gwErr.Error(), Retryable: true}
		if _, terr := s.settlements.Transition(ctx, settlement.ID, models.SettlementStatusPending, models.SettlementStatusFailed, update); terr != nil {
			s.logger.Error("failed to mark settlement failed",
				zap.String("settlement_id", settlement.ID), zap.Error(terr))
		}
		failOp := s.audit.StartOperation(models.EventSettlementFailed, campusID, "initiate_gateway_settlement")
		failOp.Finish(ctx, models.SeverityHigh, "failure", gwErr, map[string]any{"settlement_id": settlement.ID})
		return nil, gwErr
	}

	update := models.SettlementUpdate{BatchID: ack.SettlementID, Reference: ack.Reference}
	if _, err := s.settlements.Transition(ctx, settlement.ID, models.SettlementStatusPending, models.SettlementStatusProcessing, update); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "settlement status update failed", err)
	}
	settlement.SettlementStatus = models.SettlementStatusProcessing
	settlement.SettlementBatchID = ack.SettlementID
	settlement.GatewayReference = ack.Reference

	s.logger.Info("settlement handed off to gateway",
		zap.String("campus_id", campusID),
		zap.String("gateway", string(gw)),
		zap.String("settlement_id", settlement.ID),
		zap.String("batch_id", ack.SettlementID),
		zap.Float64("net_amount", settlement.NetSettlementAmount))

	return settlement, nil
}

// initiateWithTimeout calls the provider under the configured deadline. A
// timed-out call is a retryable failure, never a settlement stuck pending.
func (s *SettlementService) initiateWithTimeout(ctx context.Context, provider gateway.Provider, creds models.GatewayCredentials, settlement *models.PaymentSettlement) (*gateway.SettlementAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	ack, err := provider.InitiateSettlement(callCtx, creds, settlement)
	metrics.GatewayCallDuration.WithLabelValues(string(provider.Name()), "initiate_settlement").
		Observe(time.Since(start).Seconds())

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "gateway settlement call timed out", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeGatewayUnavailable, "gateway settlement call failed", err)
	}
	return ack, nil
}

// NotifyCompletion dispatches the settlement-completed notification.
// Fire-and-forget: errors are logged only.
func (s *SettlementService) NotifyCompletion(ctx context.Context, settlement *models.PaymentSettlement) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySettlement(ctx, settlement); err != nil {
		s.logger.Warn("settlement notification failed",
			zap.String("settlement_id", settlement.ID), zap.Error(err))
	}
}
