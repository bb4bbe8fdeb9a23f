package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// uniqueViolation is the Postgres error code raised when the settlement
// window constraint rejects a duplicate run.
const uniqueViolation = "23505"

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create inserts the settlement record and marks its transactions as
// consumed, in one database transaction. A duplicate (campus, gateway,
// period) window maps to DATA_DUPLICATE_SETTLEMENT.
func (r *SettlementRepository) Create(ctx context.Context, s *models.PaymentSettlement) error {
	summaryJSON, err := json.Marshal(s.TransactionSummary)
	if err != nil {
		return fmt.Errorf("failed to encode transaction summary: %w", err)
	}
	metadataJSON, err := json.Marshal(s.SecurityMetadata)
	if err != nil {
		return fmt.Errorf("failed to encode security metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO payment_settlements (
			id, campus_id, gateway_provider, settlement_batch_id,
			settlement_period_start, settlement_period_end, settlement_status,
			total_transaction_amount, total_gateway_fees, total_platform_fees,
			total_taxes, net_settlement_amount, transaction_summary,
			security_metadata, retryable, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = tx.ExecContext(ctx, insert,
		s.ID, s.CampusID, s.GatewayProvider, s.SettlementBatchID,
		s.SettlementPeriodStart, s.SettlementPeriodEnd, s.SettlementStatus,
		s.TotalTransactionAmount, s.TotalGatewayFees, s.TotalPlatformFees,
		s.TotalTaxes, s.NetSettlementAmount, summaryJSON,
		metadataJSON, s.Retryable, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return apperrors.Wrap(apperrors.CodeDuplicateSettlement,
				"a settlement already exists for this campus, gateway and period", err)
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	// Mark the consumed transactions; settlement_id IS NULL guards against a
	// racing run claiming the same rows.
	mark := `
		UPDATE payment_transactions
		SET settlement_id = $1, updated_at = $2
		WHERE id = ANY($3) AND settlement_id IS NULL
	`
	result, err := tx.ExecContext(ctx, mark, s.ID, time.Now(), pq.Array(s.TransactionSummary.TransactionIDs))
	if err != nil {
		return fmt.Errorf("failed to mark transactions settled: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if int(marked) != len(s.TransactionSummary.TransactionIDs) {
		return apperrors.New(apperrors.CodeAlreadySettled,
			"one or more transactions were consumed by another settlement")
	}

	return tx.Commit()
}

const settlementColumns = `
	id, campus_id, gateway_provider, settlement_batch_id,
	settlement_period_start, settlement_period_end, settlement_status,
	total_transaction_amount, total_gateway_fees, total_platform_fees,
	total_taxes, net_settlement_amount, transaction_summary, security_metadata,
	gateway_reference, failure_reason, retryable, created_at, updated_at, completed_at
`

func scanSettlement(row interface{ Scan(...any) error }) (*models.PaymentSettlement, error) {
	s := &models.PaymentSettlement{}
	var summary, metadata []byte
	var reference, failureReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&s.ID, &s.CampusID, &s.GatewayProvider, &s.SettlementBatchID,
		&s.SettlementPeriodStart, &s.SettlementPeriodEnd, &s.SettlementStatus,
		&s.TotalTransactionAmount, &s.TotalGatewayFees, &s.TotalPlatformFees,
		&s.TotalTaxes, &s.NetSettlementAmount, &summary, &metadata,
		&reference, &failureReason, &s.Retryable, &s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(summary, &s.TransactionSummary); err != nil {
		return nil, fmt.Errorf("failed to decode transaction summary: %w", err)
	}
	if err := json.Unmarshal(metadata, &s.SecurityMetadata); err != nil {
		return nil, fmt.Errorf("failed to decode security metadata: %w", err)
	}
	s.GatewayReference = reference.String
	s.FailureReason = failureReason.String
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return s, nil
}

func (r *SettlementRepository) GetByID(ctx context.Context, id string) (*models.PaymentSettlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM payment_settlements WHERE id = $1`
	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SettlementRepository) GetByBatchID(ctx context.Context, gw models.Gateway, batchID string) (*models.PaymentSettlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM payment_settlements WHERE gateway_provider = $1 AND settlement_batch_id = $2`
	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, gw, batchID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// Transition moves a settlement from one status to another. The WHERE guard
// on the current status makes the transition exactly-once: a redelivered
// webhook finds no row to update and gets transitioned=false.
func (r *SettlementRepository) Transition(ctx context.Context, id string, from, to models.SettlementStatus, update models.SettlementUpdate) (bool, error) {
	now := time.Now()
	var completedAt *time.Time
	if to == models.SettlementStatusCompleted {
		completedAt = &now
	}

	query := `
		UPDATE payment_settlements
		SET settlement_status = $1,
		    settlement_batch_id = COALESCE(NULLIF($2, ''), settlement_batch_id),
		    gateway_reference = COALESCE(NULLIF($3, ''), gateway_reference),
		    failure_reason = COALESCE(NULLIF($4, ''), failure_reason),
		    retryable = $5,
		    completed_at = COALESCE($6, completed_at),
		    updated_at = $7
		WHERE id = $8 AND settlement_status = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		to, update.BatchID, update.Reference, update.FailureReason,
		update.Retryable, completedAt, now, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition settlement: %w", err)
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}
