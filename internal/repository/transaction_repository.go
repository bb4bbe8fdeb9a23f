package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, campus_id, fee_id, student_id, gateway, amount, currency, status,
	gateway_order_id, gateway_payment_id, webhook_verified, settlement_id,
	completed_at, created_at, updated_at
`

func scanTransaction(row interface{ Scan(...any) error }) (*models.PaymentTransaction, error) {
	txn := &models.PaymentTransaction{}
	var orderID, paymentID, settlementID sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&txn.ID, &txn.CampusID, &txn.FeeID, &txn.StudentID, &txn.Gateway,
		&txn.Amount, &txn.Currency, &txn.Status,
		&orderID, &paymentID, &txn.WebhookVerified, &settlementID,
		&completedAt, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.GatewayOrderID = orderID.String
	txn.GatewayPaymentID = paymentID.String
	txn.SettlementID = settlementID.String
	if completedAt.Valid {
		t := completedAt.Time
		txn.CompletedAt = &t
	}
	return txn, nil
}

func (r *TransactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (
			id, campus_id, fee_id, student_id, gateway, amount, currency, status,
			gateway_order_id, gateway_payment_id, webhook_verified, completed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		txn.ID, txn.CampusID, txn.FeeID, txn.StudentID, txn.Gateway,
		txn.Amount, txn.Currency, txn.Status,
		nullable(txn.GatewayOrderID), nullable(txn.GatewayPaymentID),
		txn.WebhookVerified, txn.CompletedAt,
		txn.CreatedAt, txn.UpdatedAt,
	)
	return err
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`
	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return txn, err
}

// FindEligible returns transactions eligible for settlement: successful,
// webhook-verified, completed inside the window, and not yet consumed by a
// prior settlement.
func (r *TransactionRepository) FindEligible(ctx context.Context, campusID string, gw models.Gateway, period models.SettlementPeriod) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE campus_id = $1
		  AND gateway = $2
		  AND status = $3
		  AND webhook_verified = TRUE
		  AND settlement_id IS NULL
		  AND completed_at > $4
		  AND completed_at <= $5
		ORDER BY completed_at
	`
	rows, err := r.db.QueryContext(ctx, query, campusID, gw, models.TransactionStatusSuccess, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.PaymentTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// UpdateStatus marks a payment attempt's terminal state. The status guard
// keeps the transition one-shot: a transaction already success is not
// re-applied.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, gatewayPaymentID string, webhookVerified bool) (bool, error) {
	query := `
		UPDATE payment_transactions
		SET status = $1, gateway_payment_id = $2, webhook_verified = $3,
		    completed_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query, status, nullable(gatewayPaymentID), webhookVerified, time.Now(), id, models.TransactionStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
