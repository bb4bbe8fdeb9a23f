package models

import "time"

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// PaymentTransaction is one payment attempt by a student against a fee.
// SettlementID is set exactly once, when a settlement batch consumes the
// transaction; eligible-transaction queries exclude rows where it is set.
type PaymentTransaction struct {
	ID               string            `json:"id" db:"id"`
	CampusID         string            `json:"campus_id" db:"campus_id"`
	FeeID            string            `json:"fee_id" db:"fee_id"`
	StudentID        string            `json:"student_id" db:"student_id"`
	Gateway          Gateway           `json:"gateway" db:"gateway"`
	Amount           float64           `json:"amount" db:"amount"`
	Currency         string            `json:"currency" db:"currency"`
	Status           TransactionStatus `json:"status" db:"status"`
	GatewayOrderID   string            `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	WebhookVerified  bool              `json:"webhook_verified" db:"webhook_verified"`
	SettlementID     string            `json:"settlement_id,omitempty" db:"settlement_id"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

type SettlementStatus string

const (
	SettlementStatusPending    SettlementStatus = "pending"
	SettlementStatusProcessing SettlementStatus = "processing"
	SettlementStatusCompleted  SettlementStatus = "completed"
	SettlementStatusFailed     SettlementStatus = "failed"
)

type SettlementSchedule string

const (
	ScheduleDaily   SettlementSchedule = "daily"
	ScheduleWeekly  SettlementSchedule = "weekly"
	ScheduleMonthly SettlementSchedule = "monthly"
	ScheduleCustom  SettlementSchedule = "custom"
)

// TransactionSummary records which transactions a settlement consumed.
type TransactionSummary struct {
	TransactionIDs []string `json:"transaction_ids"`
	Count          int      `json:"count"`
}

// SecurityMetadata carries the tamper-evidence hash of a settlement's
// contents. The hash is deterministic regardless of transaction ordering.
type SecurityMetadata struct {
	SettlementHash string `json:"settlement_hash"`
}

// PaymentSettlement is one batched payout of transaction proceeds, net of
// fees and taxes, to a campus bank account. Records are never deleted;
// failures after creation are status transitions.
type PaymentSettlement struct {
	ID                     string             `json:"id" db:"id"`
	CampusID               string             `json:"campus_id" db:"campus_id"`
	GatewayProvider        Gateway            `json:"gateway_provider" db:"gateway_provider"`
	SettlementBatchID      string             `json:"settlement_batch_id" db:"settlement_batch_id"`
	SettlementPeriodStart  time.Time          `json:"settlement_period_start" db:"settlement_period_start"`
	SettlementPeriodEnd    time.Time          `json:"settlement_period_end" db:"settlement_period_end"`
	SettlementStatus       SettlementStatus   `json:"settlement_status" db:"settlement_status"`
	TotalTransactionAmount float64            `json:"total_transaction_amount" db:"total_transaction_amount"`
	TotalGatewayFees       float64            `json:"total_gateway_fees" db:"total_gateway_fees"`
	TotalPlatformFees      float64            `json:"total_platform_fees" db:"total_platform_fees"`
	TotalTaxes             float64            `json:"total_taxes" db:"total_taxes"`
	NetSettlementAmount    float64            `json:"net_settlement_amount" db:"net_settlement_amount"`
	TransactionSummary     TransactionSummary `json:"transaction_summary" db:"transaction_summary"`
	SecurityMetadata       SecurityMetadata   `json:"security_metadata" db:"security_metadata"`
	GatewayReference       string             `json:"gateway_reference,omitempty" db:"gateway_reference"`
	FailureReason          string             `json:"failure_reason,omitempty" db:"failure_reason"`
	Retryable              bool               `json:"retryable" db:"retryable"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
	CompletedAt            *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
}

// SettlementAmounts is the output of the settlement calculator.
type SettlementAmounts struct {
	TotalTransactionAmount float64 `json:"total_transaction_amount"`
	TotalGatewayFees       float64 `json:"total_gateway_fees"`
	TotalPlatformFees      float64 `json:"total_platform_fees"`
	TotalTaxes             float64 `json:"total_taxes"`
	NetSettlementAmount    float64 `json:"net_settlement_amount"`
}

// SettlementPeriod is a half-open window (start, end] of transaction
// completion times considered by one settlement run.
type SettlementPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SettlementUpdate carries the mutable fields applied during a status
// transition. Empty strings leave the stored value untouched.
type SettlementUpdate struct {
	BatchID       string
	Reference     string
	FailureReason string
	Retryable     bool
}

// Database schema. The unique index on (campus, gateway, period) is the
// storage-level guard against two concurrent runs settling the same window.
const TransactionSchema = `
CREATE TABLE IF NOT EXISTS payment_transactions (
    id VARCHAR(36) PRIMARY KEY,
    campus_id VARCHAR(64) NOT NULL,
    fee_id VARCHAR(64) NOT NULL,
    student_id VARCHAR(64) NOT NULL,
    gateway VARCHAR(20) NOT NULL,
    amount DECIMAL(19, 4) NOT NULL,
    currency VARCHAR(3) NOT NULL DEFAULT 'INR',
    status VARCHAR(20) NOT NULL,
    gateway_order_id VARCHAR(255),
    gateway_payment_id VARCHAR(255),
    webhook_verified BOOLEAN NOT NULL DEFAULT FALSE,
    settlement_id VARCHAR(36),
    completed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_txn_campus_gateway ON payment_transactions (campus_id, gateway);
CREATE INDEX IF NOT EXISTS idx_txn_settlement ON payment_transactions (settlement_id);
CREATE INDEX IF NOT EXISTS idx_txn_completed_at ON payment_transactions (completed_at);
`

const SettlementSchema = `
CREATE TABLE IF NOT EXISTS payment_settlements (
    id VARCHAR(36) PRIMARY KEY,
    campus_id VARCHAR(64) NOT NULL,
    gateway_provider VARCHAR(20) NOT NULL,
    settlement_batch_id VARCHAR(255) NOT NULL,
    settlement_period_start TIMESTAMP NOT NULL,
    settlement_period_end TIMESTAMP NOT NULL,
    settlement_status VARCHAR(20) NOT NULL,
    total_transaction_amount DECIMAL(19, 4) NOT NULL,
    total_gateway_fees DECIMAL(19, 4) NOT NULL,
    total_platform_fees DECIMAL(19, 4) NOT NULL,
    total_taxes DECIMAL(19, 4) NOT NULL,
    net_settlement_amount DECIMAL(19, 4) NOT NULL,
    transaction_summary JSONB NOT NULL,
    security_metadata JSONB NOT NULL,
    gateway_reference VARCHAR(255),
    failure_reason TEXT,
    retryable BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP,

    CONSTRAINT uq_settlement_window UNIQUE (campus_id, gateway_provider, settlement_period_start, settlement_period_end)
);
CREATE INDEX IF NOT EXISTS idx_settlement_batch ON payment_settlements (settlement_batch_id);
CREATE INDEX IF NOT EXISTS idx_settlement_status ON payment_settlements (settlement_status);
`
