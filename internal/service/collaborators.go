package service

import (
	"context"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// Collaborator interfaces consumed by the services. Concrete implementations
// live in internal/repository; tests supply in-memory fakes.

type BankDetailsStore interface {
	Get(ctx context.Context, campusID string) (*models.BankDetails, error)
	UpdateCredentials(ctx context.Context, campusID string, encrypted *models.EncryptedCredential, status map[models.Gateway]models.GatewayStatus, clearLegacy bool) error
	UpdateGatewayStatus(ctx context.Context, campusID string, status map[models.Gateway]models.GatewayStatus) error
}

type TransactionStore interface {
	FindEligible(ctx context.Context, campusID string, gw models.Gateway, period models.SettlementPeriod) ([]*models.PaymentTransaction, error)
}

type SettlementStore interface {
	Create(ctx context.Context, s *models.PaymentSettlement) error
	GetByID(ctx context.Context, id string) (*models.PaymentSettlement, error)
	GetByBatchID(ctx context.Context, gw models.Gateway, batchID string) (*models.PaymentSettlement, error)
	Transition(ctx context.Context, id string, from, to models.SettlementStatus, update models.SettlementUpdate) (bool, error)
}

type AuditStore interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	FindRecent(ctx context.Context, campusID string, limit int64) ([]*models.AuditEvent, error)
	CountSince(ctx context.Context, campusID string, severity models.Severity, since time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Locker interface {
	AcquireSettlementLock(ctx context.Context, campusID, gateway string, ttl time.Duration) (bool, error)
	ReleaseSettlementLock(ctx context.Context, campusID, gateway string) error
	MarkWebhookSeen(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error)
}

// Notifier dispatches settlement notifications. Fire-and-forget: failures
// are logged by callers, never propagated.
type Notifier interface {
	NotifySettlement(ctx context.Context, settlement *models.PaymentSettlement) error
}
