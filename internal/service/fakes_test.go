package service

import (
	"context"
	"sync"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// In-memory fakes for the collaborator interfaces.

type fakeBankStore struct {
	mu      sync.Mutex
	records map[string]*models.BankDetails
}

func newFakeBankStore() *fakeBankStore {
	return &fakeBankStore{records: map[string]*models.BankDetails{}}
}

func (f *fakeBankStore) seed(campusID string) *models.BankDetails {
	details := &models.BankDetails{
		CampusID:      campusID,
		AccountHolder: "Springfield High School",
		AccountNumber: "1234567890",
		IFSCCode:      "HDFC0000123",
		BankName:      "HDFC Bank",
		GatewayStatus: map[models.Gateway]models.GatewayStatus{},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.records[campusID] = details
	return details
}

func (f *fakeBankStore) Get(ctx context.Context, campusID string) (*models.BankDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[campusID], nil
}

func (f *fakeBankStore) UpdateCredentials(ctx context.Context, campusID string, encrypted *models.EncryptedCredential, status map[models.Gateway]models.GatewayStatus, clearLegacy bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	details, ok := f.records[campusID]
	if !ok {
		return apperrors.New(apperrors.CodeBankDetailsMissing, "no bank details")
	}
	details.EncryptedCredentials = encrypted
	details.GatewayStatus = status
	if clearLegacy {
		details.LegacyCredentials = nil
	}
	details.UpdatedAt = time.Now()
	return nil
}

func (f *fakeBankStore) UpdateGatewayStatus(ctx context.Context, campusID string, status map[models.Gateway]models.GatewayStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	details, ok := f.records[campusID]
	if !ok {
		return apperrors.New(apperrors.CodeBankDetailsMissing, "no bank details")
	}
	details.GatewayStatus = status
	return nil
}

type fakeTransactionStore struct {
	transactions []*models.PaymentTransaction
}

func (f *fakeTransactionStore) FindEligible(ctx context.Context, campusID string, gw models.Gateway, period models.SettlementPeriod) ([]*models.PaymentTransaction, error) {
	var eligible []*models.PaymentTransaction
	for _, txn := range f.transactions {
		if txn.CampusID != campusID || txn.Gateway != gw {
			continue
		}
		if txn.Status != models.TransactionStatusSuccess || !txn.WebhookVerified || txn.SettlementID != "" {
			continue
		}
		if txn.CompletedAt == nil || !txn.CompletedAt.After(period.Start) || txn.CompletedAt.After(period.End) {
			continue
		}
		eligible = append(eligible, txn)
	}
	return eligible, nil
}

type fakeSettlementStore struct {
	mu          sync.Mutex
	settlements map[string]*models.PaymentSettlement
	txns        *fakeTransactionStore
}

func newFakeSettlementStore(txns *fakeTransactionStore) *fakeSettlementStore {
	return &fakeSettlementStore{settlements: map[string]*models.PaymentSettlement{}, txns: txns}
}

func (f *fakeSettlementStore) Create(ctx context.Context, s *models.PaymentSettlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.settlements {
		if existing.CampusID == s.CampusID && existing.GatewayProvider == s.GatewayProvider &&
			existing.SettlementPeriodStart.Equal(s.SettlementPeriodStart) &&
			existing.SettlementPeriodEnd.Equal(s.SettlementPeriodEnd) {
			return apperrors.New(apperrors.CodeDuplicateSettlement, "duplicate settlement window")
		}
	}
	copied := *s
	f.settlements[s.ID] = &copied
	if f.txns != nil {
		for _, txn := range f.txns.transactions {
			for _, id := range s.TransactionSummary.TransactionIDs {
				if txn.ID == id {
					txn.SettlementID = s.ID
				}
			}
		}
	}
	return nil
}

func (f *fakeSettlementStore) GetByID(ctx context.Context, id string) (*models.PaymentSettlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settlements[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSettlementStore) GetByBatchID(ctx context.Context, gw models.Gateway, batchID string) (*models.PaymentSettlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.settlements {
		if s.GatewayProvider == gw && s.SettlementBatchID == batchID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSettlementStore) Transition(ctx context.Context, id string, from, to models.SettlementStatus, update models.SettlementUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settlements[id]
	if !ok || s.SettlementStatus != from {
		return false, nil
	}
	s.SettlementStatus = to
	if update.BatchID != "" {
		s.SettlementBatchID = update.BatchID
	}
	if update.Reference != "" {
		s.GatewayReference = update.Reference
	}
	if update.FailureReason != "" {
		s.FailureReason = update.FailureReason
	}
	s.Retryable = update.Retryable
	if to == models.SettlementStatusCompleted {
		now := time.Now()
		s.CompletedAt = &now
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

type fakeAuditStore struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (f *fakeAuditStore) Insert(ctx context.Context, event *models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) FindRecent(ctx context.Context, campusID string, limit int64) ([]*models.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.AuditEvent
	for i := len(f.events) - 1; i >= 0 && int64(len(matched)) < limit; i-- {
		if f.events[i].CampusID == campusID {
			matched = append(matched, f.events[i])
		}
	}
	return matched, nil
}

func (f *fakeAuditStore) CountSince(ctx context.Context, campusID string, severity models.Severity, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.events {
		if e.CampusID == campusID && e.Severity == severity && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.AuditEvent
	var deleted int64
	for _, e := range f.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return deleted, nil
}

func (f *fakeAuditStore) byType(eventType string) []*models.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.AuditEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	denyLock bool
	seen     map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, seen: map[string]bool{}}
}

func (f *fakeLocker) AcquireSettlementLock(ctx context.Context, campusID, gateway string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyLock {
		return false, nil
	}
	key := campusID + ":" + gateway
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseSettlementLock(ctx context.Context, campusID, gateway string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, campusID+":"+gateway)
	return nil
}

func (f *fakeLocker) MarkWebhookSeen(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := gateway + ":" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []*models.PaymentSettlement
}

func (f *fakeNotifier) NotifySettlement(ctx context.Context, settlement *models.PaymentSettlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, settlement)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
