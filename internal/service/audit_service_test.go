package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

func TestAuditLogFillsDefaults(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewAuditService(store, nil, "test", zap.NewNop())

	err := svc.Log(context.Background(), &models.AuditEvent{
		EventType: models.EventCredentialAccess,
		CampusID:  testCampusID,
	})
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, models.SeverityLow, event.Severity)
	assert.Equal(t, "unspecified", event.EventDetails.OperationPerformed)
	assert.Equal(t, "unknown", event.EventDetails.OperationResult)
	assert.Equal(t, "payment-settlement", event.SystemContext.Service)
	assert.Equal(t, "test", event.SystemContext.Environment)
}

func TestAuditLogCriticalTriggersAlert(t *testing.T) {
	store := &fakeAuditStore{}
	var alerted []*models.AuditEvent
	svc := NewAuditService(store, func(e *models.AuditEvent) { alerted = append(alerted, e) }, "test", zap.NewNop())

	require.NoError(t, svc.Log(context.Background(), &models.AuditEvent{
		EventType: models.EventWebhookTampering,
		Severity:  models.SeverityCritical,
		CampusID:  testCampusID,
	}))
	require.NoError(t, svc.Log(context.Background(), &models.AuditEvent{
		EventType: models.EventCredentialAccess,
		Severity:  models.SeverityLow,
		CampusID:  testCampusID,
	}))

	require.Len(t, alerted, 1)
	assert.Equal(t, models.EventWebhookTampering, alerted[0].EventType)
}

func TestOperationFinishRecordsOutcome(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewAuditService(store, nil, "test", zap.NewNop())

	op := svc.StartOperation(models.EventSettlementInitiated, testCampusID, "process_automatic_settlement").
		WithSecurityContext(models.SecurityContext{IPAddress: "198.51.100.7"}).
		Sensitive()
	op.Finish(context.Background(), models.SeverityMedium, "failure", assert.AnError, map[string]any{"gateway": "razorpay"})

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, models.EventSettlementInitiated, event.EventType)
	assert.Equal(t, "process_automatic_settlement", event.EventDetails.OperationPerformed)
	assert.Equal(t, "failure", event.EventDetails.OperationResult)
	assert.Equal(t, assert.AnError.Error(), event.EventDetails.Error)
	assert.GreaterOrEqual(t, event.EventDetails.ExecutionTimeMS, int64(0))
	assert.Equal(t, "198.51.100.7", event.SecurityContext.IPAddress)
	assert.True(t, event.IsSensitiveData)
	assert.Equal(t, "razorpay", event.EventDetails.Extra["gateway"])
}

func TestRecentIsNewestFirstAndScoped(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewAuditService(store, nil, "test", zap.NewNop())

	for _, campus := range []string{testCampusID, "other-campus", testCampusID} {
		require.NoError(t, svc.Log(context.Background(), &models.AuditEvent{
			EventType: models.EventCredentialAccess,
			CampusID:  campus,
		}))
	}

	events, err := svc.Recent(context.Background(), testCampusID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.events[2].ID, events[0].ID, "newest event must come first")
}

func TestClearOlderThan(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewAuditService(store, nil, "test", zap.NewNop())

	old := &models.AuditEvent{EventType: models.EventCredentialAccess, CreatedAt: time.Now().AddDate(0, 0, -120)}
	recent := &models.AuditEvent{EventType: models.EventCredentialAccess, CreatedAt: time.Now().AddDate(0, 0, -5)}
	require.NoError(t, svc.Log(context.Background(), old))
	require.NoError(t, svc.Log(context.Background(), recent))

	deleted, err := svc.ClearOlderThan(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.Len(t, store.events, 1)
	assert.Equal(t, recent.ID, store.events[0].ID)
}

func TestPerformSecurityAudit(t *testing.T) {
	t.Run("clean encrypted setup is compliant", func(t *testing.T) {
		f := newCredentialFixture(t)
		f.bank.seed(testCampusID)
		require.NoError(t, f.service.StoreCredentials(context.Background(), testCampusID, razorpaySet()))

		report, err := f.service.PerformSecurityAudit(context.Background(), testCampusID)
		require.NoError(t, err)
		assert.Equal(t, 100, report.OverallScore)
		assert.Equal(t, "compliant", report.ComplianceStatus)
		assert.Empty(t, report.SecurityIssues)
	})

	t.Run("legacy plaintext costs thirty points", func(t *testing.T) {
		f := newCredentialFixture(t)
		details := f.bank.seed(testCampusID)
		details.LegacyCredentials = razorpaySet()

		report, err := f.service.PerformSecurityAudit(context.Background(), testCampusID)
		require.NoError(t, err)
		assert.Equal(t, 70, report.OverallScore)
		assert.Equal(t, "needs_attention", report.ComplianceStatus)
		require.NotEmpty(t, report.SecurityIssues)
		assert.Equal(t, "credential_storage", report.SecurityIssues[0].Category)
	})

	t.Run("missing razorpay webhook secret is flagged", func(t *testing.T) {
		f := newCredentialFixture(t)
		f.bank.seed(testCampusID)
		set := razorpaySet()
		entry := set[models.GatewayRazorpay]
		creds := entry.Credentials.(models.RazorpayCredentials)
		creds.WebhookSecret = ""
		entry.Credentials = creds
		set[models.GatewayRazorpay] = entry
		require.NoError(t, f.service.StoreCredentials(context.Background(), testCampusID, set))

		report, err := f.service.PerformSecurityAudit(context.Background(), testCampusID)
		require.NoError(t, err)
		assert.Equal(t, 90, report.OverallScore)
		found := false
		for _, issue := range report.SecurityIssues {
			if issue.Category == "webhook_security" {
				found = true
			}
		}
		assert.True(t, found, "expected a webhook_security issue")
	})

	t.Run("recent critical events drag the score down", func(t *testing.T) {
		f := newCredentialFixture(t)
		f.bank.seed(testCampusID)
		require.NoError(t, f.service.StoreCredentials(context.Background(), testCampusID, razorpaySet()))

		audit := NewAuditService(f.audit, nil, "test", zap.NewNop())
		for i := 0; i < 4; i++ {
			require.NoError(t, audit.Log(context.Background(), &models.AuditEvent{
				EventType: models.EventWebhookTampering,
				Severity:  models.SeverityCritical,
				CampusID:  testCampusID,
			}))
		}

		report, err := f.service.PerformSecurityAudit(context.Background(), testCampusID)
		require.NoError(t, err)
		assert.Equal(t, 60, report.OverallScore)
		assert.Equal(t, "non_compliant", report.ComplianceStatus)
	})

	t.Run("score floors at zero", func(t *testing.T) {
		f := newCredentialFixture(t)
		details := f.bank.seed(testCampusID)
		details.LegacyCredentials = razorpaySet()

		audit := NewAuditService(f.audit, nil, "test", zap.NewNop())
		for i := 0; i < 12; i++ {
			require.NoError(t, audit.Log(context.Background(), &models.AuditEvent{
				EventType: models.EventWebhookTampering,
				Severity:  models.SeverityCritical,
				CampusID:  testCampusID,
			}))
		}

		report, err := f.service.PerformSecurityAudit(context.Background(), testCampusID)
		require.NoError(t, err)
		assert.Equal(t, 0, report.OverallScore)
		assert.Equal(t, "non_compliant", report.ComplianceStatus)
	})
}
