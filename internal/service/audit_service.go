package service

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/metrics"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// AlertFunc is invoked synchronously for every critical event before Log
// returns. Wire it to the paging/alerting integration.
type AlertFunc func(event *models.AuditEvent)

// AuditService is the append-only audit and security event log. Every
// sensitive operation reports here; critical events additionally trigger the
// alert hook.
type AuditService struct {
	store       AuditStore
	alert       AlertFunc
	logger      *zap.Logger
	environment string
	hostname    string
}

func NewAuditService(store AuditStore, alert AlertFunc, environment string, logger *zap.Logger) *AuditService {
	hostname, _ := os.Hostname()
	return &AuditService{
		store:       store,
		alert:       alert,
		logger:      logger,
		environment: environment,
		hostname:    hostname,
	}
}

// Log validates and persists one event. The three mandatory detail fields
// are filled with placeholders rather than rejected: a malformed audit call
// must still leave a trail.
func (s *AuditService) Log(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Severity == "" {
		event.Severity = models.SeverityLow
	}
	if event.EventDetails.OperationPerformed == "" {
		event.EventDetails.OperationPerformed = "unspecified"
	}
	if event.EventDetails.OperationResult == "" {
		event.EventDetails.OperationResult = "unknown"
	}
	event.SystemContext = models.SystemContext{
		Service:     "payment-settlement",
		Hostname:    s.hostname,
		Environment: s.environment,
	}

	metrics.SecurityEvents.WithLabelValues(event.EventType, string(event.Severity)).Inc()

	if err := s.store.Insert(ctx, event); err != nil {
		// The audit trail failing must be loud but must not mask the
		// underlying operation's outcome.
		s.logger.Error("audit event persistence failed",
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return err
	}

	if event.Severity == models.SeverityCritical {
		s.logger.Error("critical security event",
			zap.String("event_type", event.EventType),
			zap.String("campus_id", event.CampusID),
			zap.String("operation", event.EventDetails.OperationPerformed))
		if s.alert != nil {
			s.alert(event)
		}
	}

	return nil
}

// Operation is a helper for the common log-before-return pattern. Start it
// when the operation begins; Finish records outcome and elapsed time.
type Operation struct {
	audit     *AuditService
	eventType string
	campusID  string
	name      string
	started   time.Time
	security  models.SecurityContext
	sensitive bool
}

func (s *AuditService) StartOperation(eventType, campusID, name string) *Operation {
	return &Operation{
		audit:     s,
		eventType: eventType,
		campusID:  campusID,
		name:      name,
		started:   time.Now(),
	}
}

func (o *Operation) WithSecurityContext(sc models.SecurityContext) *Operation {
	o.security = sc
	return o
}

func (o *Operation) Sensitive() *Operation {
	o.sensitive = true
	return o
}

func (o *Operation) Finish(ctx context.Context, severity models.Severity, result string, opErr error, extra map[string]any) {
	details := models.EventDetails{
		OperationPerformed: o.name,
		OperationResult:    result,
		ExecutionTimeMS:    time.Since(o.started).Milliseconds(),
		Extra:              extra,
	}
	if opErr != nil {
		details.Error = opErr.Error()
	}
	_ = o.audit.Log(ctx, &models.AuditEvent{
		EventType:       o.eventType,
		Severity:        severity,
		CampusID:        o.campusID,
		EventDetails:    details,
		SecurityContext: o.security,
		IsSensitiveData: o.sensitive,
	})
}

// Recent returns a campus's newest events, most recent first.
func (s *AuditService) Recent(ctx context.Context, campusID string, limit int64) ([]*models.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.FindRecent(ctx, campusID, limit)
}

// ClearOlderThan purges events older than the given number of days. The
// cutoff is purely age-based and approximate around the boundary.
func (s *AuditService) ClearOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("audit retention purge complete",
		zap.Int("days", days),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

// RecentCriticalCount reports critical events for a campus in the lookback
// window. Used by the security audit scoring.
func (s *AuditService) RecentCriticalCount(ctx context.Context, campusID string, lookback time.Duration) (int64, error) {
	return s.store.CountSince(ctx, campusID, models.SeverityCritical, time.Now().Add(-lookback))
}
