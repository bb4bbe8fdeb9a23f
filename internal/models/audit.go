package models

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Audit event types. One constant per sensitive operation boundary.
const (
	EventCredentialStore     = "credential_store"
	EventCredentialAccess    = "credential_access"
	EventCredentialRotation  = "credential_rotation"
	EventCredentialMigration = "credential_migration"
	EventGatewayConfigured   = "gateway_configured"
	EventGatewayTested       = "gateway_tested"
	EventSettlementInitiated = "settlement_initiated"
	EventSettlementCreated   = "settlement_created"
	EventSettlementCompleted = "settlement_completed"
	EventSettlementFailed    = "settlement_failed"
	EventWebhookProcessed    = "webhook_processed"
	EventWebhookTampering    = "webhook_tampering"
	EventSecurityAudit       = "security_audit"
)

// EventDetails answers "what happened and with what result" without joining
// against other collections. The three non-Extra fields are mandatory.
type EventDetails struct {
	OperationPerformed string         `json:"operation_performed" bson:"operation_performed"`
	OperationResult    string         `json:"operation_result" bson:"operation_result"`
	ExecutionTimeMS    int64          `json:"execution_time_ms" bson:"execution_time_ms"`
	Error              string         `json:"error,omitempty" bson:"error,omitempty"`
	Extra              map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
}

type SecurityContext struct {
	IPAddress string `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty" bson:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
}

type SystemContext struct {
	Service     string `json:"service" bson:"service"`
	Hostname    string `json:"hostname,omitempty" bson:"hostname,omitempty"`
	Environment string `json:"environment,omitempty" bson:"environment,omitempty"`
}

// AuditEvent is an append-only record of one sensitive operation. Entries
// are never mutated after insertion.
type AuditEvent struct {
	ID              string          `json:"id" bson:"_id"`
	EventType       string          `json:"event_type" bson:"event_type"`
	Severity        Severity        `json:"severity" bson:"severity"`
	CampusID        string          `json:"campus_id,omitempty" bson:"campus_id,omitempty"`
	EventDetails    EventDetails    `json:"event_details" bson:"event_details"`
	SecurityContext SecurityContext `json:"security_context" bson:"security_context"`
	SystemContext   SystemContext   `json:"system_context" bson:"system_context"`
	ComplianceTags  []string        `json:"compliance_tags,omitempty" bson:"compliance_tags,omitempty"`
	IsSensitiveData bool            `json:"is_sensitive_data" bson:"is_sensitive_data"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
}

// SecurityIssue is one finding from a campus security audit.
type SecurityIssue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
}

// SecurityAuditReport is the result of PerformSecurityAudit.
type SecurityAuditReport struct {
	CampusID         string          `json:"campus_id"`
	OverallScore     int             `json:"overall_score"`
	SecurityIssues   []SecurityIssue `json:"security_issues"`
	ComplianceStatus string          `json:"compliance_status"`
	Recommendations  []string        `json:"recommendations"`
	GeneratedAt      time.Time       `json:"generated_at"`
}
