package service

import (
	"context"
	"fmt"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// Security audit scoring. Each finding carries a deduction; the overall
// score starts at 100 and floors at 0.

const criticalEventLookback = 30 * 24 * time.Hour

// PerformSecurityAudit evaluates a campus's payment-security posture and
// logs the audit itself as an event.
func (s *CredentialService) PerformSecurityAudit(ctx context.Context, campusID string) (*models.SecurityAuditReport, error) {
	op := s.audit.StartOperation(models.EventSecurityAudit, campusID, "perform_security_audit")

	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return nil, err
	}

	report := &models.SecurityAuditReport{
		CampusID:       campusID,
		OverallScore:   100,
		SecurityIssues: []models.SecurityIssue{},
		GeneratedAt:    time.Now(),
	}
	deduct := func(points int, issue models.SecurityIssue, recommendation string) {
		report.OverallScore -= points
		report.SecurityIssues = append(report.SecurityIssues, issue)
		if recommendation != "" {
			report.Recommendations = append(report.Recommendations, recommendation)
		}
	}

	if details.LegacyCredentials != nil {
		deduct(30, models.SecurityIssue{
			Severity:    models.SeverityHigh,
			Category:    "credential_storage",
			Description: "gateway credentials are stored in plaintext legacy format",
		}, "Run the legacy credential migration to encrypt stored credentials.")
	}
	if details.EncryptedCredentials == nil && details.LegacyCredentials == nil {
		deduct(10, models.SecurityIssue{
			Severity:    models.SeverityLow,
			Category:    "credential_storage",
			Description: "no payment gateway credentials are configured",
		}, "Configure at least one payment gateway to enable online fee collection.")
	}

	for gw, gs := range details.GatewayStatus {
		if gs.Configured && !gs.Enabled {
			deduct(5, models.SecurityIssue{
				Severity:    models.SeverityLow,
				Category:    "gateway_state",
				Description: fmt.Sprintf("%s has stored credentials but is disabled", gw),
			}, "")
		}
		if gs.Enabled && gs.TestStatus == "failed" {
			deduct(15, models.SecurityIssue{
				Severity:    models.SeverityMedium,
				Category:    "gateway_state",
				Description: fmt.Sprintf("%s is enabled but its last credential test failed", gw),
			}, fmt.Sprintf("Re-test and rotate the %s credentials.", gw))
		}
	}

	// Razorpay without a dedicated webhook secret falls back to the key
	// secret for signature checks; flag it.
	if details.EncryptedCredentials != nil {
		if set, decErr := s.cipher.Decrypt(details.EncryptedCredentials); decErr == nil {
			if entry, ok := set[models.GatewayRazorpay]; ok {
				if rz, ok := entry.Credentials.(models.RazorpayCredentials); ok && rz.WebhookSecret == "" {
					deduct(10, models.SecurityIssue{
						Severity:    models.SeverityMedium,
						Category:    "webhook_security",
						Description: "razorpay has no dedicated webhook secret configured",
					}, "Configure a dedicated webhook secret in the Razorpay dashboard.")
				}
			}
		}
	}

	criticalCount, err := s.audit.RecentCriticalCount(ctx, campusID, criticalEventLookback)
	if err == nil && criticalCount > 0 {
		deduct(int(10*criticalCount), models.SecurityIssue{
			Severity:    models.SeverityHigh,
			Category:    "security_events",
			Description: fmt.Sprintf("%d critical security events in the last 30 days", criticalCount),
		}, "Investigate recent critical security events before the next settlement run.")
	}

	if report.OverallScore < 0 {
		report.OverallScore = 0
	}
	switch {
	case report.OverallScore >= 90:
		report.ComplianceStatus = "compliant"
	case report.OverallScore >= 70:
		report.ComplianceStatus = "needs_attention"
	default:
		report.ComplianceStatus = "non_compliant"
	}

	op.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{
		"overall_score": report.OverallScore,
		"issues":        len(report.SecurityIssues),
	})
	return report, nil
}
