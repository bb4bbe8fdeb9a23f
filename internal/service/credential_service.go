package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/crypto"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/gateway"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// CredentialService owns per-campus gateway credential storage. Credentials
// are sealed by the cipher before they reach the bank-details record; status
// queries only ever see the non-sensitive mirror.
type CredentialService struct {
	bank     BankDetailsStore
	cipher   *crypto.Cipher
	registry gateway.Registry
	audit    *AuditService
	logger   *zap.Logger
}

func NewCredentialService(bank BankDetailsStore, cipher *crypto.Cipher, registry gateway.Registry, audit *AuditService, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		bank:     bank,
		cipher:   cipher,
		registry: registry,
		audit:    audit,
		logger:   logger,
	}
}

func errBankDetailsMissing(campusID string) error {
	return apperrors.New(apperrors.CodeBankDetailsMissing, "campus has no bank details record").
		WithUser("Bank account details must be configured before payment gateways.",
			"Add the school's bank account under settings, then retry.").
		WithDetails(map[string]any{"campus_id": campusID})
}

// requireBankDetails loads the campus bank record or fails with the
// not-configured business error.
func (s *CredentialService) requireBankDetails(ctx context.Context, campusID string) (*models.BankDetails, error) {
	details, err := s.bank.Get(ctx, campusID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "bank details lookup failed", err)
	}
	if details == nil {
		return nil, errBankDetailsMissing(campusID)
	}
	return details, nil
}

// StoreCredentials encrypts the full set and persists envelope plus status
// mirror against the campus bank record. Last-tested fields from the
// existing mirror are carried over.
func (s *CredentialService) StoreCredentials(ctx context.Context, campusID string, set models.CredentialSet) error {
	op := s.audit.StartOperation(models.EventCredentialStore, campusID, "store_credentials").Sensitive()

	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return err
	}

	encrypted, err := s.cipher.Encrypt(set)
	if err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return err
	}

	status := mergeTestResults(set.StatusMirror(), details.GatewayStatus)
	if err := s.bank.UpdateCredentials(ctx, campusID, encrypted, status, false); err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeInternal, "credential persistence failed", err)
		op.Finish(ctx, models.SeverityHigh, "failure", wrapped, nil)
		return wrapped
	}

	op.Finish(ctx, models.SeverityMedium, "success", nil, map[string]any{"gateways": gatewayNames(set)})
	return nil
}

// RetrieveCredentials returns the decrypted set, falling back to legacy
// plaintext storage when no envelope exists. Returns nil when the campus has
// no credentials at all.
func (s *CredentialService) RetrieveCredentials(ctx context.Context, campusID string) (models.CredentialSet, error) {
	op := s.audit.StartOperation(models.EventCredentialAccess, campusID, "retrieve_credentials").Sensitive()

	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return nil, err
	}

	if details.EncryptedCredentials != nil {
		set, err := s.cipher.Decrypt(details.EncryptedCredentials)
		if err != nil {
			op.Finish(ctx, models.SeverityCritical, "failure", err, nil)
			return nil, err
		}
		op.Finish(ctx, models.SeverityLow, "success", nil, nil)
		return set, nil
	}

	if details.LegacyCredentials != nil {
		s.logger.Warn("serving legacy plaintext credentials; run migration",
			zap.String("campus_id", campusID))
		op.Finish(ctx, models.SeverityMedium, "success", nil, map[string]any{"storage": "legacy_plaintext"})
		return details.LegacyCredentials, nil
	}

	op.Finish(ctx, models.SeverityLow, "success", nil, map[string]any{"storage": "none"})
	return nil, nil
}

// ConfigureGateway validates and stores one gateway's credentials, merging
// into the existing set. Validation failures happen before any write.
func (s *CredentialService) ConfigureGateway(ctx context.Context, campusID string, gw models.Gateway, creds models.GatewayCredentials, enabled bool, mode models.GatewayMode) (map[string]any, error) {
	op := s.audit.StartOperation(models.EventGatewayConfigured, campusID, "configure_gateway").Sensitive()

	if creds == nil || creds.Provider() != gw {
		err := apperrors.New(apperrors.CodeUnknownGateway, "credential fields do not match gateway").
			WithDetails(map[string]any{"gateway": gw})
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return nil, err
	}
	if missing := creds.MissingFields(); len(missing) > 0 {
		err := apperrors.New(apperrors.CodeMissingFields,
			fmt.Sprintf("%s configuration is missing required fields: %s", gw, strings.Join(missing, ", "))).
			WithUser("Some required gateway fields are missing.",
				"Provide "+strings.Join(missing, " and ")+" from the gateway dashboard.").
			WithDetails(map[string]any{"gateway": gw, "missing_fields": missing})
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return nil, err
	}

	set, err := s.RetrieveCredentials(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return nil, err
	}
	if set == nil {
		set = models.CredentialSet{}
	}
	set[gw] = models.GatewayEntry{Enabled: enabled, Mode: mode, Credentials: creds}

	if err := s.StoreCredentials(ctx, campusID, set); err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return nil, err
	}

	op.Finish(ctx, models.SeverityMedium, "success", nil, map[string]any{"gateway": gw, "enabled": enabled})
	return crypto.MaskCredentials(set.DisplayMap()), nil
}

// MigrateLegacy encrypts any remaining plaintext credentials and clears the
// legacy column. Idempotent: an already-migrated campus is a no-op.
func (s *CredentialService) MigrateLegacy(ctx context.Context, campusID string) (bool, error) {
	op := s.audit.StartOperation(models.EventCredentialMigration, campusID, "migrate_legacy_credentials")

	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return false, err
	}

	if details.EncryptedCredentials != nil {
		op.Finish(ctx, models.SeverityLow, "noop", nil, map[string]any{"reason": "already_encrypted"})
		return false, nil
	}
	if details.LegacyCredentials == nil {
		op.Finish(ctx, models.SeverityLow, "noop", nil, map[string]any{"reason": "nothing_to_migrate"})
		return false, nil
	}

	encrypted, err := s.cipher.Encrypt(details.LegacyCredentials)
	if err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return false, err
	}

	status := mergeTestResults(details.LegacyCredentials.StatusMirror(), details.GatewayStatus)
	if err := s.bank.UpdateCredentials(ctx, campusID, encrypted, status, true); err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeInternal, "legacy migration persistence failed", err)
		op.Finish(ctx, models.SeverityHigh, "failure", wrapped, nil)
		return false, wrapped
	}

	op.Finish(ctx, models.SeverityMedium, "success", nil, nil)
	return true, nil
}

// RotateKey re-encrypts the campus credential set from the old key to the
// currently configured one. The old key exists only as this function's
// parameter; no shared state is touched.
func (s *CredentialService) RotateKey(ctx context.Context, campusID, oldSecret string) error {
	op := s.audit.StartOperation(models.EventCredentialRotation, campusID, "rotate_credential_key").Sensitive()

	oldKey, err := crypto.ResolveKey(oldSecret, s.logger)
	if err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return err
	}
	oldCipher, err := crypto.NewCipher(oldKey, s.logger)
	if err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return err
	}

	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return err
	}
	if details.EncryptedCredentials == nil {
		err := apperrors.New(apperrors.CodeGatewayNotConfigured, "campus has no encrypted credentials to rotate")
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return err
	}

	set, err := oldCipher.Decrypt(details.EncryptedCredentials)
	if err != nil {
		op.Finish(ctx, models.SeverityCritical, "failure", err, nil)
		return err
	}

	encrypted, err := s.cipher.Encrypt(set)
	if err != nil {
		op.Finish(ctx, models.SeverityHigh, "failure", err, nil)
		return err
	}

	status := mergeTestResults(set.StatusMirror(), details.GatewayStatus)
	if err := s.bank.UpdateCredentials(ctx, campusID, encrypted, status, false); err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeInternal, "rotated credential persistence failed", err)
		op.Finish(ctx, models.SeverityHigh, "failure", wrapped, nil)
		return wrapped
	}

	op.Finish(ctx, models.SeverityHigh, "success", nil, nil)
	return nil
}

// GetStatus returns the non-sensitive status mirror. Nothing from the
// encrypted envelope is touched.
func (s *CredentialService) GetStatus(ctx context.Context, campusID string) (map[models.Gateway]models.GatewayStatus, error) {
	details, err := s.requireBankDetails(ctx, campusID)
	if err != nil {
		return nil, err
	}
	if details.GatewayStatus == nil {
		return map[models.Gateway]models.GatewayStatus{}, nil
	}
	return details.GatewayStatus, nil
}

// TestGatewayResult is the outcome of a credential test call.
type TestGatewayResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestGateway round-trips a lightweight authenticated call through the
// provider and records the outcome in the status mirror.
func (s *CredentialService) TestGateway(ctx context.Context, campusID string, gw models.Gateway) (*TestGatewayResult, error) {
	op := s.audit.StartOperation(models.EventGatewayTested, campusID, "test_gateway")

	provider, ok := s.registry.Get(gw)
	if !ok {
		err := apperrors.New(apperrors.CodeUnknownGateway, "unsupported gateway").
			WithDetails(map[string]any{"gateway": gw})
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return nil, err
	}

	set, err := s.RetrieveCredentials(ctx, campusID)
	if err != nil {
		op.Finish(ctx, models.SeverityMedium, "failure", err, nil)
		return nil, err
	}
	entry, configured := set[gw]
	if !configured || entry.Credentials == nil {
		err := apperrors.New(apperrors.CodeGatewayNotConfigured, "gateway is not configured for this campus").
			WithUser("Configure the gateway before testing it.")
		op.Finish(ctx, models.SeverityLow, "failure", err, nil)
		return nil, err
	}

	result := &TestGatewayResult{Success: true, Message: "gateway credentials verified"}
	pingErr := provider.Ping(ctx, entry.Credentials)
	if pingErr != nil {
		result.Success = false
		result.Message = fmt.Sprintf("gateway test failed: %v", pingErr)
	}

	// Record the outcome on the mirror regardless of test result.
	status, err := s.GetStatus(ctx, campusID)
	if err == nil {
		now := time.Now()
		gs := status[gw]
		gs.LastTested = &now
		if result.Success {
			gs.TestStatus = "passed"
		} else {
			gs.TestStatus = "failed"
		}
		status[gw] = gs
		if err := s.bank.UpdateGatewayStatus(ctx, campusID, status); err != nil {
			s.logger.Warn("failed to record gateway test result", zap.Error(err))
		}
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	op.Finish(ctx, models.SeverityLow, outcome, pingErr, map[string]any{"gateway": gw})
	return result, nil
}

// AvailableGateways is the external view of a campus's gateway setup.
// Configurations carry only the status mirror, never secrets.
type AvailableGateways struct {
	Available      []models.Gateway                        `json:"available"`
	Enabled        []models.Gateway                        `json:"enabled"`
	Configurations map[models.Gateway]models.GatewayStatus `json:"configurations"`
}

func (s *CredentialService) GetAvailableGateways(ctx context.Context, campusID string) (*AvailableGateways, error) {
	status, err := s.GetStatus(ctx, campusID)
	if err != nil {
		return nil, err
	}

	out := &AvailableGateways{
		Available:      models.SupportedGateways,
		Enabled:        []models.Gateway{},
		Configurations: status,
	}
	for _, gw := range models.SupportedGateways {
		if gs, ok := status[gw]; ok && gs.Enabled && gs.Configured {
			out.Enabled = append(out.Enabled, gw)
		}
	}
	return out, nil
}

// mergeTestResults carries last-tested fields from the stored mirror into a
// freshly derived one.
func mergeTestResults(fresh, existing map[models.Gateway]models.GatewayStatus) map[models.Gateway]models.GatewayStatus {
	for gw, gs := range fresh {
		if prev, ok := existing[gw]; ok {
			gs.LastTested = prev.LastTested
			gs.TestStatus = prev.TestStatus
			fresh[gw] = gs
		}
	}
	return fresh
}

func gatewayNames(set models.CredentialSet) []string {
	names := make([]string, 0, len(set))
	for gw := range set {
		names = append(names, string(gw))
	}
	return names
}
