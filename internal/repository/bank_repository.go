package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// BankRepository persists campus bank-details records, including the
// encrypted credential envelope and the non-sensitive gateway status mirror.
type BankRepository struct {
	db *sql.DB
}

func NewBankRepository(db *sql.DB) *BankRepository {
	return &BankRepository{db: db}
}

func (r *BankRepository) Get(ctx context.Context, campusID string) (*models.BankDetails, error) {
	query := `
		SELECT campus_id, account_holder, account_number, ifsc_code, bank_name,
		       encrypted_credentials, legacy_credentials, gateway_status,
		       created_at, updated_at
		FROM bank_details WHERE campus_id = $1
	`

	details := &models.BankDetails{}
	var encrypted, legacy, status []byte
	var ifsc, bankName sql.NullString

	err := r.db.QueryRowContext(ctx, query, campusID).Scan(
		&details.CampusID,
		&details.AccountHolder,
		&details.AccountNumber,
		&ifsc,
		&bankName,
		&encrypted,
		&legacy,
		&status,
		&details.CreatedAt,
		&details.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bank details: %w", err)
	}

	details.IFSCCode = ifsc.String
	details.BankName = bankName.String

	if len(encrypted) > 0 {
		details.EncryptedCredentials = &models.EncryptedCredential{}
		if err := json.Unmarshal(encrypted, details.EncryptedCredentials); err != nil {
			return nil, fmt.Errorf("failed to decode credential envelope: %w", err)
		}
	}
	if len(legacy) > 0 {
		if err := json.Unmarshal(legacy, &details.LegacyCredentials); err != nil {
			return nil, fmt.Errorf("failed to decode legacy credentials: %w", err)
		}
	}
	if len(status) > 0 {
		if err := json.Unmarshal(status, &details.GatewayStatus); err != nil {
			return nil, fmt.Errorf("failed to decode gateway status: %w", err)
		}
	}

	return details, nil
}

func (r *BankRepository) Upsert(ctx context.Context, details *models.BankDetails) error {
	query := `
		INSERT INTO bank_details (campus_id, account_holder, account_number, ifsc_code, bank_name, gateway_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '{}', NOW(), NOW())
		ON CONFLICT (campus_id) DO UPDATE SET
			account_holder = EXCLUDED.account_holder,
			account_number = EXCLUDED.account_number,
			ifsc_code = EXCLUDED.ifsc_code,
			bank_name = EXCLUDED.bank_name,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		details.CampusID,
		details.AccountHolder,
		details.AccountNumber,
		details.IFSCCode,
		details.BankName,
	)
	return err
}

// UpdateCredentials writes the encrypted envelope and status mirror in one
// statement. When clearLegacy is set the plaintext column is nulled in the
// same write, so migration is atomic against the row.
func (r *BankRepository) UpdateCredentials(ctx context.Context, campusID string, encrypted *models.EncryptedCredential, status map[models.Gateway]models.GatewayStatus, clearLegacy bool) error {
	encryptedJSON, err := json.Marshal(encrypted)
	if err != nil {
		return fmt.Errorf("failed to encode credential envelope: %w", err)
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode gateway status: %w", err)
	}

	query := `
		UPDATE bank_details
		SET encrypted_credentials = $1,
		    gateway_status = $2,
		    legacy_credentials = CASE WHEN $3 THEN NULL ELSE legacy_credentials END,
		    updated_at = $4
		WHERE campus_id = $5
	`
	result, err := r.db.ExecContext(ctx, query, encryptedJSON, statusJSON, clearLegacy, time.Now(), campusID)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateGatewayStatus refreshes only the status mirror (used by TestGateway).
func (r *BankRepository) UpdateGatewayStatus(ctx context.Context, campusID string, status map[models.Gateway]models.GatewayStatus) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode gateway status: %w", err)
	}

	query := `UPDATE bank_details SET gateway_status = $1, updated_at = $2 WHERE campus_id = $3`
	result, err := r.db.ExecContext(ctx, query, statusJSON, time.Now(), campusID)
	if err != nil {
		return fmt.Errorf("failed to update gateway status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
