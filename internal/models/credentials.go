package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Gateway string

const (
	GatewayRazorpay Gateway = "razorpay"
	GatewayPayU     Gateway = "payu"
	GatewayCashfree Gateway = "cashfree"
)

// SupportedGateways lists every provider the platform can settle through.
var SupportedGateways = []Gateway{GatewayRazorpay, GatewayPayU, GatewayCashfree}

func ParseGateway(s string) (Gateway, error) {
	switch Gateway(s) {
	case GatewayRazorpay, GatewayPayU, GatewayCashfree:
		return Gateway(s), nil
	}
	return "", fmt.Errorf("unknown gateway %q", s)
}

type GatewayMode string

const (
	ModeTest GatewayMode = "test"
	ModeLive GatewayMode = "live"
)

// GatewayCredentials is the closed set of provider credential variants.
// Each variant carries only the fields its provider requires.
type GatewayCredentials interface {
	Provider() Gateway
	// MissingFields returns the names of required fields that are empty.
	MissingFields() []string
}

type RazorpayCredentials struct {
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

func (RazorpayCredentials) Provider() Gateway { return GatewayRazorpay }

func (c RazorpayCredentials) MissingFields() []string {
	var missing []string
	if c.KeyID == "" {
		missing = append(missing, "key_id")
	}
	if c.KeySecret == "" {
		missing = append(missing, "key_secret")
	}
	return missing
}

type PayUCredentials struct {
	MerchantKey  string `json:"merchant_key"`
	MerchantSalt string `json:"merchant_salt"`
}

func (PayUCredentials) Provider() Gateway { return GatewayPayU }

func (c PayUCredentials) MissingFields() []string {
	var missing []string
	if c.MerchantKey == "" {
		missing = append(missing, "merchant_key")
	}
	if c.MerchantSalt == "" {
		missing = append(missing, "merchant_salt")
	}
	return missing
}

type CashfreeCredentials struct {
	AppID     string `json:"app_id"`
	SecretKey string `json:"secret_key"`
}

func (CashfreeCredentials) Provider() Gateway { return GatewayCashfree }

func (c CashfreeCredentials) MissingFields() []string {
	var missing []string
	if c.AppID == "" {
		missing = append(missing, "app_id")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	return missing
}

// GatewayEntry is one gateway's configuration within a campus credential set.
type GatewayEntry struct {
	Enabled     bool
	Mode        GatewayMode
	Credentials GatewayCredentials
}

// CredentialSet maps gateway name to its configuration for one campus.
// The map key is the discriminant for the credential variant.
type CredentialSet map[Gateway]GatewayEntry

// gatewayEntryJSON is the flat wire form; which fields are populated depends
// on the gateway the entry is keyed under.
type gatewayEntryJSON struct {
	Enabled       bool        `json:"enabled"`
	Mode          GatewayMode `json:"mode,omitempty"`
	KeyID         string      `json:"key_id,omitempty"`
	KeySecret     string      `json:"key_secret,omitempty"`
	WebhookSecret string      `json:"webhook_secret,omitempty"`
	MerchantKey   string      `json:"merchant_key,omitempty"`
	MerchantSalt  string      `json:"merchant_salt,omitempty"`
	AppID         string      `json:"app_id,omitempty"`
	SecretKey     string      `json:"secret_key,omitempty"`
}

func (s CredentialSet) MarshalJSON() ([]byte, error) {
	out := make(map[Gateway]gatewayEntryJSON, len(s))
	for gw, entry := range s {
		flat := gatewayEntryJSON{Enabled: entry.Enabled, Mode: entry.Mode}
		switch c := entry.Credentials.(type) {
		case RazorpayCredentials:
			flat.KeyID, flat.KeySecret, flat.WebhookSecret = c.KeyID, c.KeySecret, c.WebhookSecret
		case PayUCredentials:
			flat.MerchantKey, flat.MerchantSalt = c.MerchantKey, c.MerchantSalt
		case CashfreeCredentials:
			flat.AppID, flat.SecretKey = c.AppID, c.SecretKey
		case nil:
		default:
			return nil, fmt.Errorf("credential variant %T does not belong to gateway %s", entry.Credentials, gw)
		}
		out[gw] = flat
	}
	return json.Marshal(out)
}

func (s *CredentialSet) UnmarshalJSON(data []byte) error {
	var raw map[string]gatewayEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(CredentialSet, len(raw))
	for name, flat := range raw {
		gw, err := ParseGateway(name)
		if err != nil {
			return err
		}
		entry := GatewayEntry{Enabled: flat.Enabled, Mode: flat.Mode}
		switch gw {
		case GatewayRazorpay:
			entry.Credentials = RazorpayCredentials{KeyID: flat.KeyID, KeySecret: flat.KeySecret, WebhookSecret: flat.WebhookSecret}
		case GatewayPayU:
			entry.Credentials = PayUCredentials{MerchantKey: flat.MerchantKey, MerchantSalt: flat.MerchantSalt}
		case GatewayCashfree:
			entry.Credentials = CashfreeCredentials{AppID: flat.AppID, SecretKey: flat.SecretKey}
		}
		set[gw] = entry
	}
	*s = set
	return nil
}

// DisplayMap flattens the set into generic maps for masking and API output.
// Callers must pass the result through crypto.MaskCredentials before it
// leaves the process.
func (s CredentialSet) DisplayMap() map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// EncryptedCredential is the sealed envelope for a campus credential set.
// All byte fields are lowercase hex.
type EncryptedCredential struct {
	EncryptedData string `json:"encrypted_data" db:"encrypted_data"`
	IV            string `json:"iv" db:"iv"`
	Tag           string `json:"tag" db:"tag"`
	Algorithm     string `json:"algorithm" db:"algorithm"`
}

// GatewayStatus is the non-sensitive mirror of one gateway's credential
// state. It must never carry secret material.
type GatewayStatus struct {
	Enabled    bool        `json:"enabled"`
	Configured bool        `json:"configured"`
	Mode       GatewayMode `json:"mode,omitempty"`
	LastTested *time.Time  `json:"last_tested,omitempty"`
	TestStatus string      `json:"test_status,omitempty"`
}

// StatusMirror derives the per-gateway status snapshot from a credential set.
func (s CredentialSet) StatusMirror() map[Gateway]GatewayStatus {
	mirror := make(map[Gateway]GatewayStatus, len(s))
	for gw, entry := range s {
		configured := entry.Credentials != nil && len(entry.Credentials.MissingFields()) == 0
		mirror[gw] = GatewayStatus{
			Enabled:    entry.Enabled,
			Configured: configured,
			Mode:       entry.Mode,
		}
	}
	return mirror
}

// BankDetails is the campus bank-account record that anchors credential
// storage. Account fields are managed by the school-administration surface;
// this core only reads them and owns the credential columns.
type BankDetails struct {
	CampusID             string                    `json:"campus_id" db:"campus_id"`
	AccountHolder        string                    `json:"account_holder" db:"account_holder"`
	AccountNumber        string                    `json:"account_number" db:"account_number"`
	IFSCCode             string                    `json:"ifsc_code" db:"ifsc_code"`
	BankName             string                    `json:"bank_name" db:"bank_name"`
	EncryptedCredentials *EncryptedCredential      `json:"-" db:"encrypted_credentials"`
	LegacyCredentials    CredentialSet             `json:"-" db:"legacy_credentials"`
	GatewayStatus        map[Gateway]GatewayStatus `json:"gateway_status" db:"gateway_status"`
	CreatedAt            time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at" db:"updated_at"`
}

// Database schema
const BankDetailsSchema = `
CREATE TABLE IF NOT EXISTS bank_details (
    campus_id VARCHAR(64) PRIMARY KEY,
    account_holder VARCHAR(255) NOT NULL,
    account_number VARCHAR(64) NOT NULL,
    ifsc_code VARCHAR(16),
    bank_name VARCHAR(255),
    encrypted_credentials JSONB,
    legacy_credentials JSONB,
    gateway_status JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`
