// Package gateway defines the outbound payment-provider interface and one
// implementation per supported provider. Provider wire formats are not
// reproduced here; order and settlement calls are stubs behind the interface,
// while webhook signature verification is implemented in full.
package gateway

import (
	"context"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// OrderRequest asks a provider to open a payment order.
type OrderRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
	CampusID string  `json:"campus_id"`
}

type OrderDetails struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PaymentProof is what a client submits after completing checkout.
type PaymentProof struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// SettlementAck is the provider's acknowledgement of an initiated payout.
type SettlementAck struct {
	SettlementID string `json:"settlement_id"`
	Reference    string `json:"reference"`
}

// SettlementEvent is the normalized form of a provider settlement webhook.
type SettlementEvent struct {
	EventID   string                  `json:"event_id"`
	BatchID   string                  `json:"settlement_batch_id"`
	Status    models.SettlementStatus `json:"status"`
	Reference string                  `json:"reference"`
}

// Provider is the per-gateway capability the settlement core calls out
// through. Credentials are passed per call; providers hold no tenant state.
type Provider interface {
	Name() models.Gateway
	CreateOrder(ctx context.Context, creds models.GatewayCredentials, req OrderRequest) (*OrderDetails, error)
	VerifyPayment(ctx context.Context, creds models.GatewayCredentials, proof PaymentProof) (bool, error)
	InitiateSettlement(ctx context.Context, creds models.GatewayCredentials, settlement *models.PaymentSettlement) (*SettlementAck, error)
	// VerifyWebhookSignature checks the provider signature over the raw
	// webhook payload. It must be constant-time on the comparison.
	VerifyWebhookSignature(creds models.GatewayCredentials, payload []byte, signature string) bool
	// ParseSettlementEvent normalizes a settlement webhook payload.
	ParseSettlementEvent(payload []byte) (*SettlementEvent, error)
	// Ping performs a lightweight authenticated call to validate credentials.
	Ping(ctx context.Context, creds models.GatewayCredentials) error
}

// Registry maps gateway name to its provider implementation.
type Registry map[models.Gateway]Provider

func NewRegistry() Registry {
	return Registry{
		models.GatewayRazorpay: &Razorpay{},
		models.GatewayPayU:     &PayU{},
		models.GatewayCashfree: &Cashfree{},
	}
}

func (r Registry) Get(gw models.Gateway) (Provider, bool) {
	p, ok := r[gw]
	return p, ok
}
