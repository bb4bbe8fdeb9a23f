package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// Razorpay implements Provider. Outbound API calls are stubbed; webhook
// signature verification follows Razorpay's scheme (HMAC-SHA256 hex over the
// raw body, keyed by the webhook secret).
type Razorpay struct{}

func (*Razorpay) Name() models.Gateway { return models.GatewayRazorpay }

func razorpayCreds(creds models.GatewayCredentials) (models.RazorpayCredentials, error) {
	c, ok := creds.(models.RazorpayCredentials)
	if !ok {
		return models.RazorpayCredentials{}, apperrors.New(apperrors.CodeGatewayRejected, "credentials are not razorpay credentials")
	}
	return c, nil
}

func (g *Razorpay) CreateOrder(ctx context.Context, creds models.GatewayCredentials, req OrderRequest) (*OrderDetails, error) {
	if _, err := razorpayCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "razorpay order call aborted", err)
	}
	return &OrderDetails{
		OrderID:  "order_" + uuid.New().String(),
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

func (g *Razorpay) VerifyPayment(ctx context.Context, creds models.GatewayCredentials, proof PaymentProof) (bool, error) {
	c, err := razorpayCreds(creds)
	if err != nil {
		return false, err
	}
	// Razorpay signs order_id|payment_id with the key secret.
	mac := hmac.New(sha256.New, []byte(c.KeySecret))
	fmt.Fprintf(mac, "%s|%s", proof.OrderID, proof.PaymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(proof.Signature)), nil
}

func (g *Razorpay) InitiateSettlement(ctx context.Context, creds models.GatewayCredentials, settlement *models.PaymentSettlement) (*SettlementAck, error) {
	if _, err := razorpayCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "razorpay settlement call aborted", err)
	}
	return &SettlementAck{
		SettlementID: "setl_" + uuid.New().String(),
		Reference:    "rzp_ref_" + settlement.ID,
	}, nil
}

func (g *Razorpay) VerifyWebhookSignature(creds models.GatewayCredentials, payload []byte, signature string) bool {
	c, err := razorpayCreds(creds)
	if err != nil {
		return false
	}
	secret := c.WebhookSecret
	if secret == "" {
		secret = c.KeySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	EventID string `json:"event_id"`
	Payload struct {
		Settlement struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				UTR    string `json:"utr"`
			} `json:"entity"`
		} `json:"settlement"`
	} `json:"payload"`
}

func (g *Razorpay) ParseSettlementEvent(payload []byte) (*SettlementEvent, error) {
	var hook razorpayWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed razorpay webhook payload", err)
	}
	entity := hook.Payload.Settlement.Entity
	if entity.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "razorpay webhook has no settlement entity")
	}
	status := models.SettlementStatusFailed
	if entity.Status == "processed" {
		status = models.SettlementStatusCompleted
	}
	return &SettlementEvent{
		EventID:   hook.EventID,
		BatchID:   entity.ID,
		Status:    status,
		Reference: entity.UTR,
	}, nil
}

func (g *Razorpay) Ping(ctx context.Context, creds models.GatewayCredentials) error {
	c, err := razorpayCreds(creds)
	if err != nil {
		return err
	}
	if len(c.MissingFields()) > 0 {
		return apperrors.New(apperrors.CodeGatewayRejected, "razorpay credentials incomplete")
	}
	return ctx.Err()
}
