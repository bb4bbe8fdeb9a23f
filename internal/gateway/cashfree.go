package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// Cashfree implements Provider. Webhook signatures are base64 HMAC-SHA256
// keyed by the app secret.
type Cashfree struct{}

func (*Cashfree) Name() models.Gateway { return models.GatewayCashfree }

func cashfreeCreds(creds models.GatewayCredentials) (models.CashfreeCredentials, error) {
	c, ok := creds.(models.CashfreeCredentials)
	if !ok {
		return models.CashfreeCredentials{}, apperrors.New(apperrors.CodeGatewayRejected, "credentials are not cashfree credentials")
	}
	return c, nil
}

func (g *Cashfree) CreateOrder(ctx context.Context, creds models.GatewayCredentials, req OrderRequest) (*OrderDetails, error) {
	if _, err := cashfreeCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "cashfree order call aborted", err)
	}
	return &OrderDetails{
		OrderID:  "cf_" + uuid.New().String(),
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

func (g *Cashfree) VerifyPayment(ctx context.Context, creds models.GatewayCredentials, proof PaymentProof) (bool, error) {
	c, err := cashfreeCreds(creds)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write([]byte(proof.OrderID + proof.PaymentID))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(proof.Signature)), nil
}

func (g *Cashfree) InitiateSettlement(ctx context.Context, creds models.GatewayCredentials, settlement *models.PaymentSettlement) (*SettlementAck, error) {
	if _, err := cashfreeCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "cashfree settlement call aborted", err)
	}
	return &SettlementAck{
		SettlementID: "cf_setl_" + uuid.New().String(),
		Reference:    "cf_ref_" + settlement.ID,
	}, nil
}

func (g *Cashfree) VerifyWebhookSignature(creds models.GatewayCredentials, payload []byte, signature string) bool {
	c, err := cashfreeCreds(creds)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type cashfreeWebhook struct {
	EventID string `json:"event_id"`
	Data    struct {
		Settlement struct {
			ID     string `json:"cf_settlement_id"`
			Status string `json:"status"`
			UTR    string `json:"utr"`
		} `json:"settlement"`
	} `json:"data"`
}

func (g *Cashfree) ParseSettlementEvent(payload []byte) (*SettlementEvent, error) {
	var hook cashfreeWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed cashfree webhook payload", err)
	}
	settlement := hook.Data.Settlement
	if settlement.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "cashfree webhook has no settlement id")
	}
	status := models.SettlementStatusFailed
	if settlement.Status == "SETTLED" {
		status = models.SettlementStatusCompleted
	}
	return &SettlementEvent{
		EventID:   hook.EventID,
		BatchID:   settlement.ID,
		Status:    status,
		Reference: settlement.UTR,
	}, nil
}

func (g *Cashfree) Ping(ctx context.Context, creds models.GatewayCredentials) error {
	c, err := cashfreeCreds(creds)
	if err != nil {
		return err
	}
	if len(c.MissingFields()) > 0 {
		return apperrors.New(apperrors.CodeGatewayRejected, "cashfree credentials incomplete")
	}
	return ctx.Err()
}
