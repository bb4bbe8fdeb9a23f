package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// PayU implements Provider. Webhook signatures are HMAC-SHA512 hex keyed by
// the merchant salt.
type PayU struct{}

func (*PayU) Name() models.Gateway { return models.GatewayPayU }

func payuCreds(creds models.GatewayCredentials) (models.PayUCredentials, error) {
	c, ok := creds.(models.PayUCredentials)
	if !ok {
		return models.PayUCredentials{}, apperrors.New(apperrors.CodeGatewayRejected, "credentials are not payu credentials")
	}
	return c, nil
}

func (g *PayU) CreateOrder(ctx context.Context, creds models.GatewayCredentials, req OrderRequest) (*OrderDetails, error) {
	if _, err := payuCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "payu order call aborted", err)
	}
	return &OrderDetails{
		OrderID:  "payu_" + uuid.New().String(),
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

func (g *PayU) VerifyPayment(ctx context.Context, creds models.GatewayCredentials, proof PaymentProof) (bool, error) {
	c, err := payuCreds(creds)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha512.New, []byte(c.MerchantSalt))
	mac.Write([]byte(proof.OrderID + "|" + proof.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(proof.Signature)), nil
}

func (g *PayU) InitiateSettlement(ctx context.Context, creds models.GatewayCredentials, settlement *models.PaymentSettlement) (*SettlementAck, error) {
	if _, err := payuCreds(creds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTimeout, "payu settlement call aborted", err)
	}
	return &SettlementAck{
		SettlementID: "pu_setl_" + uuid.New().String(),
		Reference:    "payu_ref_" + settlement.ID,
	}, nil
}

func (g *PayU) VerifyWebhookSignature(creds models.GatewayCredentials, payload []byte, signature string) bool {
	c, err := payuCreds(creds)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.MerchantSalt))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type payuWebhook struct {
	EventID      string `json:"event_id"`
	SettlementID string `json:"settlement_id"`
	Status       string `json:"status"`
	UTR          string `json:"utr"`
}

func (g *PayU) ParseSettlementEvent(payload []byte) (*SettlementEvent, error) {
	var hook payuWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed payu webhook payload", err)
	}
	if hook.SettlementID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "payu webhook has no settlement id")
	}
	status := models.SettlementStatusFailed
	if hook.Status == "settled" {
		status = models.SettlementStatusCompleted
	}
	return &SettlementEvent{
		EventID:   hook.EventID,
		BatchID:   hook.SettlementID,
		Status:    status,
		Reference: hook.UTR,
	}, nil
}

func (g *PayU) Ping(ctx context.Context, creds models.GatewayCredentials) error {
	c, err := payuCreds(creds)
	if err != nil {
		return err
	}
	if len(c.MissingFields()) > 0 {
		return apperrors.New(apperrors.CodeGatewayRejected, "payu credentials incomplete")
	}
	return ctx.Err()
}
