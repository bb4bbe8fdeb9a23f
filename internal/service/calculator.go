package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/config"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

// Settlement calculator: pure arithmetic over transactions and fee
// configuration. No I/O in this file.

// SettlementPeriodFor computes the settlement window ending at asOf. Unknown
// schedules fall back to daily.
func SettlementPeriodFor(schedule models.SettlementSchedule, asOf time.Time, customDays int) models.SettlementPeriod {
	var start time.Time
	switch schedule {
	case models.ScheduleWeekly:
		start = asOf.AddDate(0, 0, -7)
	case models.ScheduleMonthly:
		start = asOf.AddDate(0, -1, 0)
	case models.ScheduleCustom:
		days := customDays
		if days < 1 {
			days = 1
		}
		start = asOf.AddDate(0, 0, -days)
	default:
		start = asOf.AddDate(0, 0, -1)
	}
	return models.SettlementPeriod{Start: start, End: asOf}
}

// roundMoney rounds to 2 decimals (paise). All computed fee components and
// totals pass through this so persisted amounts are exact currency values.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeAmounts sums fees and taxes over the given transactions. The
// caller has already filtered for eligibility; every transaction passed in
// is counted.
func ComputeAmounts(transactions []*models.PaymentTransaction, fees config.FeeSchedule) models.SettlementAmounts {
	var gross, gatewayFees, platformFees float64
	for _, txn := range transactions {
		gross += txn.Amount
		gatewayFees += txn.Amount*fees.GatewayFeePercent/100 + fees.GatewayFeeFixed
		platformFees += txn.Amount*fees.PlatformFeePercent/100 + fees.PlatformFeeFixed
	}

	gross = roundMoney(gross)
	gatewayFees = roundMoney(gatewayFees)
	platformFees = roundMoney(platformFees)
	taxes := roundMoney((gatewayFees + platformFees) * fees.TaxRatePercent / 100)
	net := roundMoney(gross - gatewayFees - platformFees - taxes)

	return models.SettlementAmounts{
		TotalTransactionAmount: gross,
		TotalGatewayFees:       gatewayFees,
		TotalPlatformFees:      platformFees,
		TotalTaxes:             taxes,
		NetSettlementAmount:    net,
	}
}

// CheckMinimum rejects settlements whose net amount is below the configured
// threshold. Below-threshold runs are an explicit error, never silently
// zeroed.
func CheckMinimum(amounts models.SettlementAmounts, minimum float64) error {
	if amounts.NetSettlementAmount < minimum {
		return apperrors.New(apperrors.CodeBelowMinimum, "net settlement amount is below the configured minimum").
			WithUser("The settlement amount is too small to pay out.",
				"Accumulate more transactions before the next settlement run.",
				"Lower the minimum settlement amount if payouts should be more frequent.").
			WithDetails(map[string]any{
				"net_settlement_amount": amounts.NetSettlementAmount,
				"minimum":               minimum,
			})
	}
	return nil
}

// settlementHashInput is the canonical content covered by the settlement
// hash. Field order is fixed by the struct; transaction IDs are sorted so
// the hash is independent of selection order.
type settlementHashInput struct {
	CampusID        string   `json:"campus_id"`
	GatewayProvider string   `json:"gateway_provider"`
	TransactionIDs  []string `json:"transaction_ids"`
	TotalAmount     float64  `json:"total_amount"`
	NetAmount       float64  `json:"net_amount"`
}

// SettlementHash computes the SHA-256 content hash of a settlement.
func SettlementHash(campusID string, gw models.Gateway, transactionIDs []string, totalAmount, netAmount float64) string {
	ids := make([]string, len(transactionIDs))
	copy(ids, transactionIDs)
	sort.Strings(ids)

	canonical, _ := json.Marshal(settlementHashInput{
		CampusID:        campusID,
		GatewayProvider: string(gw),
		TransactionIDs:  ids,
		TotalAmount:     totalAmount,
		NetAmount:       netAmount,
	})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
