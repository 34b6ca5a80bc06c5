// Package fees computes the fee breakdown for a requested cash amount.
package fees

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

const (
	profitRate     = "0.02"
	profitFloor    = "3.50"
	complianceRate = "0.0101"
	complianceBase = "1.90"

	// DefaultDeliveryFee is the observed flat fee; overridable via config.
	DefaultDeliveryFee = 8.16
)

type Breakdown struct {
	RequestedAmount float64 `json:"requested_amount"`
	Profit          float64 `json:"profit"`
	ComplianceFee   float64 `json:"compliance_fee"`
	DeliveryFee     float64 `json:"delivery_fee"`
	TotalServiceFee float64 `json:"total_service_fee"`
	TotalPayment    float64 `json:"total_payment"`
}

// Calculate maps a requested cash amount to its fee breakdown:
//
//	profit        = max(3.50, 0.02 * amount)
//	complianceFee = 0.0101 * amount + 1.90
//	deliveryFee   = flat configured fee
//
// Each component is rounded half-up to 2 decimal places before the totals
// are summed, so total_payment always equals the sum of its visible parts.
// Deterministic, no side effects. Negative or non-finite amounts fail with
// ErrInvalidAmount.
func Calculate(requestedAmount, deliveryFee float64) (Breakdown, error) {
	if requestedAmount < 0 || math.IsNaN(requestedAmount) || math.IsInf(requestedAmount, 0) {
		return Breakdown{}, ErrInvalidAmount
	}
	if deliveryFee < 0 || math.IsNaN(deliveryFee) || math.IsInf(deliveryFee, 0) {
		return Breakdown{}, ErrInvalidAmount
	}

	amount := decimal.NewFromFloat(requestedAmount)

	profit := amount.Mul(decimal.RequireFromString(profitRate))
	if floor := decimal.RequireFromString(profitFloor); profit.LessThan(floor) {
		profit = floor
	}
	compliance := amount.Mul(decimal.RequireFromString(complianceRate)).
		Add(decimal.RequireFromString(complianceBase))
	delivery := decimal.NewFromFloat(deliveryFee)

	profit = profit.Round(2)
	compliance = compliance.Round(2)
	delivery = delivery.Round(2)

	serviceFee := profit.Add(compliance).Add(delivery)
	total := amount.Round(2).Add(serviceFee)

	return Breakdown{
		RequestedAmount: amount.Round(2).InexactFloat64(),
		Profit:          profit.InexactFloat64(),
		ComplianceFee:   compliance.InexactFloat64(),
		DeliveryFee:     delivery.InexactFloat64(),
		TotalServiceFee: serviceFee.InexactFloat64(),
		TotalPayment:    total.InexactFloat64(),
	}, nil
}
