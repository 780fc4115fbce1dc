package fees

import (
	"math"
	"strconv"
	"strings"
)

// Strategy names a service-fee policy.
type Strategy string

const (
	// PercentagePlusFlat is quoted by the in-session multi-service wizard.
	PercentagePlusFlat Strategy = "percentage_plus_flat"
	// PercentageOnly is quoted by the guest funnels and charged by the payment stage.
	PercentageOnly Strategy = "percentage_only"
)

const (
	Rate    = 0.02
	FlatFee = 20.0
)

// Quote is a derived fee/total pair; it is never stored.
type Quote struct {
	Strategy  Strategy `json:"strategy"`
	Principal float64  `json:"principal"`
	Fee       float64  `json:"fee"`
	Total     float64  `json:"total"`
}

// Compute returns the fee and total for principal. A non-positive or
// non-finite principal yields a zero quote rather than an error.
func Compute(s Strategy, principal float64) Quote {
	q := Quote{Strategy: s}
	if principal <= 0 || math.IsNaN(principal) || math.IsInf(principal, 0) {
		return q
	}
	fee := round2(principal * Rate)
	if s == PercentagePlusFlat {
		fee = round2(fee + FlatFee)
	}
	q.Principal = principal
	q.Fee = fee
	q.Total = round2(principal + fee)
	return q
}

// ComputeRaw parses a user-typed amount and quotes it.
func ComputeRaw(s Strategy, raw string) Quote {
	v, ok := ParseAmount(raw)
	if !ok {
		return Quote{Strategy: s}
	}
	return Compute(s, v)
}

// ParseAmount accepts plain or thousands-separated decimals.
func ParseAmount(raw string) (float64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// MinorUnits converts a major-unit amount to whole minor units (kobo, cents).
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
