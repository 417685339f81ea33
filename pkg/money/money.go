package money

import "math"

// Round2 rounds a monetary value to 2 decimal places. Every intermediate
// pricing step must pass through it so historical invoices stay cent-stable.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Minor converts a 2-decimal amount to integer minor units (paise/cents),
// the representation the payment gateway expects.
func Minor(v float64) int64 {
	return int64(math.Round(v * 100))
}
