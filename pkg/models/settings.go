package models

// PricingSettings is the platform-wide singleton, read-only from the core's
// perspective; admins mutate it externally.
type PricingSettings struct {
	CommissionPercent   float64 `json:"commission_percent"`
	MinOrderValue       float64 `json:"min_order_value"`
	BaseDeliveryFee     float64 `json:"base_delivery_fee"`
	PerKmRate           float64 `json:"per_km_rate"`
	SurgeActive         bool    `json:"surge_active"`
	SurgeMultiplier     float64 `json:"surge_multiplier"`
	TaxPercent          float64 `json:"tax_percent"`
	MaxDeliveryRadiusKm float64 `json:"max_delivery_radius_km"`
}

// DefaultPricingSettings mirrors the platform defaults seeded by the
// admin migration.
func DefaultPricingSettings() *PricingSettings {
	return &PricingSettings{
		CommissionPercent:   20,
		MinOrderValue:       99,
		BaseDeliveryFee:     30,
		PerKmRate:           8,
		SurgeActive:         false,
		SurgeMultiplier:     1.0,
		TaxPercent:          5,
		MaxDeliveryRadiusKm: 7,
	}
}
