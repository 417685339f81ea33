package postgres

import (
	"context"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type settingsRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewSettingsRepo(db *pgxpool.Pool, log logger.ILogger) storage.ISettingsStorage {
	return &settingsRepo{db: db, log: log}
}

// Get returns the platform singleton row; defaults apply when it was never
// configured.
func (r *settingsRepo) Get(ctx context.Context) (*models.PricingSettings, error) {
	var s models.PricingSettings
	err := r.db.QueryRow(ctx, `
		SELECT commission_percent, min_order_value, base_delivery_fee, per_km_rate,
		       surge_active, surge_multiplier, tax_percent, max_delivery_radius_km
		FROM pricing_settings LIMIT 1`,
	).Scan(&s.CommissionPercent, &s.MinOrderValue, &s.BaseDeliveryFee, &s.PerKmRate,
		&s.SurgeActive, &s.SurgeMultiplier, &s.TaxPercent, &s.MaxDeliveryRadiusKm)
	if err != nil {
		if isNoRows(err) {
			return models.DefaultPricingSettings(), nil
		}
		return nil, err
	}
	return &s, nil
}
