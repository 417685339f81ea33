package postgres

import (
	"context"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type restaurantRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewRestaurantRepo(db *pgxpool.Pool, log logger.ILogger) storage.IRestaurantStorage {
	return &restaurantRepo{db: db, log: log}
}

func (r *restaurantRepo) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	return r.getOne(ctx,
		`SELECT id, owner_id, name, approved, lat, lng, delivery_radius_km FROM restaurants WHERE id = $1`, id)
}

func (r *restaurantRepo) GetForOwner(ctx context.Context, id, ownerID string) (*models.Restaurant, error) {
	return r.getOne(ctx,
		`SELECT id, owner_id, name, approved, lat, lng, delivery_radius_km FROM restaurants WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
}

func (r *restaurantRepo) getOne(ctx context.Context, query string, args ...interface{}) (*models.Restaurant, error) {
	var rest models.Restaurant
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&rest.ID, &rest.OwnerID, &rest.Name, &rest.Approved, &rest.Lat, &rest.Lng, &rest.DeliveryRadiusKm,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &rest, nil
}
