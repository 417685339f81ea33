package postgres

import (
	"context"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type menuRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewMenuRepo(db *pgxpool.Pool, log logger.ILogger) storage.IMenuStorage {
	return &menuRepo{db: db, log: log}
}

func (r *menuRepo) GetItems(ctx context.Context, restaurantID string, ids []string) (map[string]*models.MenuItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, restaurant_id, name, price, available
		FROM menu_items
		WHERE restaurant_id = $1 AND id = ANY($2)`,
		restaurantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string]*models.MenuItem, len(ids))
	for rows.Next() {
		var m models.MenuItem
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.Available); err != nil {
			return nil, err
		}
		items[m.ID] = &m
	}
	return items, rows.Err()
}
