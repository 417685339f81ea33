package postgres

import (
	"context"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type partnerRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewPartnerRepo(db *pgxpool.Pool, log logger.ILogger) storage.IPartnerStorage {
	return &partnerRepo{db: db, log: log}
}

func (r *partnerRepo) GetByID(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	var p models.DeliveryPartner
	err := r.db.QueryRow(ctx, `
		SELECT id, name, approved, online, busy, lat, lng, updated_at
		FROM delivery_partners WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Approved, &p.Online, &p.Busy, &p.Lat, &p.Lng, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *partnerRepo) GetAvailable(ctx context.Context) ([]*models.DeliveryPartner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, approved, online, busy, lat, lng, updated_at
		FROM delivery_partners
		WHERE approved = true AND online = true AND busy = false
		  AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []*models.DeliveryPartner
	for rows.Next() {
		var p models.DeliveryPartner
		if err := rows.Scan(&p.ID, &p.Name, &p.Approved, &p.Online, &p.Busy, &p.Lat, &p.Lng, &p.UpdatedAt); err != nil {
			return nil, err
		}
		partners = append(partners, &p)
	}
	return partners, rows.Err()
}

// TryLock is the assignment lock: busy flips false→true only if the partner
// is still free and online. Losing the race is not an error.
func (r *partnerRepo) TryLock(ctx context.Context, id string) (bool, error) {
	res, err := r.db.Exec(ctx, `
		UPDATE delivery_partners SET busy = true, updated_at = now()
		WHERE id = $1 AND busy = false AND online = true`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *partnerRepo) Release(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE delivery_partners SET busy = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		r.log.Error("failed to release partner", logger.String("partner_id", id), logger.Error(err))
	}
	return err
}

func (r *partnerRepo) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE delivery_partners SET online = $1, updated_at = now() WHERE id = $2`, online, id)
	return err
}

func (r *partnerRepo) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE delivery_partners SET lat = $1, lng = $2, updated_at = now() WHERE id = $3`, lat, lng, id)
	return err
}
