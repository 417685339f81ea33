package postgres

import (
	"context"
	"encoding/json"
	"time"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

const orderColumns = `
	id, customer_id, restaurant_id, delivery_partner_id, items,
	item_total, base_delivery_fee, surge_fee, delivery_fee, commission, tax, discount, grand_total, restaurant_payout, distance_km,
	payment_method, payment_status, provider_order_ref, provider_payment_ref, paid_at, refunded_at,
	status, drop_address, drop_lat, drop_lng,
	assigned_at, assign_attempts, cancelled_by, cancel_reason, refund_amount, created_at`

func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (
			id, customer_id, restaurant_id, items,
			item_total, base_delivery_fee, surge_fee, delivery_fee, commission, tax, discount, grand_total, restaurant_payout, distance_km,
			payment_method, payment_status,
			status, drop_address, drop_lat, drop_lng, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = tx.Exec(ctx, query,
		order.ID,
		order.CustomerID,
		order.RestaurantID,
		items,
		order.Pricing.ItemTotal,
		order.Pricing.BaseDeliveryFee,
		order.Pricing.SurgeFee,
		order.Pricing.DeliveryFee,
		order.Pricing.Commission,
		order.Pricing.Tax,
		order.Pricing.Discount,
		order.Pricing.GrandTotal,
		order.Pricing.RestaurantPayout,
		order.Pricing.DistanceKm,
		order.Payment.Method,
		order.Payment.Status,
		order.Status,
		order.DropAddress,
		order.DropLat,
		order.DropLng,
		order.CreatedAt,
	)
	if err != nil {
		r.log.Error("failed to create order", logger.Error(err))
		return err
	}

	if err := appendHistory(ctx, tx, order.ID, order.Status, order.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func appendHistory(ctx context.Context, tx pgx.Tx, orderID string, status models.OrderStatus, at time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, at) VALUES ($1, $2, $3)`,
		orderID, status, at,
	)
	return err
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepo) GetByProviderRef(ctx context.Context, providerOrderRef string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider_order_ref = $1`, providerOrderRef)
}

func (r *orderRepo) GetForCustomer(ctx context.Context, id, customerID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND customer_id = $2`, id, customerID)
}

func (r *orderRepo) GetForRestaurant(ctx context.Context, id, restaurantID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2`, id, restaurantID)
}

func (r *orderRepo) GetForPartner(ctx context.Context, id, partnerID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND delivery_partner_id = $2`, id, partnerID)
}

func (r *orderRepo) getOne(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var (
		o     models.Order
		items []byte
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.DeliveryPartnerID, &items,
		&o.Pricing.ItemTotal, &o.Pricing.BaseDeliveryFee, &o.Pricing.SurgeFee, &o.Pricing.DeliveryFee,
		&o.Pricing.Commission, &o.Pricing.Tax, &o.Pricing.Discount, &o.Pricing.GrandTotal,
		&o.Pricing.RestaurantPayout, &o.Pricing.DistanceKm,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.ProviderOrderRef, &o.Payment.ProviderPaymentRef,
		&o.Payment.PaidAt, &o.Payment.RefundedAt,
		&o.Status, &o.DropAddress, &o.DropLat, &o.DropLng,
		&o.AssignedAt, &o.AssignAttempts, &o.CancelledBy, &o.CancelReason, &o.RefundAmount, &o.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}

	history, err := r.history(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.History = history

	return &o, nil
}

func (r *orderRepo) history(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, at FROM order_status_history WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var h models.StatusChange
		if err := rows.Scan(&h.Status, &h.At); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *orderRepo) UpdateStatusCAS(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = ANY($3)`,
		to, id, statusList(from),
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, id, to, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *orderRepo) UpdateStatusForPartnerCAS(ctx context.Context, id, partnerID string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND delivery_partner_id = $3 AND status = ANY($4)`,
		to, id, partnerID, statusList(from),
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, id, to, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// AttachPartner binds the partner and moves the order into PICKUP_PENDING,
// but only while the order is still assignable and unassigned. Rows-affected
// zero means another assignment run (or a status change) won the race.
func (r *orderRepo) AttachPartner(ctx context.Context, id, partnerID string, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE orders
		SET delivery_partner_id = $1, status = $2, assigned_at = $3, assign_attempts = assign_attempts + 1
		WHERE id = $4 AND delivery_partner_id IS NULL AND status = ANY($5)`,
		partnerID, models.StatusPickupPending, at, id,
		statusList(models.AssignableStatuses()),
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, id, models.StatusPickupPending, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ReleaseAssignment undoes a timed-out assignment. The partner guard makes
// stale timeouts a no-op when the order moved on in the meantime.
func (r *orderRepo) ReleaseAssignment(ctx context.Context, id, partnerID string, revertTo models.OrderStatus, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE orders
		SET delivery_partner_id = NULL, status = $1, assigned_at = NULL
		WHERE id = $2 AND delivery_partner_id = $3 AND status = $4`,
		revertTo, id, partnerID, models.StatusPickupPending,
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, id, revertTo, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *orderRepo) SetPayment(ctx context.Context, id string, method models.PaymentMethod, status models.PaymentStatus, providerOrderRef string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET payment_method = $1, payment_status = $2, provider_order_ref = $3 WHERE id = $4`,
		method, status, providerOrderRef, id,
	)
	if err != nil {
		r.log.Error("failed to set payment", logger.String("order_id", id), logger.Error(err))
	}
	return err
}

func (r *orderRepo) MarkPaymentCAS(ctx context.Context, id string, from, to models.PaymentStatus, providerPaymentRef string, at time.Time) (bool, error) {
	res, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    provider_payment_ref = CASE WHEN $2 = '' THEN provider_payment_ref ELSE $2 END,
		    paid_at = CASE WHEN $1 = 'SUCCESS' THEN $3 ELSE paid_at END,
		    refunded_at = CASE WHEN $1 = 'REFUNDED' THEN $3 ELSE refunded_at END
		WHERE id = $4 AND payment_status = $5`,
		to, providerPaymentRef, at, id, from,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *orderRepo) Cancel(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, by models.CancelActor, reason string, refund float64, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, cancelled_by = $2, cancel_reason = $3, refund_amount = $4
		WHERE id = $5 AND status = ANY($6)`,
		to, by, reason, refund, id, statusList(from),
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, id, to, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func statusList(from []models.OrderStatus) []string {
	out := make([]string, 0, len(from))
	for _, s := range from {
		out = append(out, string(s))
	}
	return out
}
