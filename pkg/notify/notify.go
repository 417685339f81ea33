package notify

import (
	"context"
	"time"

	"harshuu/pkg/models"
)

// Event kinds published on status transitions. One struct per concern keeps
// the payload machine-checkable instead of an untyped blob.
const (
	KindOrderCreated   = "order.created"
	KindOrderPaid      = "order.paid"
	KindOrderAccepted  = "order.accepted"
	KindOrderPreparing = "order.preparing"
	KindOrderReady     = "order.ready"
	KindOrderAssigned  = "order.assigned"
	KindOrderReleased  = "order.assignment_released"
	KindOrderPicked    = "order.picked"
	KindOrderDelivered = "order.delivered"
	KindOrderCompleted = "order.completed"
	KindOrderCancelled = "order.cancelled"
	KindOrderRefunded  = "order.refunded"
)

type OrderEvent struct {
	Kind         string             `json:"kind"`
	OrderID      string             `json:"order_id"`
	Status       models.OrderStatus `json:"status"`
	CustomerID   string             `json:"customer_id"`
	RestaurantID string             `json:"restaurant_id"`
	PartnerID    string             `json:"partner_id,omitempty"`
	Amount       float64            `json:"amount,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	At           time.Time          `json:"at"`
}

// Notifier delivers events to the messaging fabric. Callers fire and
// forget; delivery failure must never fail the core operation.
type Notifier interface {
	OrderEvent(ctx context.Context, e OrderEvent) error
	Close()
}

type nopNotifier struct{}

func Nop() Notifier { return nopNotifier{} }

func (nopNotifier) OrderEvent(context.Context, OrderEvent) error { return nil }
func (nopNotifier) Close()                                       {}
