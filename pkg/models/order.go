package models

import "time"

type OrderStatus string

// Order status flow. Strict: persisted values, never reorder without a
// migration.
const (
	StatusCreated        OrderStatus = "CREATED"         // placed, not paid yet
	StatusPaymentPending OrderStatus = "PAYMENT_PENDING" // provider order issued
	StatusPaid           OrderStatus = "PAID"            // payment captured (or COD accepted)
	StatusAccepted       OrderStatus = "ACCEPTED"        // restaurant accepted
	StatusPreparing      OrderStatus = "PREPARING"       // food being prepared
	StatusReady          OrderStatus = "READY"           // ready for pickup
	StatusPickupPending  OrderStatus = "PICKUP_PENDING"  // partner locked, awaiting acceptance
	StatusPicked         OrderStatus = "PICKED"          // picked by delivery partner
	StatusDelivered      OrderStatus = "DELIVERED"       // delivered to customer
	StatusCompleted      OrderStatus = "COMPLETED"       // closed successfully
	StatusCancelled      OrderStatus = "CANCELLED"       // cancelled, nothing to refund
	StatusRefunded       OrderStatus = "REFUNDED"        // cancelled and refund completed
)

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// AssignableStatuses lists the states in which an unassigned order may be
// bound to a delivery partner.
func AssignableStatuses() []OrderStatus {
	return []OrderStatus{StatusPaid, StatusAccepted, StatusPreparing, StatusReady}
}

type PaymentMethod string

const (
	PayOnline PaymentMethod = "ONLINE"
	PayCOD    PaymentMethod = "COD"
	PayWallet PaymentMethod = "WALLET"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// CancelActor identifies who cancelled an order.
type CancelActor string

const (
	CancelledByCustomer   CancelActor = "CUSTOMER"
	CancelledByRestaurant CancelActor = "RESTAURANT"
	CancelledByAdmin      CancelActor = "ADMIN"
	CancelledByTimeout    CancelActor = "SYSTEM_TIMEOUT"
)

// OrderItem is a price snapshot captured at creation time. Later menu price
// changes never affect an existing order.
type OrderItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	LineTotal  float64 `json:"line_total"`
}

// Pricing is the backend-calculated invoice breakdown, all values rounded
// to 2 decimals.
type Pricing struct {
	ItemTotal        float64 `json:"item_total"`
	BaseDeliveryFee  float64 `json:"base_delivery_fee"`
	SurgeFee         float64 `json:"surge_fee"`
	DeliveryFee      float64 `json:"delivery_fee"`
	Commission       float64 `json:"commission"`
	Tax              float64 `json:"tax"`
	Discount         float64 `json:"discount"`
	GrandTotal       float64 `json:"grand_total"`
	RestaurantPayout float64 `json:"restaurant_payout"`
	DistanceKm       float64 `json:"distance_km"`
}

type Payment struct {
	Method             PaymentMethod `json:"method"`
	Status             PaymentStatus `json:"status"`
	ProviderOrderRef   string        `json:"provider_order_ref,omitempty"`
	ProviderPaymentRef string        `json:"provider_payment_ref,omitempty"`
	PaidAt             *time.Time    `json:"paid_at,omitempty"`
	RefundedAt         *time.Time    `json:"refunded_at,omitempty"`
}

type StatusChange struct {
	Status OrderStatus `json:"status"`
	At     time.Time   `json:"at"`
}

type Order struct {
	ID                string      `json:"id"`
	CustomerID        string      `json:"customer_id"`
	RestaurantID      string      `json:"restaurant_id"`
	DeliveryPartnerID *string     `json:"delivery_partner_id,omitempty"`
	Items             []OrderItem `json:"items"`
	Pricing           Pricing     `json:"pricing"`
	Payment           Payment     `json:"payment"`
	Status            OrderStatus `json:"status"`

	DropAddress string  `json:"drop_address"`
	DropLat     float64 `json:"drop_lat"`
	DropLng     float64 `json:"drop_lng"`

	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	AssignAttempts int        `json:"assign_attempts"`

	CancelledBy  CancelActor `json:"cancelled_by,omitempty"`
	CancelReason string      `json:"cancel_reason,omitempty"`
	RefundAmount float64     `json:"refund_amount,omitempty"`

	History   []StatusChange `json:"history,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
