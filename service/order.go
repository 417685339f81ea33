package service

import (
	"context"
	"fmt"
	"time"

	"harshuu/pkg/clockx"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/notify"
	"harshuu/storage"

	"github.com/google/uuid"
)

type CreateOrderRequest struct {
	CustomerID   string               `json:"customer_id"`
	RestaurantID string               `json:"restaurant_id"`
	Items        []ItemRequest        `json:"items"`
	DropAddress  string               `json:"drop_address"`
	DropLat      float64              `json:"drop_lat"`
	DropLng      float64              `json:"drop_lng"`
	Method       models.PaymentMethod `json:"method"`
}

// OrderService owns the order state machine. Every transition is a single
// conditional update on the current status; a lost race surfaces as
// ErrInvalidTransition instead of corrupting the record.
type OrderService interface {
	Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error)

	GetForCustomer(ctx context.Context, orderID, customerID string) (*models.Order, error)
	GetForRestaurant(ctx context.Context, orderID, ownerID string) (*models.Order, error)
	GetForPartner(ctx context.Context, orderID, partnerID string) (*models.Order, error)

	Accept(ctx context.Context, orderID, ownerID string) (*models.Order, error)
	MarkPreparing(ctx context.Context, orderID, ownerID string) (*models.Order, error)
	MarkReady(ctx context.Context, orderID, ownerID string) (*models.Order, error)
	RejectByRestaurant(ctx context.Context, orderID, ownerID, reason string) (*models.Order, error)

	CancelByCustomer(ctx context.Context, orderID, customerID, reason string) (*models.Order, error)
	AdminCancel(ctx context.Context, orderID, reason string) (*models.Order, error)
	AdminOverride(ctx context.Context, orderID string, to models.OrderStatus, reason string) (*models.Order, error)

	MarkDelivered(ctx context.Context, orderID, partnerID string) (*models.Order, error)
	Complete(ctx context.Context, orderID, partnerID string) (*models.Order, error)
}

type orderService struct {
	orders      storage.IOrderStorage
	restaurants storage.IRestaurantStorage
	partners    storage.IPartnerStorage
	pricing     PricingService
	payments    PaymentService
	assignments AssignmentService
	wallets     WalletService
	notifier    notify.Notifier
	clock       clockx.Clock
	log         logger.ILogger

	cancelWindow time.Duration
}

func NewOrderService(stg storage.IStorage, pricing PricingService, payments PaymentService, assignments AssignmentService, wallets WalletService, notifier notify.Notifier, clock clockx.Clock, log logger.ILogger, cancelWindow time.Duration) OrderService {
	return &orderService{
		orders:       stg.Order(),
		restaurants:  stg.Restaurant(),
		partners:     stg.Partner(),
		pricing:      pricing,
		payments:     payments,
		assignments:  assignments,
		wallets:      wallets,
		notifier:     notifier,
		clock:        clock,
		log:          log,
		cancelWindow: cancelWindow,
	}
}

func (s *orderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	switch req.Method {
	case models.PayOnline, models.PayCOD, models.PayWallet:
	default:
		return nil, fmt.Errorf("unknown payment method %q", req.Method)
	}

	quote, err := s.pricing.PriceOrder(ctx, req.RestaurantID, req.Items, req.DropLat, req.DropLng)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &models.Order{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		RestaurantID: req.RestaurantID,
		Items:        quote.Items,
		Pricing:      quote.Pricing,
		Payment: models.Payment{
			Method: req.Method,
			Status: models.PaymentPending,
		},
		Status:      models.StatusCreated,
		DropAddress: req.DropAddress,
		DropLat:     req.DropLat,
		DropLng:     req.DropLng,
		History:     []models.StatusChange{{Status: models.StatusCreated, At: now}},
		CreatedAt:   now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	fireEvent(s.notifier, s.log, notify.OrderEvent{
		Kind:         notify.KindOrderCreated,
		OrderID:      order.ID,
		Status:       order.Status,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Amount:       order.Pricing.GrandTotal,
		At:           now,
	})
	return order, nil
}

func (s *orderService) GetForCustomer(ctx context.Context, orderID, customerID string) (*models.Order, error) {
	return s.orders.GetForCustomer(ctx, orderID, customerID)
}

func (s *orderService) GetForRestaurant(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.restaurants.GetForOwner(ctx, order.RestaurantID, ownerID); err != nil {
		return nil, ErrUnauthorized
	}
	return order, nil
}

func (s *orderService) GetForPartner(ctx context.Context, orderID, partnerID string) (*models.Order, error) {
	return s.orders.GetForPartner(ctx, orderID, partnerID)
}

func (s *orderService) restaurantFor(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.restaurants.GetForOwner(ctx, order.RestaurantID, ownerID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !restaurant.Approved {
		return nil, ErrUnauthorized
	}
	return order, nil
}

func (s *orderService) Accept(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	order, err := s.restaurantFor(ctx, orderID, ownerID)
	if err != nil {
		return nil, err
	}

	ok, err := s.orders.UpdateStatusCAS(ctx, order.ID,
		[]models.OrderStatus{models.StatusPaid}, models.StatusAccepted, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	s.emit(ctx, order.ID, notify.KindOrderAccepted)

	// Next relevant write: retry assignment if no partner was found at
	// payment time.
	if order.DeliveryPartnerID == nil {
		s.retryAssignment(ctx, order.ID)
	}

	return s.orders.GetByID(ctx, order.ID)
}

func (s *orderService) MarkPreparing(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	return s.restaurantTransition(ctx, orderID, ownerID,
		models.StatusAccepted, models.StatusPreparing, notify.KindOrderPreparing)
}

func (s *orderService) MarkReady(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	order, err := s.restaurantTransition(ctx, orderID, ownerID,
		models.StatusPreparing, models.StatusReady, notify.KindOrderReady)
	if err != nil {
		return nil, err
	}
	if order.DeliveryPartnerID == nil {
		s.retryAssignment(ctx, order.ID)
	}
	return order, nil
}

func (s *orderService) restaurantTransition(ctx context.Context, orderID, ownerID string, from, to models.OrderStatus, kind string) (*models.Order, error) {
	order, err := s.restaurantFor(ctx, orderID, ownerID)
	if err != nil {
		return nil, err
	}

	ok, err := s.orders.UpdateStatusCAS(ctx, order.ID, []models.OrderStatus{from}, to, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	s.emit(ctx, order.ID, kind)
	return s.orders.GetByID(ctx, order.ID)
}

func (s *orderService) RejectByRestaurant(ctx context.Context, orderID, ownerID, reason string) (*models.Order, error) {
	order, err := s.restaurantFor(ctx, orderID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, order,
		[]models.OrderStatus{models.StatusCreated, models.StatusPaid},
		models.CancelledByRestaurant, reason)
}

// CancelByCustomer allows cancelling a freshly created order, or a paid one
// while still inside the cancellation window.
func (s *orderService) CancelByCustomer(ctx context.Context, orderID, customerID, reason string) (*models.Order, error) {
	order, err := s.orders.GetForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.StatusPaid && order.Payment.PaidAt != nil {
		deadline := order.Payment.PaidAt.Add(s.cancelWindow)
		if s.clock.Now().After(deadline) {
			return nil, ErrInvalidTransition
		}
	}

	return s.cancel(ctx, order,
		[]models.OrderStatus{models.StatusCreated, models.StatusPaid},
		models.CancelledByCustomer, reason)
}

func (s *orderService) AdminCancel(ctx context.Context, orderID, reason string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Warning("admin force cancel",
		logger.String("order_id", orderID), logger.String("reason", reason))
	return s.cancel(ctx, order, nonTerminalStatuses(), models.CancelledByAdmin, reason)
}

// AdminOverride bypasses the normal guard rails: any non-terminal order can
// be forced into the given status. The override is logged for audit.
func (s *orderService) AdminOverride(ctx context.Context, orderID string, to models.OrderStatus, reason string) (*models.Order, error) {
	if to == models.StatusCancelled || to == models.StatusRefunded {
		return s.AdminCancel(ctx, orderID, reason)
	}

	s.log.Warning("admin status override",
		logger.String("order_id", orderID),
		logger.String("to", string(to)),
		logger.String("reason", reason))

	ok, err := s.orders.UpdateStatusCAS(ctx, orderID, nonTerminalStatuses(), to, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.orders.GetByID(ctx, orderID)
}

// cancel runs the shared cancellation path. When payment was captured the
// refund executes first; only after it is confirmed does the status flip to
// REFUNDED. Nothing captured means a plain CANCELLED.
func (s *orderService) cancel(ctx context.Context, order *models.Order, from []models.OrderStatus, by models.CancelActor, reason string) (*models.Order, error) {
	if order.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	captured := order.Payment.Status == models.PaymentSuccess
	if err := s.payments.Refund(ctx, order, reason); err != nil {
		// retryable: no status change until the refund is confirmed
		return nil, err
	}

	target := models.StatusCancelled
	refund := 0.0
	if captured {
		target = models.StatusRefunded
		refund = order.Pricing.GrandTotal
	}

	ok, err := s.orders.Cancel(ctx, order.ID, from, target, by, reason, refund, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if captured {
			s.log.Error("refund issued but cancellation lost the status race",
				logger.String("order_id", order.ID))
		}
		return nil, ErrInvalidTransition
	}

	if order.DeliveryPartnerID != nil {
		s.assignments.CancelTimeout(order.ID)
		if err := s.partners.Release(ctx, *order.DeliveryPartnerID); err != nil {
			s.log.Error("failed to free partner after cancellation",
				logger.String("order_id", order.ID), logger.Error(err))
		}
	}

	kind := notify.KindOrderCancelled
	if captured {
		kind = notify.KindOrderRefunded
	}
	s.emit(ctx, order.ID, kind)

	return s.orders.GetByID(ctx, order.ID)
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID, partnerID string) (*models.Order, error) {
	ok, err := s.orders.UpdateStatusForPartnerCAS(ctx, orderID, partnerID,
		[]models.OrderStatus{models.StatusPicked}, models.StatusDelivered, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	// the partner is free for new assignments once the food is handed over
	if err := s.partners.Release(ctx, partnerID); err != nil {
		s.log.Error("failed to free partner after delivery",
			logger.String("partner_id", partnerID), logger.Error(err))
	}

	s.emit(ctx, orderID, notify.KindOrderDelivered)
	return s.orders.GetByID(ctx, orderID)
}

// Complete closes the order and settles payouts: the delivery fee to the
// partner and the item total minus commission to the restaurant. For COD
// the cash collected at the door marks the payment captured here.
func (s *orderService) Complete(ctx context.Context, orderID, partnerID string) (*models.Order, error) {
	ok, err := s.orders.UpdateStatusForPartnerCAS(ctx, orderID, partnerID,
		[]models.OrderStatus{models.StatusDelivered}, models.StatusCompleted, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Payment.Method == models.PayCOD {
		if _, err := s.orders.MarkPaymentCAS(ctx, order.ID,
			models.PaymentPending, models.PaymentSuccess, "", s.clock.Now()); err != nil {
			return nil, err
		}
	}

	if _, err := s.wallets.Credit(ctx, partnerID, models.RoleDelivery,
		order.Pricing.DeliveryFee, models.TxnPayout, order.ID, "Delivery earnings"); err != nil {
		s.log.Error("failed to credit delivery earnings",
			logger.String("order_id", order.ID), logger.Error(err))
		return nil, err
	}

	if _, err := s.wallets.Credit(ctx, order.RestaurantID, models.RoleRestaurant,
		order.Pricing.RestaurantPayout, models.TxnCredit, order.ID, "Restaurant settlement"); err != nil {
		s.log.Error("failed to credit restaurant settlement",
			logger.String("order_id", order.ID), logger.Error(err))
		return nil, err
	}

	s.emit(ctx, order.ID, notify.KindOrderCompleted)
	return s.orders.GetByID(ctx, order.ID)
}

func (s *orderService) retryAssignment(ctx context.Context, orderID string) {
	assignCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.assignments.Assign(assignCtx, orderID); err != nil {
			s.log.Info("assignment retry did not bind a partner",
				logger.String("order_id", orderID), logger.Error(err))
		}
	}()
}

func (s *orderService) emit(ctx context.Context, orderID, kind string) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return
	}
	partnerID := ""
	if order.DeliveryPartnerID != nil {
		partnerID = *order.DeliveryPartnerID
	}
	fireEvent(s.notifier, s.log, notify.OrderEvent{
		Kind:         kind,
		OrderID:      order.ID,
		Status:       order.Status,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		PartnerID:    partnerID,
		Reason:       order.CancelReason,
		At:           s.clock.Now(),
	})
}

func nonTerminalStatuses() []models.OrderStatus {
	return []models.OrderStatus{
		models.StatusCreated,
		models.StatusPaymentPending,
		models.StatusPaid,
		models.StatusAccepted,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusPickupPending,
		models.StatusPicked,
		models.StatusDelivered,
	}
}
