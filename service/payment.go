package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"harshuu/pkg/clockx"
	"harshuu/pkg/gateway"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/money"
	"harshuu/pkg/notify"
	"harshuu/storage"
)

// ProviderCheckout is what the client needs to drive the external payment
// widget.
type ProviderCheckout struct {
	ProviderOrderRef string `json:"provider_order_ref"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

type PaymentService interface {
	CreateProviderOrder(ctx context.Context, orderID, customerID string) (*ProviderCheckout, error)
	ConfirmCallback(ctx context.Context, providerOrderRef, providerPaymentRef, signature string) (*models.Order, error)
	PayCOD(ctx context.Context, orderID, customerID string) (*models.Order, error)
	PayWallet(ctx context.Context, orderID, customerID string) (*models.Order, error)
	Refund(ctx context.Context, order *models.Order, reason string) error
}

type paymentService struct {
	orders      storage.IOrderStorage
	gw          gateway.Gateway
	wallets     WalletService
	assignments AssignmentService
	notifier    notify.Notifier
	clock       clockx.Clock
	log         logger.ILogger

	secret   string
	currency string
}

func NewPaymentService(stg storage.IStorage, gw gateway.Gateway, wallets WalletService, assignments AssignmentService, notifier notify.Notifier, clock clockx.Clock, log logger.ILogger, secret, currency string) PaymentService {
	return &paymentService{
		orders:      stg.Order(),
		gw:          gw,
		wallets:     wallets,
		assignments: assignments,
		notifier:    notifier,
		clock:       clock,
		log:         log,
		secret:      secret,
		currency:    currency,
	}
}

func (s *paymentService) CreateProviderOrder(ctx context.Context, orderID, customerID string) (*ProviderCheckout, error) {
	order, err := s.orders.GetForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusCreated {
		return nil, ErrInvalidTransition
	}

	amount := money.Minor(order.Pricing.GrandTotal)
	ref, err := s.gw.CreateOrder(ctx, amount, s.currency, "harshuu_order_"+order.ID)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetPayment(ctx, order.ID, models.PayOnline, models.PaymentPending, ref); err != nil {
		return nil, err
	}
	if _, err := s.orders.UpdateStatusCAS(ctx, order.ID,
		[]models.OrderStatus{models.StatusCreated}, models.StatusPaymentPending, s.clock.Now()); err != nil {
		return nil, err
	}

	return &ProviderCheckout{
		ProviderOrderRef: ref,
		Amount:           amount,
		Currency:         s.currency,
	}, nil
}

func (s *paymentService) verifySignature(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ConfirmCallback settles a provider payment-captured event. The signature
// must verify before anything is trusted, and replaying a verified callback
// for an already-settled payment is a no-op.
func (s *paymentService) ConfirmCallback(ctx context.Context, providerOrderRef, providerPaymentRef, signature string) (*models.Order, error) {
	if !s.verifySignature(providerOrderRef, providerPaymentRef, signature) {
		s.log.Warning("payment callback signature mismatch",
			logger.String("provider_order_ref", providerOrderRef))
		return nil, ErrSignatureMismatch
	}

	order, err := s.orders.GetByProviderRef(ctx, providerOrderRef)
	if err != nil {
		return nil, err
	}

	if order.Payment.Status == models.PaymentSuccess {
		return order, nil
	}

	ok, err := s.orders.MarkPaymentCAS(ctx, order.ID,
		models.PaymentPending, models.PaymentSuccess, providerPaymentRef, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if fresh.Payment.Status == models.PaymentSuccess {
			return fresh, nil
		}
		return nil, ErrInvalidTransition
	}

	moved, err := s.orders.UpdateStatusCAS(ctx, order.ID,
		[]models.OrderStatus{models.StatusPaymentPending}, models.StatusPaid, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		s.log.Warning("payment captured but order already left PAYMENT_PENDING",
			logger.String("order_id", order.ID))
	}

	return s.settled(ctx, order.ID)
}

func (s *paymentService) PayCOD(ctx context.Context, orderID, customerID string) (*models.Order, error) {
	order, err := s.orders.GetForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusCreated {
		return nil, ErrInvalidTransition
	}

	if err := s.orders.SetPayment(ctx, order.ID, models.PayCOD, models.PaymentPending, ""); err != nil {
		return nil, err
	}
	ok, err := s.orders.UpdateStatusCAS(ctx, order.ID,
		[]models.OrderStatus{models.StatusCreated}, models.StatusPaid, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	return s.settled(ctx, order.ID)
}

// PayWallet debits the exact grand total in a single atomic operation; a
// partial debit can never happen. If the order slipped out of CREATED while
// the debit was in flight, the debit is compensated with a refund credit.
func (s *paymentService) PayWallet(ctx context.Context, orderID, customerID string) (*models.Order, error) {
	order, err := s.orders.GetForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusCreated {
		return nil, ErrInvalidTransition
	}

	if _, err := s.wallets.Debit(ctx, customerID, models.RoleCustomer,
		order.Pricing.GrandTotal, order.ID, "Order payment via wallet"); err != nil {
		return nil, err
	}

	if err := s.orders.SetPayment(ctx, order.ID, models.PayWallet, models.PaymentPending, ""); err != nil {
		return nil, err
	}
	if _, err := s.orders.MarkPaymentCAS(ctx, order.ID,
		models.PaymentPending, models.PaymentSuccess, "", s.clock.Now()); err != nil {
		return nil, err
	}

	ok, err := s.orders.UpdateStatusCAS(ctx, order.ID,
		[]models.OrderStatus{models.StatusCreated}, models.StatusPaid, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, cerr := s.wallets.Credit(ctx, customerID, models.RoleCustomer,
			order.Pricing.GrandTotal, models.TxnRefund, order.ID, "Wallet payment reversal"); cerr != nil {
			s.log.Error("failed to reverse wallet debit after lost status race",
				logger.String("order_id", order.ID), logger.Error(cerr))
			return nil, cerr
		}
		return nil, ErrInvalidTransition
	}

	return s.settled(ctx, order.ID)
}

// settled runs the common post-payment path: notify and kick off partner
// assignment without blocking the request.
func (s *paymentService) settled(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fireEvent(s.notifier, s.log, notify.OrderEvent{
		Kind:         notify.KindOrderPaid,
		OrderID:      order.ID,
		Status:       order.Status,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Amount:       order.Pricing.GrandTotal,
		At:           s.clock.Now(),
	})

	assignCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.assignments.Assign(assignCtx, order.ID); err != nil {
			if errors.Is(err, ErrNoPartnerAvailable) || errors.Is(err, ErrInvalidTransition) {
				s.log.Info("assignment deferred", logger.String("order_id", order.ID), logger.Error(err))
				return
			}
			s.log.Error("assignment failed after payment", logger.String("order_id", order.ID), logger.Error(err))
		}
	}()

	return order, nil
}

// Refund reverses a captured payment according to its method. For ONLINE
// the payment is marked REFUNDED only after the provider confirms; a failed
// provider call surfaces as a retryable error with no state change.
func (s *paymentService) Refund(ctx context.Context, order *models.Order, reason string) error {
	switch order.Payment.Status {
	case models.PaymentRefunded, models.PaymentCancelled:
		return nil
	}

	now := s.clock.Now()

	switch order.Payment.Method {
	case models.PayOnline:
		if order.Payment.Status != models.PaymentSuccess {
			_, err := s.orders.MarkPaymentCAS(ctx, order.ID,
				models.PaymentPending, models.PaymentCancelled, "", now)
			return err
		}
		if order.Payment.ProviderPaymentRef == "" {
			return fmt.Errorf("order %s: missing provider payment reference", order.ID)
		}
		if _, err := s.gw.Refund(ctx, order.Payment.ProviderPaymentRef,
			money.Minor(order.Pricing.GrandTotal)); err != nil {
			return fmt.Errorf("provider refund not confirmed: %w", err)
		}
		_, err := s.orders.MarkPaymentCAS(ctx, order.ID,
			models.PaymentSuccess, models.PaymentRefunded, "", now)
		return err

	case models.PayWallet:
		ok, err := s.orders.MarkPaymentCAS(ctx, order.ID,
			models.PaymentSuccess, models.PaymentRefunded, "", now)
		if err != nil {
			return err
		}
		if !ok {
			// already refunded by a concurrent call; never double-credit
			return nil
		}
		_, err = s.wallets.Credit(ctx, order.CustomerID, models.RoleCustomer,
			order.Pricing.GrandTotal, models.TxnRefund, order.ID, reason)
		return err

	case models.PayCOD:
		// no money ever moved
		_, err := s.orders.MarkPaymentCAS(ctx, order.ID,
			models.PaymentPending, models.PaymentCancelled, "", now)
		return err
	}

	return fmt.Errorf("order %s: unknown payment method %q", order.ID, order.Payment.Method)
}
