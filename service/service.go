package service

import (
	"context"
	"time"

	"harshuu/pkg/clockx"
	"harshuu/pkg/gateway"
	"harshuu/pkg/logger"
	"harshuu/pkg/notify"
	"harshuu/storage"
)

type IServiceManager interface {
	Pricing() PricingService
	Order() OrderService
	Assignment() AssignmentService
	Payment() PaymentService
	Wallet() WalletService
}

// Options carries the domain knobs the services need beyond their
// collaborators.
type Options struct {
	GatewaySecret      string
	Currency           string
	AssignmentRadiusKm float64
	AssignmentTimeout  time.Duration
	CancelWindow       time.Duration
}

type service struct {
	pricingService    PricingService
	orderService      OrderService
	assignmentService AssignmentService
	paymentService    PaymentService
	walletService     WalletService
}

func New(stg storage.IStorage, gw gateway.Gateway, notifier notify.Notifier, clock clockx.Clock, log logger.ILogger, opts Options) IServiceManager {
	wallets := NewWalletService(stg, clock, log)
	pricing := NewPricingService(stg, log)
	assignments := NewAssignmentService(stg, notifier, clock, log, opts.AssignmentRadiusKm, opts.AssignmentTimeout)
	payments := NewPaymentService(stg, gw, wallets, assignments, notifier, clock, log, opts.GatewaySecret, opts.Currency)
	orders := NewOrderService(stg, pricing, payments, assignments, wallets, notifier, clock, log, opts.CancelWindow)

	return &service{
		pricingService:    pricing,
		orderService:      orders,
		assignmentService: assignments,
		paymentService:    payments,
		walletService:     wallets,
	}
}

func (s *service) Pricing() PricingService       { return s.pricingService }
func (s *service) Order() OrderService           { return s.orderService }
func (s *service) Assignment() AssignmentService { return s.assignmentService }
func (s *service) Payment() PaymentService       { return s.paymentService }
func (s *service) Wallet() WalletService         { return s.walletService }

// fireEvent publishes a notification without blocking the caller; delivery
// failure is logged and never fails the core operation.
func fireEvent(n notify.Notifier, log logger.ILogger, e notify.OrderEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.OrderEvent(ctx, e); err != nil {
			log.Warning("notification publish failed",
				logger.String("kind", e.Kind), logger.Error(err))
		}
	}()
}
