package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"harshuu/pkg/clockx"
	"harshuu/pkg/geo"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/notify"
	"harshuu/storage"
)

// AssignmentService binds delivery partners to paid/accepted orders. The
// nearest free partner within the radius wins; the busy-flag lock decides
// races between concurrent assignment runs.
type AssignmentService interface {
	Assign(ctx context.Context, orderID string) (*models.Order, error)
	Accept(ctx context.Context, orderID, partnerID string) (*models.Order, error)
	CancelTimeout(orderID string)
}

type assignmentService struct {
	orders      storage.IOrderStorage
	partners    storage.IPartnerStorage
	restaurants storage.IRestaurantStorage
	notifier    notify.Notifier
	clock       clockx.Clock
	log         logger.ILogger

	radiusKm float64
	timeout  time.Duration

	mu     sync.Mutex
	timers map[string]clockx.Timer
}

func NewAssignmentService(stg storage.IStorage, notifier notify.Notifier, clock clockx.Clock, log logger.ILogger, radiusKm float64, timeout time.Duration) AssignmentService {
	return &assignmentService{
		orders:      stg.Order(),
		partners:    stg.Partner(),
		restaurants: stg.Restaurant(),
		notifier:    notifier,
		clock:       clock,
		log:         log,
		radiusKm:    radiusKm,
		timeout:     timeout,
		timers:      make(map[string]clockx.Timer),
	}
}

func (s *assignmentService) Assign(ctx context.Context, orderID string) (*models.Order, error) {
	return s.assign(ctx, orderID, make(map[string]bool))
}

type candidate struct {
	partner  *models.DeliveryPartner
	distance float64
}

// assign runs one assignment cycle. The exclude set carries partners that
// already timed out in this reassignment chain, so the retry terminates
// even if a released partner flips back to available immediately.
func (s *assignmentService) assign(ctx context.Context, orderID string, exclude map[string]bool) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Re-invocation on an already-assigned order is a no-op.
	if order.DeliveryPartnerID != nil {
		return order, nil
	}
	assignable := false
	for _, st := range models.AssignableStatuses() {
		if order.Status == st {
			assignable = true
			break
		}
	}
	if !assignable {
		return nil, ErrInvalidTransition
	}

	restaurant, err := s.restaurants.GetByID(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}

	pool, err := s.partners.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(pool))
	for _, p := range pool {
		if exclude[p.ID] || !p.HasLocation() {
			continue
		}
		d, err := geo.Distance(restaurant.Lat, restaurant.Lng, *p.Lat, *p.Lng)
		if err != nil {
			s.log.Warning("skipping partner with bad coordinates",
				logger.String("partner_id", p.ID), logger.Error(err))
			continue
		}
		if d > s.radiusKm {
			continue
		}
		candidates = append(candidates, candidate{partner: p, distance: d})
	}

	// Nearest first; id tie-break keeps the ranking deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].partner.ID < candidates[j].partner.ID
	})

	revertTo := order.Status
	for _, c := range candidates {
		locked, err := s.partners.TryLock(ctx, c.partner.ID)
		if err != nil {
			return nil, err
		}
		if !locked {
			// lost the partner to a concurrent assignment run
			continue
		}

		attached, err := s.orders.AttachPartner(ctx, order.ID, c.partner.ID, s.clock.Now())
		if err != nil {
			_ = s.partners.Release(ctx, c.partner.ID)
			return nil, err
		}
		if !attached {
			// another run assigned this order first, or its status moved on
			_ = s.partners.Release(ctx, c.partner.ID)
			fresh, err := s.orders.GetByID(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			if fresh.DeliveryPartnerID != nil {
				return fresh, nil
			}
			return nil, ErrInvalidTransition
		}

		s.scheduleTimeout(order.ID, c.partner.ID, revertTo, exclude)

		fresh, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		fireEvent(s.notifier, s.log, notify.OrderEvent{
			Kind:         notify.KindOrderAssigned,
			OrderID:      fresh.ID,
			Status:       fresh.Status,
			CustomerID:   fresh.CustomerID,
			RestaurantID: fresh.RestaurantID,
			PartnerID:    c.partner.ID,
			At:           s.clock.Now(),
		})
		return fresh, nil
	}

	return nil, ErrNoPartnerAvailable
}

func (s *assignmentService) scheduleTimeout(orderID, partnerID string, revertTo models.OrderStatus, exclude map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[orderID]; ok {
		t.Stop()
	}
	s.timers[orderID] = s.clock.AfterFunc(s.timeout, func() {
		s.onTimeout(orderID, partnerID, revertTo, exclude)
	})
}

// onTimeout fires when the partner did not accept in time. It re-checks the
// current order state through a conditional release: if the order moved on
// in the interim the timeout is stale and ignored.
func (s *assignmentService) onTimeout(orderID, partnerID string, revertTo models.OrderStatus, exclude map[string]bool) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.timers, orderID)
	s.mu.Unlock()

	released, err := s.orders.ReleaseAssignment(ctx, orderID, partnerID, revertTo, s.clock.Now())
	if err != nil {
		s.log.Error("failed to release timed-out assignment",
			logger.String("order_id", orderID), logger.Error(err))
		return
	}
	if !released {
		// stale timeout: partner accepted or the order was cancelled
		return
	}

	if err := s.partners.Release(ctx, partnerID); err != nil {
		s.log.Error("failed to free partner after timeout",
			logger.String("partner_id", partnerID), logger.Error(err))
	}

	s.log.Info("assignment timed out, reassigning",
		logger.String("order_id", orderID), logger.String("partner_id", partnerID))

	fireEvent(s.notifier, s.log, notify.OrderEvent{
		Kind:      notify.KindOrderReleased,
		OrderID:   orderID,
		Status:    revertTo,
		PartnerID: partnerID,
		At:        s.clock.Now(),
	})

	exclude[partnerID] = true
	if _, err := s.assign(ctx, orderID, exclude); err != nil {
		if errors.Is(err, ErrNoPartnerAvailable) {
			s.log.Info("no partner available on reassignment", logger.String("order_id", orderID))
			return
		}
		s.log.Error("reassignment failed", logger.String("order_id", orderID), logger.Error(err))
	}
}

// Accept is the partner's explicit acceptance: PICKUP_PENDING (or READY,
// when the kitchen finished first) moves to PICKED and the pending timeout
// is cancelled. A late acceptance after the timeout released the partner
// fails the conditional update and is rejected.
func (s *assignmentService) Accept(ctx context.Context, orderID, partnerID string) (*models.Order, error) {
	ok, err := s.orders.UpdateStatusForPartnerCAS(ctx, orderID, partnerID,
		[]models.OrderStatus{models.StatusPickupPending, models.StatusReady},
		models.StatusPicked, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	s.CancelTimeout(orderID)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fireEvent(s.notifier, s.log, notify.OrderEvent{
		Kind:         notify.KindOrderPicked,
		OrderID:      order.ID,
		Status:       order.Status,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		PartnerID:    partnerID,
		At:           s.clock.Now(),
	})
	return order, nil
}

func (s *assignmentService) CancelTimeout(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[orderID]; ok {
		t.Stop()
		delete(s.timers, orderID)
	}
}
