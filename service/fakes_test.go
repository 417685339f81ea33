package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"harshuu/pkg/clockx"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/money"
	"harshuu/pkg/notify"
	"harshuu/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type testEnv struct {
	store *fakeStore
	clock *fakeClock
	gw    *fakeGateway
	svc   IServiceManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := newFakeStore()
	clk := newFakeClock()
	gw := &fakeGateway{}
	svc := New(fs, gw, notify.Nop(), clk, logger.New("test"), Options{
		GatewaySecret:      "test-secret",
		Currency:           "INR",
		AssignmentRadiusKm: 6,
		AssignmentTimeout:  15 * time.Second,
		CancelWindow:       5 * time.Minute,
	})
	return &testEnv{store: fs, clock: clk, gw: gw, svc: svc}
}

// Restaurant at the origin with a couple of menu items; distances in the
// tests are then pure latitude offsets (1 degree of latitude is ~111.2 km).
func (e *testEnv) seedRestaurant() {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.restaurants["r1"] = &models.Restaurant{
		ID: "r1", OwnerID: "owner1", Name: "Tandoor Hub",
		Approved: true, Lat: 0, Lng: 0, DeliveryRadiusKm: 10,
	}
	e.store.menu["m1"] = &models.MenuItem{ID: "m1", RestaurantID: "r1", Name: "Paneer Tikka", Price: 250, Available: true}
	e.store.menu["m2"] = &models.MenuItem{ID: "m2", RestaurantID: "r1", Name: "Butter Naan", Price: 50, Available: true}
	e.store.menu["m3"] = &models.MenuItem{ID: "m3", RestaurantID: "r1", Name: "Seasonal Special", Price: 180, Available: false}
}

func (e *testEnv) seedPartner(id string, latDeg float64) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	lat, lng := latDeg, 0.0
	e.store.partners[id] = &models.DeliveryPartner{
		ID: id, Name: "Partner " + id, Approved: true, Online: true,
		Lat: &lat, Lng: &lng,
	}
}

// seedPaidOrder drops an order straight into the store so tests can drive
// a single transition without going through the payment goroutines.
func (e *testEnv) seedPaidOrder(id string, method models.PaymentMethod, paymentStatus models.PaymentStatus) *models.Order {
	now := e.clock.Now()
	order := &models.Order{
		ID:           id,
		CustomerID:   "cust1",
		RestaurantID: "r1",
		Items: []models.OrderItem{
			{MenuItemID: "m1", Name: "Paneer Tikka", UnitPrice: 250, Quantity: 2, LineTotal: 500},
		},
		Pricing: models.Pricing{
			ItemTotal: 500, BaseDeliveryFee: 54, DeliveryFee: 54,
			Commission: 100, Tax: 7.7, GrandTotal: 561.7,
			RestaurantPayout: 400, DistanceKm: 3,
		},
		Payment:   models.Payment{Method: method, Status: paymentStatus},
		Status:    models.StatusPaid,
		DropLat:   0.027,
		DropLng:   0,
		History:   []models.StatusChange{{Status: models.StatusCreated, At: now}, {Status: models.StatusPaid, At: now}},
		CreatedAt: now,
	}
	if paymentStatus == models.PaymentSuccess {
		t := now
		order.Payment.PaidAt = &t
	}
	if method == models.PayOnline {
		order.Payment.ProviderOrderRef = "prov_order_" + id
		if paymentStatus == models.PaymentSuccess {
			order.Payment.ProviderPaymentRef = "pay_" + id
		}
	}
	e.store.mu.Lock()
	e.store.orders[order.ID] = order
	e.store.mu.Unlock()
	return cloneOrder(order)
}

func (e *testEnv) order(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := e.store.Order().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("order %s: %v", id, err)
	}
	return o
}

// fakeStore is an in-memory storage.IStorage. Conditional updates take the
// same mutex, so the compare-and-set behavior matches the SQL repos.
type fakeStore struct {
	mu sync.Mutex

	orders      map[string]*models.Order
	partners    map[string]*models.DeliveryPartner
	restaurants map[string]*models.Restaurant
	menu        map[string]*models.MenuItem
	wallets     map[string]*models.Wallet
	txns        map[string][]*models.WalletTxn
	settings    *models.PricingSettings
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:      make(map[string]*models.Order),
		partners:    make(map[string]*models.DeliveryPartner),
		restaurants: make(map[string]*models.Restaurant),
		menu:        make(map[string]*models.MenuItem),
		wallets:     make(map[string]*models.Wallet),
		txns:        make(map[string][]*models.WalletTxn),
		settings:    models.DefaultPricingSettings(),
	}
}

func (f *fakeStore) Order() storage.IOrderStorage           { return (*fakeOrderRepo)(f) }
func (f *fakeStore) Partner() storage.IPartnerStorage       { return (*fakePartnerRepo)(f) }
func (f *fakeStore) Wallet() storage.IWalletStorage         { return (*fakeWalletRepo)(f) }
func (f *fakeStore) Restaurant() storage.IRestaurantStorage { return (*fakeRestaurantRepo)(f) }
func (f *fakeStore) Menu() storage.IMenuStorage             { return (*fakeMenuRepo)(f) }
func (f *fakeStore) Settings() storage.ISettingsStorage     { return (*fakeSettingsRepo)(f) }
func (f *fakeStore) Close()                                 {}
func (f *fakeStore) GetPool() *pgxpool.Pool                 { return nil }

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.DeliveryPartnerID != nil {
		id := *o.DeliveryPartnerID
		c.DeliveryPartnerID = &id
	}
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.History = append([]models.StatusChange(nil), o.History...)
	return &c
}

type fakeOrderRepo fakeStore

func (r *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetByProviderRef(_ context.Context, ref string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.ProviderOrderRef == ref && ref != "" {
			return cloneOrder(o), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *fakeOrderRepo) GetForCustomer(_ context.Context, id, customerID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.CustomerID != customerID {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetForRestaurant(_ context.Context, id, restaurantID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.RestaurantID != restaurantID {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetForPartner(_ context.Context, id, partnerID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != partnerID {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func statusIn(s models.OrderStatus, set []models.OrderStatus) bool {
	for _, st := range set {
		if s == st {
			return true
		}
	}
	return false
}

func (r *fakeOrderRepo) UpdateStatusCAS(_ context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = to
	o.History = append(o.History, models.StatusChange{Status: to, At: at})
	return true, nil
}

func (r *fakeOrderRepo) UpdateStatusForPartnerCAS(_ context.Context, id, partnerID string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != partnerID || !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = to
	o.History = append(o.History, models.StatusChange{Status: to, At: at})
	return true, nil
}

func (r *fakeOrderRepo) AttachPartner(_ context.Context, id, partnerID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if o.DeliveryPartnerID != nil || !statusIn(o.Status, models.AssignableStatuses()) {
		return false, nil
	}
	pid := partnerID
	o.DeliveryPartnerID = &pid
	o.Status = models.StatusPickupPending
	o.AssignedAt = &at
	o.AssignAttempts++
	o.History = append(o.History, models.StatusChange{Status: models.StatusPickupPending, At: at})
	return true, nil
}

func (r *fakeOrderRepo) ReleaseAssignment(_ context.Context, id, partnerID string, revertTo models.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != partnerID || o.Status != models.StatusPickupPending {
		return false, nil
	}
	o.DeliveryPartnerID = nil
	o.AssignedAt = nil
	o.Status = revertTo
	o.History = append(o.History, models.StatusChange{Status: revertTo, At: at})
	return true, nil
}

func (r *fakeOrderRepo) SetPayment(_ context.Context, id string, method models.PaymentMethod, status models.PaymentStatus, providerOrderRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	o.Payment.Method = method
	o.Payment.Status = status
	o.Payment.ProviderOrderRef = providerOrderRef
	return nil
}

func (r *fakeOrderRepo) MarkPaymentCAS(_ context.Context, id string, from, to models.PaymentStatus, providerPaymentRef string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if o.Payment.Status != from {
		return false, nil
	}
	o.Payment.Status = to
	if providerPaymentRef != "" {
		o.Payment.ProviderPaymentRef = providerPaymentRef
	}
	switch to {
	case models.PaymentSuccess:
		t := at
		o.Payment.PaidAt = &t
	case models.PaymentRefunded:
		t := at
		o.Payment.RefundedAt = &t
	}
	return true, nil
}

func (r *fakeOrderRepo) Cancel(_ context.Context, id string, from []models.OrderStatus, to models.OrderStatus, by models.CancelActor, reason string, refund float64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = to
	o.CancelledBy = by
	o.CancelReason = reason
	o.RefundAmount = refund
	o.History = append(o.History, models.StatusChange{Status: to, At: at})
	return true, nil
}

type fakePartnerRepo fakeStore

func (r *fakePartnerRepo) GetByID(_ context.Context, id string) (*models.DeliveryPartner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partners[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakePartnerRepo) GetAvailable(_ context.Context) ([]*models.DeliveryPartner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DeliveryPartner
	for _, p := range r.partners {
		if p.Approved && p.Online && !p.Busy {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakePartnerRepo) TryLock(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partners[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Busy || !p.Online {
		return false, nil
	}
	p.Busy = true
	return true, nil
}

func (r *fakePartnerRepo) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.partners[id]; ok {
		p.Busy = false
	}
	return nil
}

func (r *fakePartnerRepo) SetOnline(_ context.Context, id string, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partners[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Online = online
	return nil
}

func (r *fakePartnerRepo) UpdateLocation(_ context.Context, id string, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partners[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Lat, p.Lng = &lat, &lng
	return nil
}

type fakeWalletRepo fakeStore

func (r *fakeWalletRepo) GetByID(_ context.Context, id string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (r *fakeWalletRepo) GetOrCreate(_ context.Context, ownerID, role string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := "w_" + ownerID + "_" + role
	w, ok := r.wallets[id]
	if !ok {
		w = &models.Wallet{ID: id, OwnerID: ownerID, Role: role}
		r.wallets[id] = w
	}
	c := *w
	return &c, nil
}

func (r *fakeWalletRepo) Credit(_ context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	w.Balance = money.Round2(w.Balance + txn.Amount)
	r.txns[walletID] = append(r.txns[walletID], txn)
	c := *w
	return &c, nil
}

func (r *fakeWalletRepo) Debit(_ context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, false, storage.ErrNotFound
	}
	if w.Balance < txn.Amount {
		return nil, false, nil
	}
	w.Balance = money.Round2(w.Balance - txn.Amount)
	r.txns[walletID] = append(r.txns[walletID], txn)
	c := *w
	return &c, true, nil
}

func (r *fakeWalletRepo) Ledger(_ context.Context, walletID string) ([]*models.WalletTxn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.WalletTxn(nil), r.txns[walletID]...), nil
}

type fakeRestaurantRepo fakeStore

func (r *fakeRestaurantRepo) GetByID(_ context.Context, id string) (*models.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rest, ok := r.restaurants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *rest
	return &c, nil
}

func (r *fakeRestaurantRepo) GetForOwner(_ context.Context, id, ownerID string) (*models.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rest, ok := r.restaurants[id]
	if !ok || rest.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}
	c := *rest
	return &c, nil
}

type fakeMenuRepo fakeStore

func (r *fakeMenuRepo) GetItems(_ context.Context, restaurantID string, ids []string) (map[string]*models.MenuItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.MenuItem)
	for _, id := range ids {
		if m, ok := r.menu[id]; ok && m.RestaurantID == restaurantID {
			c := *m
			out[id] = &c
		}
	}
	return out, nil
}

type fakeSettingsRepo fakeStore

func (r *fakeSettingsRepo) Get(_ context.Context) (*models.PricingSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *r.settings
	return &c, nil
}

// fakeClock drives time by hand. Advance fires due AfterFunc callbacks
// synchronously, outside the lock, so a callback may schedule new timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	mu       sync.Mutex
	deadline time.Time
	f        func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) clockx.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		if !t.isStopped() && !t.deadline.After(c.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		if !t.isStopped() {
			t.f()
		}
	}
}

// fakeGateway records provider calls and can be told to fail refunds.
type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	refunds   int
	refundErr error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	return fmt.Sprintf("prov_order_%d", g.orders), nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentRef string, amountMinor int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds++
	return fmt.Sprintf("rfnd_%d", g.refunds), nil
}

func (g *fakeGateway) setRefundErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundErr = err
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}
