package storage

import (
	"context"
	"errors"
	"time"

	"harshuu/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("record not found")

type IStorage interface {
	Order() IOrderStorage
	Partner() IPartnerStorage
	Wallet() IWalletStorage
	Restaurant() IRestaurantStorage
	Menu() IMenuStorage
	Settings() ISettingsStorage
	Close()
	GetPool() *pgxpool.Pool
}

// IOrderStorage owns the order aggregate. Every status mutation is a
// conditional update keyed on the expected prior state; implementations
// report "ok=false" when the row was already changed by another actor.
type IOrderStorage interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByProviderRef(ctx context.Context, providerOrderRef string) (*models.Order, error)
	GetForCustomer(ctx context.Context, id, customerID string) (*models.Order, error)
	GetForRestaurant(ctx context.Context, id, restaurantID string) (*models.Order, error)
	GetForPartner(ctx context.Context, id, partnerID string) (*models.Order, error)

	UpdateStatusCAS(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error)
	UpdateStatusForPartnerCAS(ctx context.Context, id, partnerID string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (bool, error)

	AttachPartner(ctx context.Context, id, partnerID string, at time.Time) (bool, error)
	ReleaseAssignment(ctx context.Context, id, partnerID string, revertTo models.OrderStatus, at time.Time) (bool, error)

	SetPayment(ctx context.Context, id string, method models.PaymentMethod, status models.PaymentStatus, providerOrderRef string) error
	MarkPaymentCAS(ctx context.Context, id string, from, to models.PaymentStatus, providerPaymentRef string, at time.Time) (bool, error)

	Cancel(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, by models.CancelActor, reason string, refund float64, at time.Time) (bool, error)
}

type IPartnerStorage interface {
	GetByID(ctx context.Context, id string) (*models.DeliveryPartner, error)
	GetAvailable(ctx context.Context) ([]*models.DeliveryPartner, error)
	TryLock(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
	SetOnline(ctx context.Context, id string, online bool) error
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
}

// IWalletStorage must mutate the balance and append the ledger entry in one
// atomic unit; Debit reports ok=false without any mutation when the balance
// is insufficient.
type IWalletStorage interface {
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetOrCreate(ctx context.Context, ownerID, role string) (*models.Wallet, error)
	Credit(ctx context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, error)
	Debit(ctx context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, bool, error)
	Ledger(ctx context.Context, walletID string) ([]*models.WalletTxn, error)
}

type IRestaurantStorage interface {
	GetByID(ctx context.Context, id string) (*models.Restaurant, error)
	GetForOwner(ctx context.Context, id, ownerID string) (*models.Restaurant, error)
}

type IMenuStorage interface {
	GetItems(ctx context.Context, restaurantID string, ids []string) (map[string]*models.MenuItem, error)
}

type ISettingsStorage interface {
	Get(ctx context.Context) (*models.PricingSettings, error)
}
