package service

import (
	"context"
	"fmt"

	"harshuu/pkg/clockx"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/money"
	"harshuu/storage"

	"github.com/google/uuid"
)

type WalletService interface {
	GetOrCreate(ctx context.Context, ownerID, role string) (*models.Wallet, error)
	Credit(ctx context.Context, ownerID, role string, amount float64, txnType models.TxnType, orderID, reason string) (*models.Wallet, error)
	Debit(ctx context.Context, ownerID, role string, amount float64, orderID, reason string) (*models.Wallet, error)
	Ledger(ctx context.Context, walletID string) ([]*models.WalletTxn, error)
	Reconcile(ctx context.Context, walletID string) error
	AdminAdjust(ctx context.Context, ownerID, role string, amount float64, txnType models.TxnType, reason string) (*models.Wallet, error)
}

type walletService struct {
	wallets storage.IWalletStorage
	clock   clockx.Clock
	log     logger.ILogger
}

func NewWalletService(stg storage.IStorage, clock clockx.Clock, log logger.ILogger) WalletService {
	return &walletService{
		wallets: stg.Wallet(),
		clock:   clock,
		log:     log,
	}
}

func (s *walletService) GetOrCreate(ctx context.Context, ownerID, role string) (*models.Wallet, error) {
	return s.wallets.GetOrCreate(ctx, ownerID, role)
}

func (s *walletService) Credit(ctx context.Context, ownerID, role string, amount float64, txnType models.TxnType, orderID, reason string) (*models.Wallet, error) {
	amount = money.Round2(amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.wallets.GetOrCreate(ctx, ownerID, role)
	if err != nil {
		return nil, err
	}

	return s.wallets.Credit(ctx, wallet.ID, &models.WalletTxn{
		ID:        uuid.NewString(),
		WalletID:  wallet.ID,
		Type:      txnType,
		Amount:    amount,
		OrderID:   orderID,
		Reason:    reason,
		CreatedAt: s.clock.Now(),
	})
}

// Debit is all-or-nothing: on insufficient balance nothing is mutated and
// ErrInsufficientBalance is returned.
func (s *walletService) Debit(ctx context.Context, ownerID, role string, amount float64, orderID, reason string) (*models.Wallet, error) {
	amount = money.Round2(amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.wallets.GetOrCreate(ctx, ownerID, role)
	if err != nil {
		return nil, err
	}

	updated, ok, err := s.wallets.Debit(ctx, wallet.ID, &models.WalletTxn{
		ID:        uuid.NewString(),
		WalletID:  wallet.ID,
		Type:      models.TxnDebit,
		Amount:    amount,
		OrderID:   orderID,
		Reason:    reason,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}
	return updated, nil
}

func (s *walletService) Ledger(ctx context.Context, walletID string) ([]*models.WalletTxn, error) {
	return s.wallets.Ledger(ctx, walletID)
}

// Reconcile asserts the central ledger invariant: the balance equals the
// signed sum of all ledger entries. A mismatch is an integrity violation.
func (s *walletService) Reconcile(ctx context.Context, walletID string) error {
	wallet, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return err
	}

	txns, err := s.wallets.Ledger(ctx, walletID)
	if err != nil {
		return err
	}

	sum := 0.0
	for _, t := range txns {
		sum = money.Round2(sum + t.Type.Signed(t.Amount))
	}

	if money.Round2(wallet.Balance) != sum {
		s.log.Error("wallet balance diverged from ledger",
			logger.String("wallet_id", walletID),
			logger.Float64("balance", wallet.Balance),
			logger.Float64("ledger_sum", sum),
		)
		return fmt.Errorf("wallet %s: balance %.2f != ledger sum %.2f", walletID, wallet.Balance, sum)
	}
	return nil
}

func (s *walletService) AdminAdjust(ctx context.Context, ownerID, role string, amount float64, txnType models.TxnType, reason string) (*models.Wallet, error) {
	switch txnType {
	case models.TxnCredit:
		return s.Credit(ctx, ownerID, role, amount, models.TxnCredit, "", reason)
	case models.TxnDebit:
		return s.Debit(ctx, ownerID, role, amount, "", reason)
	default:
		return nil, ErrInvalidAmount
	}
}
