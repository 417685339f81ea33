package postgres

import (
	"context"
	"errors"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type walletRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewWalletRepo(db *pgxpool.Pool, log logger.ILogger) storage.IWalletStorage {
	return &walletRepo{db: db, log: log}
}

func (r *walletRepo) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, role, balance, created_at FROM wallets WHERE id = $1`, id,
	).Scan(&w.ID, &w.OwnerID, &w.Role, &w.Balance, &w.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) GetOrCreate(ctx context.Context, ownerID, role string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.QueryRow(ctx, `
		INSERT INTO wallets (id, owner_id, role, balance)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (owner_id, role) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING id, owner_id, role, balance, created_at`,
		uuid.NewString(), ownerID, role,
	).Scan(&w.ID, &w.OwnerID, &w.Role, &w.Balance, &w.CreatedAt)
	if err != nil {
		r.log.Error("failed to get or create wallet", logger.String("owner_id", ownerID), logger.Error(err))
		return nil, err
	}
	return &w, nil
}

// Credit increments the balance and appends the ledger entry in one
// transaction. Balance and ledger never diverge.
func (r *walletRepo) Credit(ctx context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var w models.Wallet
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance + $1
		WHERE id = $2
		RETURNING id, owner_id, role, balance, created_at`,
		txn.Amount, walletID,
	).Scan(&w.ID, &w.OwnerID, &w.Role, &w.Balance, &w.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertTxn(ctx, tx, walletID, txn); err != nil {
		return nil, err
	}
	return &w, tx.Commit(ctx)
}

// Debit fails without mutation when the balance is insufficient: the
// conditional update touches zero rows and the transaction rolls back.
func (r *walletRepo) Debit(ctx context.Context, walletID string, txn *models.WalletTxn) (*models.Wallet, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var w models.Wallet
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING id, owner_id, role, balance, created_at`,
		txn.Amount, walletID,
	).Scan(&w.ID, &w.OwnerID, &w.Role, &w.Balance, &w.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if err := insertTxn(ctx, tx, walletID, txn); err != nil {
		return nil, false, err
	}
	return &w, true, tx.Commit(ctx)
}

func (r *walletRepo) Ledger(ctx context.Context, walletID string) ([]*models.WalletTxn, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, type, amount, order_id, reason, created_at
		FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at, id`,
		walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.WalletTxn
	for rows.Next() {
		var t models.WalletTxn
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.OrderID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

func insertTxn(ctx context.Context, tx pgx.Tx, walletID string, txn *models.WalletTxn) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, order_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, walletID, txn.Type, txn.Amount, txn.OrderID, txn.Reason, txn.CreatedAt)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
