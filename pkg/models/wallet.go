package models

import "time"

// Wallet roles: one wallet per principal per role.
const (
	RoleCustomer   = "CUSTOMER"
	RoleDelivery   = "DELIVERY"
	RoleRestaurant = "RESTAURANT"
)

type TxnType string

const (
	TxnCredit TxnType = "CREDIT"
	TxnDebit  TxnType = "DEBIT"
	TxnRefund TxnType = "REFUND"
	TxnPayout TxnType = "PAYOUT"
)

// Signed returns the amount with the sign the transaction contributes to
// the balance. Balance must always equal the signed sum of the ledger.
func (t TxnType) Signed(amount float64) float64 {
	if t == TxnDebit {
		return -amount
	}
	return amount
}

type Wallet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Role      string    `json:"role"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type WalletTxn struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"wallet_id"`
	Type      TxnType   `json:"type"`
	Amount    float64   `json:"amount"`
	OrderID   string    `json:"order_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
