package domain

import (
	"github.com/shopspring/decimal"
)

// Kind identifies the type of a transaction.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// MaxAmountPlaces is the maximum number of fractional digits accepted
// on deposit and withdrawal amounts.
const MaxAmountPlaces = 4

// Transaction is an immutable transaction record. Deposit and
// withdrawal carry an amount; dispute, resolve and chargeback carry a
// reference to a prior deposit instead.
type Transaction struct {
	ID          uint32          `json:"id"`
	Kind        Kind            `json:"kind"`
	ClientID    uint16          `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID uint32          `json:"reference_id,omitempty"`
}

// Funded reports whether the transaction kind carries an amount.
func (k Kind) Funded() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Referencing reports whether the transaction kind references a prior
// transaction.
func (k Kind) Referencing() bool {
	return k == KindDispute || k == KindResolve || k == KindChargeback
}

// NewDeposit builds a validated deposit transaction.
func NewDeposit(id uint32, client uint16, amount decimal.Decimal) (Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return Transaction{}, err
	}
	return Transaction{ID: id, Kind: KindDeposit, ClientID: client, Amount: amount}, nil
}

// NewWithdrawal builds a validated withdrawal transaction.
func NewWithdrawal(id uint32, client uint16, amount decimal.Decimal) (Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return Transaction{}, err
	}
	return Transaction{ID: id, Kind: KindWithdrawal, ClientID: client, Amount: amount}, nil
}

// NewDispute builds a dispute referencing a prior transaction.
func NewDispute(client uint16, referenceID uint32) Transaction {
	return Transaction{Kind: KindDispute, ClientID: client, ReferenceID: referenceID}
}

// NewResolve builds a resolve referencing a disputed transaction.
func NewResolve(client uint16, referenceID uint32) Transaction {
	return Transaction{Kind: KindResolve, ClientID: client, ReferenceID: referenceID}
}

// NewChargeback builds a chargeback referencing a disputed transaction.
func NewChargeback(client uint16, referenceID uint32) Transaction {
	return Transaction{Kind: KindChargeback, ClientID: client, ReferenceID: referenceID}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(MaxAmountPlaces)) {
		return ErrInvalidAmount
	}
	return nil
}
