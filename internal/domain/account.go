package domain

import (
	"github.com/shopspring/decimal"
)

// Account holds one client's balances. Fields are unexported so every
// mutation goes through a method, and every mutating method checks the
// frozen gate first. Once frozen an account is terminal.
type Account struct {
	clientID  uint16
	available decimal.Decimal
	held      decimal.Decimal
	frozen    bool
}

// AccountSnapshot is a read-only view of an account, taken for the
// final report.
type AccountSnapshot struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// NewAccount creates an empty active account for a client.
func NewAccount(clientID uint16) *Account {
	return &Account{clientID: clientID}
}

// ClientID returns the owning client id.
func (a *Account) ClientID() uint16 { return a.clientID }

// Available returns the spendable balance.
func (a *Account) Available() decimal.Decimal { return a.available }

// Held returns funds frozen pending dispute resolution.
func (a *Account) Held() decimal.Decimal { return a.held }

// Total returns available plus held. It is always derived, never stored.
func (a *Account) Total() decimal.Decimal { return a.available.Add(a.held) }

// Frozen reports whether the account has been locked by a chargeback.
func (a *Account) Frozen() bool { return a.frozen }

// Deposit credits available funds.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if a.frozen {
		return ErrAccountFrozen
	}
	a.available = a.available.Add(amount)
	return nil
}

// Withdraw debits available funds. A withdrawal that would drive the
// available balance negative is rejected and leaves balances unchanged.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if a.frozen {
		return ErrAccountFrozen
	}
	if a.available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.available = a.available.Sub(amount)
	return nil
}

// HoldFunds moves a disputed amount from available to held. The client
// may already have spent the disputed funds, in which case available
// goes negative to reflect a debt.
func (a *Account) HoldFunds(amount decimal.Decimal) error {
	if a.frozen {
		return ErrAccountFrozen
	}
	a.available = a.available.Sub(amount)
	a.held = a.held.Add(amount)
	return nil
}

// ReleaseFunds returns a resolved dispute's amount from held to
// available.
func (a *Account) ReleaseFunds(amount decimal.Decimal) error {
	if a.frozen {
		return ErrAccountFrozen
	}
	if a.held.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.held = a.held.Sub(amount)
	a.available = a.available.Add(amount)
	return nil
}

// Chargeback removes a disputed amount from held entirely and freezes
// the account. The funds leave the system.
func (a *Account) Chargeback(amount decimal.Decimal) error {
	if a.frozen {
		return ErrAccountFrozen
	}
	if a.held.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.held = a.held.Sub(amount)
	a.frozen = true
	return nil
}

// Snapshot captures the account state for the final report.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		ClientID:  a.clientID,
		Available: a.available,
		Held:      a.held,
		Total:     a.Total(),
		Locked:    a.frozen,
	}
}
