// Package ledger applies transactions to accounts, consulting the
// tiered transaction store for dispute, resolve and chargeback
// references.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/store"
)

// Ledger holds the transaction application rules.
type Ledger struct {
	store *store.Tiered

	// disputableWithdrawals also records and allows disputes against
	// withdrawals. Off by default: the standard policy is that only
	// deposits are disputable.
	disputableWithdrawals bool
}

// New creates a ledger over a tiered transaction store.
func New(st *store.Tiered, disputableWithdrawals bool) *Ledger {
	return &Ledger{store: st, disputableWithdrawals: disputableWithdrawals}
}

// Apply applies one transaction to the account. Rejections (frozen
// account, insufficient funds, bad dispute reference) satisfy
// domain.IsRejection and leave the account unchanged; any other error
// is a storage failure and fatal for the run.
func (l *Ledger) Apply(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	switch tx.Kind {
	case domain.KindDeposit:
		return l.deposit(ctx, acct, tx)
	case domain.KindWithdrawal:
		return l.withdraw(ctx, acct, tx)
	case domain.KindDispute:
		return l.dispute(ctx, acct, tx)
	case domain.KindResolve:
		return l.resolve(ctx, acct, tx)
	case domain.KindChargeback:
		return l.chargeback(ctx, acct, tx)
	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}
}

// deposit records the transaction before touching the balance; the
// account must never be credited ahead of the recorded history.
func (l *Ledger) deposit(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	if acct.Frozen() {
		return domain.ErrAccountFrozen
	}
	if err := l.store.Insert(ctx, tx); err != nil {
		return err
	}
	return acct.Deposit(tx.Amount)
}

func (l *Ledger) withdraw(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	if err := acct.Withdraw(tx.Amount); err != nil {
		return err
	}
	if l.disputableWithdrawals {
		return l.store.Insert(ctx, tx)
	}
	return nil
}

func (l *Ledger) disputable(kind domain.Kind) bool {
	if kind == domain.KindDeposit {
		return true
	}
	return l.disputableWithdrawals && kind == domain.KindWithdrawal
}

// dispute moves the referenced amount from available to held. The
// amount is always re-derived from the stored record, never taken from
// the dispute row itself, so a mismatched reference cannot corrupt the
// ledger. The store transition happens atomically under the entry's
// shard lock.
func (l *Ledger) dispute(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	if acct.Frozen() {
		return domain.ErrAccountFrozen
	}

	var amount decimal.Decimal
	err := l.store.Mutate(ctx, tx.ReferenceID, func(e *store.Entry) error {
		if e.Tx.ClientID != tx.ClientID || !l.disputable(e.Tx.Kind) {
			return domain.ErrNotDisputable
		}
		if e.State != domain.DisputeStateNormal {
			return domain.ErrAlreadyDisputed
		}
		amount = e.Tx.Amount
		e.State = domain.DisputeStateDisputed
		return nil
	})
	if err != nil {
		return err
	}

	return acct.HoldFunds(amount)
}

func (l *Ledger) resolve(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	if acct.Frozen() {
		return domain.ErrAccountFrozen
	}

	amount, err := l.settle(ctx, tx, domain.DisputeStateResolved)
	if err != nil {
		return err
	}
	return acct.ReleaseFunds(amount)
}

func (l *Ledger) chargeback(ctx context.Context, acct *domain.Account, tx domain.Transaction) error {
	if acct.Frozen() {
		return domain.ErrAccountFrozen
	}

	amount, err := l.settle(ctx, tx, domain.DisputeStateChargedBack)
	if err != nil {
		return err
	}
	return acct.Chargeback(amount)
}

// settle transitions a disputed entry to its terminal state and returns
// the disputed amount. Terminal records stay in the store so a repeat
// dispute is reported as already disputed rather than not found.
func (l *Ledger) settle(ctx context.Context, tx domain.Transaction, terminal domain.DisputeState) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.store.Mutate(ctx, tx.ReferenceID, func(e *store.Entry) error {
		if e.Tx.ClientID != tx.ClientID || e.State != domain.DisputeStateDisputed {
			return domain.ErrNotDisputed
		}
		amount = e.Tx.Amount
		e.State = terminal
		return nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}
