package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/ledger"
	"github.com/iho/payengine/internal/store"
	"github.com/iho/payengine/internal/store/coldstore"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newLedger(t *testing.T, hotCapacity int) *ledger.Ledger {
	t.Helper()
	return ledger.New(store.New(coldstore.NewMemory(), hotCapacity, nil), false)
}

func deposit(t *testing.T, id uint32, client uint16, amount string) domain.Transaction {
	t.Helper()
	tx, err := domain.NewDeposit(id, client, dec(t, amount))
	require.NoError(t, err)
	return tx
}

func withdrawal(t *testing.T, id uint32, client uint16, amount string) domain.Transaction {
	t.Helper()
	tx, err := domain.NewWithdrawal(id, client, dec(t, amount))
	require.NoError(t, err)
	return tx
}

func requireBalances(t *testing.T, acct *domain.Account, available, held string) {
	t.Helper()
	require.True(t, acct.Available().Equal(dec(t, available)),
		"available: want %s, got %s", available, acct.Available())
	require.True(t, acct.Held().Equal(dec(t, held)),
		"held: want %s, got %s", held, acct.Held())
	require.True(t, acct.Total().Equal(acct.Available().Add(acct.Held())),
		"total must reconcile")
}

func TestApply_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "10")))
	require.NoError(t, l.Apply(ctx, acct, withdrawal(t, 2, 1, "4")))
	requireBalances(t, acct, "6", "0")
}

func TestApply_WithdrawInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "10")))
	err := l.Apply(ctx, acct, withdrawal(t, 2, 1, "10.0001"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	requireBalances(t, acct, "10", "0")
}

func TestApply_DisputeLifecycle(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "5")))
	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 1)))
	requireBalances(t, acct, "0", "5")

	require.NoError(t, l.Apply(ctx, acct, domain.NewResolve(1, 1)))
	requireBalances(t, acct, "5", "0")

	// A resolved transaction cannot be disputed again.
	err := l.Apply(ctx, acct, domain.NewDispute(1, 1))
	require.ErrorIs(t, err, domain.ErrAlreadyDisputed)
	requireBalances(t, acct, "5", "0")
}

func TestApply_DisputeErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   []domain.Transaction
		tx      domain.Transaction
		wantErr error
	}{
		{
			name:    "unknown reference",
			tx:      domain.NewDispute(1, 99),
			wantErr: domain.ErrTransactionNotFound,
		},
		{
			name: "dispute another client's deposit",
			setup: []domain.Transaction{
				deposit(t, 1, 2, "5"),
			},
			tx:      domain.NewDispute(1, 1),
			wantErr: domain.ErrNotDisputable,
		},
		{
			name: "second dispute",
			setup: []domain.Transaction{
				deposit(t, 1, 1, "5"),
				domain.NewDispute(1, 1),
			},
			tx:      domain.NewDispute(1, 1),
			wantErr: domain.ErrAlreadyDisputed,
		},
		{
			name: "resolve without dispute",
			setup: []domain.Transaction{
				deposit(t, 1, 1, "5"),
			},
			tx:      domain.NewResolve(1, 1),
			wantErr: domain.ErrNotDisputed,
		},
		{
			name: "chargeback without dispute",
			setup: []domain.Transaction{
				deposit(t, 1, 1, "5"),
			},
			tx:      domain.NewChargeback(1, 1),
			wantErr: domain.ErrNotDisputed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, 64)
			accounts := map[uint16]*domain.Account{
				1: domain.NewAccount(1),
				2: domain.NewAccount(2),
			}
			for _, tx := range tt.setup {
				require.NoError(t, l.Apply(ctx, accounts[tx.ClientID], tx))
			}

			acct := accounts[tt.tx.ClientID]
			before := acct.Snapshot()

			err := l.Apply(ctx, acct, tt.tx)
			require.ErrorIs(t, err, tt.wantErr)
			require.True(t, domain.IsRejection(err))

			after := acct.Snapshot()
			require.True(t, before.Available.Equal(after.Available), "rejection mutated available")
			require.True(t, before.Held.Equal(after.Held), "rejection mutated held")
		})
	}
}

func TestApply_WithdrawalNotDisputableByDefault(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "10")))
	require.NoError(t, l.Apply(ctx, acct, withdrawal(t, 2, 1, "4")))

	// Withdrawals are not recorded, so the reference does not resolve.
	err := l.Apply(ctx, acct, domain.NewDispute(1, 2))
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestApply_DisputableWithdrawals(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.New(coldstore.NewMemory(), 64, nil), true)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "10")))
	require.NoError(t, l.Apply(ctx, acct, withdrawal(t, 2, 1, "4")))

	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 2)))
	requireBalances(t, acct, "2", "4")
}

func TestApply_ChargebackFreezesAccount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "5")))
	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 1)))
	require.NoError(t, l.Apply(ctx, acct, domain.NewChargeback(1, 1)))

	require.True(t, acct.Frozen())
	requireBalances(t, acct, "0", "0")

	// Any transaction of any kind is rejected afterwards.
	for _, tx := range []domain.Transaction{
		deposit(t, 10, 1, "1"),
		withdrawal(t, 11, 1, "1"),
		domain.NewDispute(1, 1),
		domain.NewResolve(1, 1),
		domain.NewChargeback(1, 1),
	} {
		err := l.Apply(ctx, acct, tx)
		require.ErrorIs(t, err, domain.ErrAccountFrozen, "kind %s", tx.Kind)
	}
	requireBalances(t, acct, "0", "0")
}

func TestApply_DisputeSpilledToColdTier(t *testing.T) {
	ctx := context.Background()
	// Hot tier of one entry: the first deposit is evicted to the cold
	// tier before the dispute arrives.
	l := ledger.New(store.New(coldstore.NewMemory(), 1, nil), false)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "5")))
	require.NoError(t, l.Apply(ctx, acct, deposit(t, 2, 1, "3")))

	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 1)))
	requireBalances(t, acct, "3", "5")

	require.NoError(t, l.Apply(ctx, acct, domain.NewResolve(1, 1)))
	requireBalances(t, acct, "8", "0")
}

// The worked end-to-end scenario: deposits, a resolved dispute, then a
// charged-back dispute freezing the account.
func TestApply_FullScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, 64)
	acct := domain.NewAccount(1)

	require.NoError(t, l.Apply(ctx, acct, deposit(t, 1, 1, "5")))
	require.NoError(t, l.Apply(ctx, acct, deposit(t, 2, 1, "3")))
	require.NoError(t, l.Apply(ctx, acct, withdrawal(t, 3, 1, "2")))
	requireBalances(t, acct, "6", "0")

	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 1)))
	requireBalances(t, acct, "1", "5")

	require.NoError(t, l.Apply(ctx, acct, domain.NewResolve(1, 1)))
	requireBalances(t, acct, "6", "0")

	require.NoError(t, l.Apply(ctx, acct, domain.NewDispute(1, 2)))
	require.NoError(t, l.Apply(ctx, acct, domain.NewChargeback(1, 2)))
	requireBalances(t, acct, "3", "0")
	require.True(t, acct.Frozen())
	require.True(t, acct.Total().Equal(dec(t, "3")))

	err := l.Apply(ctx, acct, deposit(t, 4, 1, "100"))
	require.ErrorIs(t, err, domain.ErrAccountFrozen)
	requireBalances(t, acct, "3", "0")
}
