package csvio_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/payengine/internal/adapter/csvio"
	"github.com/iho/payengine/internal/domain"
)

func TestWriteAccounts(t *testing.T) {
	snaps := []domain.AccountSnapshot{
		{
			ClientID:  1,
			Available: decimal.RequireFromString("1.5"),
			Held:      decimal.Zero,
			Total:     decimal.RequireFromString("1.5"),
		},
		{
			ClientID:  2,
			Available: decimal.RequireFromString("-3"),
			Held:      decimal.RequireFromString("3"),
			Total:     decimal.Zero,
			Locked:    true,
		},
	}

	var sb strings.Builder
	require.NoError(t, csvio.WriteAccounts(&sb, snaps))

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,-3.0000,3.0000,0.0000,true\n"
	require.Equal(t, want, sb.String())
}

func TestWriteAccounts_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, csvio.WriteAccounts(&sb, nil))
	require.Equal(t, "client,available,held,total,locked\n", sb.String())
}
