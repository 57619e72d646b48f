package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/iho/payengine/internal/domain"
)

// WriteAccounts renders the final report, one row per client in the
// order given (the aggregator sorts ascending by client id). Decimal
// fields use the same four-place fixed precision as the input.
func WriteAccounts(w io.Writer, snapshots []domain.AccountSnapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return err
	}
	for _, snap := range snapshots {
		row := []string{
			strconv.FormatUint(uint64(snap.ClientID), 10),
			snap.Available.StringFixed(domain.MaxAmountPlaces),
			snap.Held.StringFixed(domain.MaxAmountPlaces),
			snap.Total.StringFixed(domain.MaxAmountPlaces),
			strconv.FormatBool(snap.Locked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
