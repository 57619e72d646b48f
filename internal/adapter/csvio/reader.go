// Package csvio adapts the line-oriented CSV transaction format to
// domain transactions, and renders the final account report.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
)

// Reader produces a lazy, finite, non-restartable transaction sequence
// from a CSV source. Malformed rows are logged and skipped, never
// aborting the stream; only an unreadable source or a bad header is
// fatal.
type Reader struct {
	csv     *csv.Reader
	log     zerolog.Logger
	metrics *metrics.Metrics

	columns map[string]int
	row     int
	skipped int
}

// NewReader wraps r. Whitespace around fields is tolerated, and rows
// may omit the trailing amount column; m may be nil.
func NewReader(r io.Reader, log zerolog.Logger, m *metrics.Metrics) *Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	return &Reader{
		csv:     cr,
		log:     log,
		metrics: m,
	}
}

// Next returns the next well-formed transaction, io.EOF at end of
// stream, or a fatal error.
func (r *Reader) Next() (domain.Transaction, error) {
	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return domain.Transaction{}, io.EOF
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.skip(parseErr.Line, err)
			continue
		}
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("read csv: %w", err)
		}

		r.row++
		if r.columns == nil {
			if err := r.readHeader(record); err != nil {
				return domain.Transaction{}, err
			}
			continue
		}

		tx, err := r.parseRow(record)
		if err != nil {
			r.skip(r.row, err)
			continue
		}
		return tx, nil
	}
}

// Skipped reports how many malformed rows were dropped so far.
func (r *Reader) Skipped() int { return r.skipped }

func (r *Reader) skip(row int, err error) {
	r.skipped++
	r.log.Warn().Int("row", row).Err(err).Msg("skipping malformed input row")
	if r.metrics != nil {
		r.metrics.RowsSkipped.Inc()
	}
}

func (r *Reader) readHeader(record []string) error {
	columns := make(map[string]int, len(record))
	for i, name := range record {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("input header is missing the %q column", required)
		}
	}
	r.columns = columns
	return nil
}

func (r *Reader) field(record []string, name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func (r *Reader) parseRow(record []string) (domain.Transaction, error) {
	kind := domain.Kind(strings.ToLower(r.field(record, "type")))

	client, err := strconv.ParseUint(r.field(record, "client"), 10, 16)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad client id: %w", err)
	}
	id, err := strconv.ParseUint(r.field(record, "tx"), 10, 32)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad transaction id: %w", err)
	}

	rawAmount := r.field(record, "amount")

	switch kind {
	case domain.KindDeposit, domain.KindWithdrawal:
		if rawAmount == "" {
			return domain.Transaction{}, domain.ErrMissingAmount
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("bad amount: %w", err)
		}
		if kind == domain.KindDeposit {
			return domain.NewDeposit(uint32(id), uint16(client), amount)
		}
		return domain.NewWithdrawal(uint32(id), uint16(client), amount)

	case domain.KindDispute, domain.KindResolve, domain.KindChargeback:
		if rawAmount != "" {
			return domain.Transaction{}, domain.ErrExtraAmount
		}
		switch kind {
		case domain.KindDispute:
			return domain.NewDispute(uint16(client), uint32(id)), nil
		case domain.KindResolve:
			return domain.NewResolve(uint16(client), uint32(id)), nil
		default:
			return domain.NewChargeback(uint16(client), uint32(id)), nil
		}

	default:
		return domain.Transaction{}, fmt.Errorf("unknown transaction type %q", kind)
	}
}
