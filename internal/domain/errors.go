package domain

import "errors"

var (
	// Account errors
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrInsufficientFunds = errors.New("insufficient available funds")

	// Dispute errors
	ErrTransactionNotFound = errors.New("referenced transaction not found")
	ErrNotDisputable       = errors.New("referenced transaction is not disputable")
	ErrAlreadyDisputed     = errors.New("transaction has already been disputed")
	ErrNotDisputed         = errors.New("transaction is not under dispute")

	// Transaction shape errors
	ErrInvalidAmount = errors.New("amount must be non-negative with at most four decimal places")
	ErrMissingAmount = errors.New("deposit and withdrawal require an amount")
	ErrExtraAmount   = errors.New("dispute, resolve and chargeback carry no amount")
)

// IsRejection reports whether err is an expected per-transaction
// rejection. Rejections are skipped and counted; anything else aborts
// the run.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAccountFrozen,
		ErrInsufficientFunds,
		ErrTransactionNotFound,
		ErrNotDisputable,
		ErrAlreadyDisputed,
		ErrNotDisputed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionReason maps a rejection error to a stable label for metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAccountFrozen):
		return "account_frozen"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTransactionNotFound):
		return "transaction_not_found"
	case errors.Is(err, ErrNotDisputable):
		return "not_disputable"
	case errors.Is(err, ErrAlreadyDisputed):
		return "already_disputed"
	case errors.Is(err, ErrNotDisputed):
		return "not_disputed"
	default:
		return "internal"
	}
}
