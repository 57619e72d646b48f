package domain

// DisputeState tracks the dispute lifecycle of a stored transaction.
// The only legal path is Normal -> Disputed -> {Resolved, ChargedBack};
// Resolved and ChargedBack are terminal.
type DisputeState string

const (
	DisputeStateNormal      DisputeState = "normal"
	DisputeStateDisputed    DisputeState = "disputed"
	DisputeStateResolved    DisputeState = "resolved"
	DisputeStateChargedBack DisputeState = "charged_back"
)

// Terminal reports whether no further dispute transitions are allowed.
func (s DisputeState) Terminal() bool {
	return s == DisputeStateResolved || s == DisputeStateChargedBack
}
