package command

import "errors"

var (
	// ErrUnreachable: the Navigator found no path to the target.
	ErrUnreachable = errors.New("target unreachable")
	// ErrActionRejected: an action request left the observed state unchanged.
	ErrActionRejected = errors.New("action rejected")
	// ErrResourceBurnt: the ingredient was ruined or vanished before pickup.
	ErrResourceBurnt = errors.New("resource burnt")
	// ErrOrderExpired: the bound order left the active set mid-plan.
	ErrOrderExpired = errors.New("order expired")
	// ErrStuck: a command exceeded its tick ceiling, its idle budget, or its
	// retry budget.
	ErrStuck = errors.New("command stuck")
	// ErrMissingStation: the map has no station of the required type.
	ErrMissingStation = errors.New("missing station")
)

const (
	CodeUnreachable    = "E_UNREACHABLE"
	CodeRejected       = "E_REJECTED"
	CodeBurnt          = "E_BURNT"
	CodeExpired        = "E_EXPIRED"
	CodeStuck          = "E_STUCK"
	CodeMissingStation = "E_NO_STATION"
	CodeInternal       = "E_INTERNAL"
)

// Code maps an error to its stable code, most specific cause first. A nil
// error maps to "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceBurnt):
		return CodeBurnt
	case errors.Is(err, ErrOrderExpired):
		return CodeExpired
	case errors.Is(err, ErrMissingStation):
		return CodeMissingStation
	case errors.Is(err, ErrActionRejected):
		return CodeRejected
	case errors.Is(err, ErrUnreachable):
		return CodeUnreachable
	case errors.Is(err, ErrStuck):
		return CodeStuck
	}
	return CodeInternal
}
