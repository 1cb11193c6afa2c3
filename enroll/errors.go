package enroll

import (
	"errors"

	"github.com/f3rmion/fyenroll/field"
)

var (
	// ErrInvalidParameters indicates a threshold, participant count or index
	// outside its allowed range.
	ErrInvalidParameters = errors.New("enroll: invalid parameters")

	// ErrDuplicateIndex indicates an enrolling set of the wrong size, a
	// repeated index, or a new index that collides with an existing one.
	ErrDuplicateIndex = errors.New("enroll: duplicate index")

	// ErrDegenerateIndexSet is returned when two Lagrange evaluation points
	// coincide.
	ErrDegenerateIndexSet = field.ErrDegenerateIndexSet

	// ErrNonInvertibleScalar is returned when zero would be inverted.
	ErrNonInvertibleScalar = field.ErrNonInvertibleScalar

	// ErrIncompleteAggregation indicates a missing, extra or unexpected
	// contribution. The session cannot continue.
	ErrIncompleteAggregation = errors.New("enroll: incomplete aggregation")

	// ErrParticipantUnavailable indicates a member of the enrolling set
	// could not be reached or did not answer within the round timeout.
	ErrParticipantUnavailable = errors.New("enroll: participant unavailable")

	// ErrInconsistentShare indicates the assembled share does not match the
	// public share commitments, or aggregates disagree on the session
	// context.
	ErrInconsistentShare = errors.New("enroll: inconsistent share")

	// ErrSessionConflict indicates a participant is already part of another
	// active enrollment session.
	ErrSessionConflict = errors.New("enroll: session conflict")
)

// Disposition says what a caller may do after an enrollment error.
type Disposition int

const (
	// DispositionUnknown is returned for errors outside this package.
	DispositionUnknown Disposition = iota
	// DispositionFixInput means the request was rejected before any
	// randomness was drawn; retry with corrected parameters.
	DispositionFixInput
	// DispositionNewSession means the current session is dead; a fresh
	// session with fresh randomness may succeed.
	DispositionNewSession
	// DispositionTerminal means the result must not be retried blindly.
	DispositionTerminal
)

func (d Disposition) String() string {
	switch d {
	case DispositionFixInput:
		return "fix-input"
	case DispositionNewSession:
		return "new-session"
	case DispositionTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Classify maps err to a Disposition.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return DispositionUnknown
	case errors.Is(err, ErrParticipantUnavailable), errors.Is(err, ErrIncompleteAggregation):
		return DispositionNewSession
	case errors.Is(err, ErrInconsistentShare):
		return DispositionTerminal
	case errors.Is(err, ErrInvalidParameters),
		errors.Is(err, ErrDuplicateIndex),
		errors.Is(err, ErrDegenerateIndexSet),
		errors.Is(err, ErrNonInvertibleScalar),
		errors.Is(err, ErrSessionConflict):
		return DispositionFixInput
	default:
		return DispositionUnknown
	}
}

// Retryable reports whether a fresh session could succeed where the
// failed one did not.
func Retryable(err error) bool {
	return Classify(err) == DispositionNewSession
}
