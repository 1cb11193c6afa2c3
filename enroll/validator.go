package enroll

import (
	"fmt"
	"sort"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// Verification reports whether ValidateShareConsistency actually ran.
type Verification int

const (
	// VerificationSkipped means too few public shares were known.
	VerificationSkipped Verification = iota
	// VerificationPassed means the share matched the commitments.
	VerificationPassed
)

func (v Verification) String() string {
	if v == VerificationPassed {
		return "passed"
	}
	return "skipped"
}

// ValidateThreshold requires 1 <= t <= n.
func ValidateThreshold(threshold, total int) error {
	if threshold < 1 || total < 1 || threshold > total {
		return fmt.Errorf("%w: need 1 <= t <= n, got t=%d n=%d", ErrInvalidParameters, threshold, total)
	}
	return nil
}

// ValidateIndexSet checks an enrolling set S and the new index against a
// (t, n) group: every index positive, S of exactly t distinct members,
// newIndex outside S and outside 1..n.
func ValidateIndexSet(set []int, newIndex, threshold, total int) error {
	if err := ValidateThreshold(threshold, total); err != nil {
		return err
	}
	if newIndex < 1 {
		return fmt.Errorf("%w: new index %d must be positive", ErrInvalidParameters, newIndex)
	}

	seen := make(map[int]struct{}, len(set))
	for _, i := range set {
		if i < 1 {
			return fmt.Errorf("%w: index %d must be positive", ErrInvalidParameters, i)
		}
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: index %d repeated in enrolling set", ErrDuplicateIndex, i)
		}
		seen[i] = struct{}{}
	}
	if len(seen) != threshold {
		return fmt.Errorf("%w: enrolling set has %d members, need exactly %d", ErrDuplicateIndex, len(seen), threshold)
	}
	if _, ok := seen[newIndex]; ok {
		return fmt.Errorf("%w: new index %d is in the enrolling set", ErrDuplicateIndex, newIndex)
	}
	if newIndex <= total {
		return fmt.Errorf("%w: new index %d collides with existing range 1..%d", ErrDuplicateIndex, newIndex, total)
	}
	return nil
}

// ValidateShareConsistency checks share*G against the public shares of the
// existing holders. Any t of them determine the polynomial in the exponent:
// the check interpolates them at newIndex and at 0, requiring the first to
// equal share*G and the second to equal groupKey. Every remaining public
// share must lie on the same polynomial. With fewer than t public shares
// the check is skipped and VerificationSkipped is returned.
func ValidateShareConsistency(g group.Group, threshold, newIndex int, share group.Scalar, groupKey group.Point, pubs PublicShares) (Verification, error) {
	indices := make([]int, 0, len(pubs))
	for i := range pubs {
		if i != newIndex {
			indices = append(indices, i)
		}
	}
	if len(indices) < threshold {
		return VerificationSkipped, nil
	}
	sort.Ints(indices)

	base := make(map[int]group.Point, threshold)
	for _, i := range indices[:threshold] {
		base[i] = pubs[i]
	}

	expected, err := field.InterpolatePoints(g, base, newIndex)
	if err != nil {
		return VerificationSkipped, err
	}
	actual := g.NewPoint().ScalarMult(share, g.Generator())
	if !actual.Equal(expected) {
		return VerificationSkipped, fmt.Errorf("%w: share of index %d does not match public shares", ErrInconsistentShare, newIndex)
	}
	if own, ok := pubs[newIndex]; ok && !own.Equal(actual) {
		return VerificationSkipped, fmt.Errorf("%w: published share of index %d differs", ErrInconsistentShare, newIndex)
	}

	secret, err := field.InterpolatePoints(g, base, 0)
	if err != nil {
		return VerificationSkipped, err
	}
	if !secret.Equal(groupKey) {
		return VerificationSkipped, fmt.Errorf("%w: public shares do not match the group key", ErrInconsistentShare)
	}

	for _, i := range indices[threshold:] {
		at, err := field.InterpolatePoints(g, base, i)
		if err != nil {
			return VerificationSkipped, err
		}
		if !at.Equal(pubs[i]) {
			return VerificationSkipped, fmt.Errorf("%w: public share %d is off the polynomial", ErrInconsistentShare, i)
		}
	}

	return VerificationPassed, nil
}
