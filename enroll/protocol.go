package enroll

import (
	"fmt"
	"io"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// SplitContribution is round 1 for an existing holder P_i in S. It computes
// c_i = s_i * l_i(newIndex) over S and splits it into one value per member
// of S: t-1 uniform values for the peers and c_i minus their sum for P_i
// itself. The values sum to exactly c_i; any t-1 of them are uniform and
// independent of s_i.
//
// Every call draws fresh randomness from r.
func (p Participant) SplitContribution(r io.Reader, set []int, newIndex int) (map[int]group.Scalar, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: uninitialised participant", ErrInvalidParameters)
	}
	if err := ValidateIndexSet(set, newIndex, p.threshold, p.total); err != nil {
		return nil, err
	}
	if !containsIndex(set, p.index) {
		return nil, fmt.Errorf("%w: index %d is not in the enrolling set", ErrInvalidParameters, p.index)
	}

	lambda, err := field.LagrangeBasis(p.group, set, p.index, newIndex)
	if err != nil {
		return nil, err
	}
	c := field.Mul(p.group, p.share, lambda)

	split := make(map[int]group.Scalar, len(set))
	rest := p.group.NewScalar().Set(c)
	for _, j := range set {
		if j == p.index {
			continue
		}
		v, err := p.group.RandomScalar(r)
		if err != nil {
			return nil, fmt.Errorf("split randomness: %w", err)
		}
		split[j] = v
		rest = field.Sub(p.group, rest, v)
	}
	split[p.index] = rest
	return split, nil
}

// AggregateContribution is round 2 for an existing holder: it sums the
// values r_{i,j} received from every member i of S (its own included).
// set must not repeat an index and must contain the holder itself; received
// must hold exactly one non-nil value per member of S.
func (p Participant) AggregateContribution(set []int, received map[int]group.Scalar) (group.Scalar, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: uninitialised participant", ErrInvalidParameters)
	}
	if err := exactMembers(set); err != nil {
		return nil, err
	}
	if !containsIndex(set, p.index) {
		return nil, fmt.Errorf("%w: own index %d is not in the enrolling set", ErrIncompleteAggregation, p.index)
	}
	if len(received) != len(set) {
		return nil, fmt.Errorf("%w: received %d values for a set of %d", ErrIncompleteAggregation, len(received), len(set))
	}
	acc := p.group.NewScalar()
	for _, i := range set {
		v, ok := received[i]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: no value from index %d", ErrIncompleteAggregation, i)
		}
		acc = field.Add(p.group, acc, v)
	}
	return acc, nil
}

// Newcomer is the party being enrolled: it knows its index and the (t, n)
// parameters of the group it joins, but no secret yet.
type Newcomer struct {
	group     group.Group
	index     int
	threshold int
	total     int
}

// NewNewcomer describes a party joining a (t, n) group at index.
func NewNewcomer(g group.Group, index, threshold, total int) (Newcomer, error) {
	if g == nil {
		return Newcomer{}, fmt.Errorf("%w: missing group", ErrInvalidParameters)
	}
	if err := ValidateThreshold(threshold, total); err != nil {
		return Newcomer{}, err
	}
	if index <= total {
		return Newcomer{}, fmt.Errorf("%w: new index %d collides with existing range 1..%d", ErrDuplicateIndex, index, total)
	}
	return Newcomer{group: g, index: index, threshold: threshold, total: total}, nil
}

func (nc Newcomer) Group() group.Group { return nc.group }
func (nc Newcomer) Index() int         { return nc.index }
func (nc Newcomer) Threshold() int     { return nc.threshold }
func (nc Newcomer) Total() int         { return nc.total }

// Assemble is round 3: s_new = sum of the t aggregates, one from each
// member of set. The result is a new Participant for a (t, n+1) group. When pubs holds at least t public
// shares of existing holders the share is checked against them; otherwise
// the check is skipped and reported as such.
//
// Assemble is pure: the same aggregates always give the same Participant.
func (nc Newcomer) Assemble(set []int, aggregates map[int]group.Scalar, groupKey group.Point, pubs PublicShares) (Participant, Verification, error) {
	if nc.group == nil {
		return Participant{}, VerificationSkipped, fmt.Errorf("%w: uninitialised newcomer", ErrInvalidParameters)
	}
	if err := ValidateIndexSet(set, nc.index, nc.threshold, nc.total); err != nil {
		return Participant{}, VerificationSkipped, err
	}
	if groupKey == nil {
		return Participant{}, VerificationSkipped, fmt.Errorf("%w: missing group key", ErrInvalidParameters)
	}
	if len(aggregates) != nc.threshold {
		return Participant{}, VerificationSkipped, fmt.Errorf("%w: got %d aggregates, need %d", ErrIncompleteAggregation, len(aggregates), nc.threshold)
	}

	share := nc.group.NewScalar()
	for _, i := range field.Indices(aggregates) {
		if !containsIndex(set, i) {
			return Participant{}, VerificationSkipped, fmt.Errorf("%w: aggregate from index %d outside the enrolling set", ErrIncompleteAggregation, i)
		}
		a := aggregates[i]
		if a == nil {
			return Participant{}, VerificationSkipped, fmt.Errorf("%w: empty aggregate from index %d", ErrIncompleteAggregation, i)
		}
		share = field.Add(nc.group, share, a)
	}

	verification, err := ValidateShareConsistency(nc.group, nc.threshold, nc.index, share, groupKey, pubs)
	if err != nil {
		return Participant{}, VerificationSkipped, err
	}

	p, err := NewParticipant(nc.group, nc.index, share, groupKey, nc.threshold, nc.total+1)
	if err != nil {
		return Participant{}, VerificationSkipped, err
	}
	return p, verification, nil
}

// exactMembers rejects a set that repeats an index.
func exactMembers(set []int) error {
	seen := make(map[int]struct{}, len(set))
	for _, i := range set {
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: index %d appears twice in the enrolling set", ErrDuplicateIndex, i)
		}
		seen[i] = struct{}{}
	}
	return nil
}

func containsIndex(set []int, i int) bool {
	for _, k := range set {
		if k == i {
			return true
		}
	}
	return false
}
