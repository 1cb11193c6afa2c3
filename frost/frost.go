package frost

import (
	"errors"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// MinThreshold is the smallest signing threshold FROST accepts. Plain
// Shamir sharing (see [Deal]) also allows t = 1.
const MinThreshold = 2

// FROST holds the group, hash suite and threshold parameters.
type FROST struct {
	group     group.Group
	hasher    Hasher
	threshold int // t - minimum signers needed
	total     int // n - total participants
}

// KeyShare is a participant's share of the group secret. Enrolled
// participants receive a KeyShare of exactly the same shape as DKG
// participants.
type KeyShare struct {
	Index     int          // participant index x_i
	ID        group.Scalar // Index as a scalar
	SecretKey group.Scalar // secret key share p(x_i)
	PublicKey group.Point  // public key share p(x_i)*G
	GroupKey  group.Point  // combined group public key p(0)*G
}

// Signature is a Schnorr signature.
type Signature struct {
	R group.Point
	Z group.Scalar
}

// New creates a FROST instance using [SHA256Hasher].
// threshold is the minimum number of signers required (t).
// total is the total number of participants (n).
func New(g group.Group, threshold, total int) (*FROST, error) {
	return NewWithHasher(g, threshold, total, &SHA256Hasher{})
}

// NewWithHasher creates a FROST instance with a custom hash suite, for
// example [NewBlake2bHasher] for Ledger/iden3 compatibility or
// [NewBlake3Hasher].
func NewWithHasher(g group.Group, threshold, total int, hasher Hasher) (*FROST, error) {
	if threshold < MinThreshold {
		return nil, errors.New("threshold must be at least 2")
	}
	if total < threshold {
		return nil, errors.New("total must be >= threshold")
	}
	if hasher == nil {
		return nil, errors.New("hasher must not be nil")
	}

	return &FROST{
		group:     g,
		hasher:    hasher,
		threshold: threshold,
		total:     total,
	}, nil
}

// Group returns the group the instance operates in.
func (f *FROST) Group() group.Group {
	return f.group
}

// Threshold returns t.
func (f *FROST) Threshold() int {
	return f.threshold
}

// Total returns n.
func (f *FROST) Total() int {
	return f.total
}

func (f *FROST) scalarFromInt(n int) group.Scalar {
	return field.FromIndex(f.group, n)
}

// NewKeyShare assembles a KeyShare from an index, a secret share and the
// group key, deriving the public share.
func NewKeyShare(g group.Group, index int, secret group.Scalar, groupKey group.Point) *KeyShare {
	return &KeyShare{
		Index:     index,
		ID:        field.FromIndex(g, index),
		SecretKey: g.NewScalar().Set(secret),
		PublicKey: g.NewPoint().ScalarMult(secret, g.Generator()),
		GroupKey:  g.NewPoint().Set(groupKey),
	}
}
