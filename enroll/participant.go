package enroll

import (
	"fmt"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/frost"
	"github.com/f3rmion/fyenroll/group"
)

// Participant is an immutable share-holder: index x_i, secret share
// s_i = p(x_i), the group public key and the (t, n) parameters.
// Every accessor returns a copy and every transition returns a new value.
type Participant struct {
	group     group.Group
	index     int
	share     group.Scalar
	groupKey  group.Point
	threshold int
	total     int
}

// PublicShares maps participant index to its public share p(x_i)*G.
type PublicShares map[int]group.Point

// NewParticipant validates and copies its inputs into a Participant.
func NewParticipant(g group.Group, index int, share group.Scalar, groupKey group.Point, threshold, total int) (Participant, error) {
	if g == nil || share == nil || groupKey == nil {
		return Participant{}, fmt.Errorf("%w: missing group, share or group key", ErrInvalidParameters)
	}
	if index < 1 {
		return Participant{}, fmt.Errorf("%w: index %d must be positive", ErrInvalidParameters, index)
	}
	if err := ValidateThreshold(threshold, total); err != nil {
		return Participant{}, err
	}
	return Participant{
		group:     g,
		index:     index,
		share:     g.NewScalar().Set(share),
		groupKey:  g.NewPoint().Set(groupKey),
		threshold: threshold,
		total:     total,
	}, nil
}

// FromKeyShare converts a FROST key share into a Participant.
func FromKeyShare(g group.Group, ks *frost.KeyShare, threshold, total int) (Participant, error) {
	if ks == nil {
		return Participant{}, fmt.Errorf("%w: nil key share", ErrInvalidParameters)
	}
	return NewParticipant(g, ks.Index, ks.SecretKey, ks.GroupKey, threshold, total)
}

// KeyShare converts p back into a FROST key share usable for signing.
func (p Participant) KeyShare() *frost.KeyShare {
	return frost.NewKeyShare(p.group, p.index, p.share, p.groupKey)
}

func (p Participant) Group() group.Group { return p.group }
func (p Participant) Index() int         { return p.index }
func (p Participant) Threshold() int     { return p.threshold }
func (p Participant) Total() int         { return p.total }

// Share returns a copy of the secret share.
func (p Participant) Share() group.Scalar {
	return p.group.NewScalar().Set(p.share)
}

// GroupKey returns a copy of the group public key.
func (p Participant) GroupKey() group.Point {
	return p.group.NewPoint().Set(p.groupKey)
}

// PublicShare returns s_i*G.
func (p Participant) PublicShare() group.Point {
	return p.group.NewPoint().ScalarMult(p.share, p.group.Generator())
}

// Grow returns a copy of p that knows about one more participant. Existing
// holders apply it after an enrollment completes.
func (p Participant) Grow() Participant {
	q := p
	q.total++
	return q
}

// Valid reports whether p was built by a constructor.
func (p Participant) Valid() bool {
	return p.group != nil && p.share != nil && p.groupKey != nil
}

// CollectPublicShares gathers the public shares of the given participants.
func CollectPublicShares(parts ...Participant) PublicShares {
	pubs := make(PublicShares, len(parts))
	for _, p := range parts {
		pubs[p.index] = p.PublicShare()
	}
	return pubs
}

// Reconstruct interpolates the group secret from the participants' shares.
// It exists for tests and audits; the enrollment protocol never calls it.
func Reconstruct(parts ...Participant) (group.Scalar, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidParameters)
	}
	g := parts[0].group
	points := make(map[int]group.Scalar, len(parts))
	for _, p := range parts {
		if _, dup := points[p.index]; dup {
			return nil, fmt.Errorf("%w: index %d", ErrDuplicateIndex, p.index)
		}
		points[p.index] = p.share
	}
	return field.Interpolate(g, points, 0)
}
