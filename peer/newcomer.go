package peer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/transport"
)

// Newcomer is the endpoint of the party being enrolled. It runs round 3.
type Newcomer struct {
	mu        sync.Mutex
	nc        enroll.Newcomer
	transport transport.Transport
	opts      options
	result    enroll.Participant
}

// NewNewcomer wraps an enroll.Newcomer.
func NewNewcomer(nc enroll.Newcomer, t transport.Transport, opts ...Option) (*Newcomer, error) {
	if nc.Group() == nil {
		return nil, errors.Wrap(enroll.ErrInvalidParameters, "newcomer is not initialised")
	}
	if t == nil {
		return nil, errors.New("newcomer needs a transport")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Newcomer{nc: nc, transport: t, opts: o}, nil
}

// Index returns the index being enrolled.
func (n *Newcomer) Index() int {
	return n.nc.Index()
}

// Participant returns the assembled participant; Valid() is false until a
// session has succeeded.
func (n *Newcomer) Participant() enroll.Participant {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// Assemble collects one aggregate from every member of set, checks that
// they agree on the group key and the session transcript, and sums them
// into the new share. pubs may be nil to skip the consistency check.
func (n *Newcomer) Assemble(ctx context.Context, sessionID string, set []int, pubs enroll.PublicShares) (enroll.Participant, enroll.Verification, error) {
	if len(set) != n.nc.Threshold() {
		return enroll.Participant{}, enroll.VerificationSkipped,
			fmt.Errorf("%w: enrolling set has %d members, need %d", enroll.ErrDuplicateIndex, len(set), n.nc.Threshold())
	}
	g := n.nc.Group()
	self := n.nc.Index()
	log := n.opts.logger.With().Str("session_id", sessionID).Int("index", self).Logger()
	start := time.Now()

	var (
		groupKey   group.Point
		transcript []byte
	)
	aggregates := make(map[int]group.Scalar, len(set))
	for len(aggregates) < len(set) {
		env, err := n.transport.Receive(ctx, sessionID, transport.RoundAggregate, self)
		if err != nil {
			return enroll.Participant{}, enroll.VerificationSkipped, unavailable(err, "receive aggregate")
		}
		if !contains(set, env.From) {
			return enroll.Participant{}, enroll.VerificationSkipped,
				fmt.Errorf("%w: aggregate from index %d outside the enrolling set", enroll.ErrIncompleteAggregation, env.From)
		}
		if _, dup := aggregates[env.From]; dup {
			return enroll.Participant{}, enroll.VerificationSkipped,
				fmt.Errorf("%w: second aggregate from index %d", enroll.ErrIncompleteAggregation, env.From)
		}

		var msg transport.AggregateMessage
		if err := env.Decode(n.opts.codec, &msg); err != nil {
			return enroll.Participant{}, enroll.VerificationSkipped, fmt.Errorf("%w: %v", enroll.ErrIncompleteAggregation, err)
		}
		value, err := g.NewScalar().SetBytes(msg.Value)
		if err != nil {
			return enroll.Participant{}, enroll.VerificationSkipped, fmt.Errorf("%w: %v", enroll.ErrIncompleteAggregation, err)
		}
		key, err := g.NewPoint().SetBytes(msg.GroupKey)
		if err != nil {
			return enroll.Participant{}, enroll.VerificationSkipped,
				fmt.Errorf("%w: group key from %d: %v", enroll.ErrInconsistentShare, env.From, err)
		}

		if groupKey == nil {
			groupKey = key
			transcript = msg.Transcript
		} else if !groupKey.Equal(key) {
			return enroll.Participant{}, enroll.VerificationSkipped,
				fmt.Errorf("%w: holders disagree on the group key", enroll.ErrInconsistentShare)
		} else if !bytes.Equal(transcript, msg.Transcript) {
			return enroll.Participant{}, enroll.VerificationSkipped,
				fmt.Errorf("%w: holders disagree on the session transcript", enroll.ErrInconsistentShare)
		}
		aggregates[env.From] = value
	}

	want := enroll.Transcript(g, sessionID, set, self, n.nc.Threshold(), n.nc.Total(), groupKey)
	if !bytes.Equal(want, transcript) {
		return enroll.Participant{}, enroll.VerificationSkipped,
			fmt.Errorf("%w: transcript does not match this session", enroll.ErrInconsistentShare)
	}

	part, verification, err := n.nc.Assemble(set, aggregates, groupKey, pubs)
	if err != nil {
		return enroll.Participant{}, enroll.VerificationSkipped, err
	}

	n.mu.Lock()
	n.result = part
	n.mu.Unlock()

	log.Info().
		Str("verification", verification.String()).
		Int("participants", part.Total()).
		Dur("duration", time.Since(start)).
		Msg("new share assembled")
	return part, verification, nil
}
