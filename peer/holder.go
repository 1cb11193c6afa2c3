package peer

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/transport"
)

var (
	// ErrAlreadySplit indicates Split was called twice for one session.
	ErrAlreadySplit = errors.New("peer: contribution already split for session")

	// ErrNoPendingSplit indicates Aggregate without a prior Split.
	ErrNoPendingSplit = errors.New("peer: no pending split for session")
)

// Option configures a Holder or Newcomer.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	rng    io.Reader
	codec  *transport.Codec
}

func defaultOptions() options {
	return options{
		logger: zerolog.Nop(),
		rng:    rand.Reader,
		codec:  transport.MustCodec(),
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRand sets the randomness source used for splitting.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rng = r }
}

// WithCodec sets the message codec.
func WithCodec(c *transport.Codec) Option {
	return func(o *options) { o.codec = c }
}

type pendingSplit struct {
	set      []int
	newIndex int
	total    int // n when the split was made
	own      group.Scalar
}

// Holder is an existing share-holder's endpoint. It runs rounds 1 and 2 of
// an enrollment and never sends its share or its unmasked contribution.
type Holder struct {
	mu        sync.Mutex
	part      enroll.Participant
	transport transport.Transport
	opts      options
	pending   map[string]*pendingSplit
}

// NewHolder wraps a participant.
func NewHolder(part enroll.Participant, t transport.Transport, opts ...Option) (*Holder, error) {
	if !part.Valid() {
		return nil, errors.Wrap(enroll.ErrInvalidParameters, "holder needs a participant")
	}
	if t == nil {
		return nil, errors.New("holder needs a transport")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Holder{
		part:      part,
		transport: t,
		opts:      o,
		pending:   make(map[string]*pendingSplit),
	}, nil
}

// Index returns the holder's participant index.
func (h *Holder) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.part.Index()
}

// Participant returns the current participant value.
func (h *Holder) Participant() enroll.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.part
}

// PublicShare returns the holder's public share s_i*G.
func (h *Holder) PublicShare() group.Point {
	return h.Participant().PublicShare()
}

// Split runs round 1: it splits the holder's Lagrange-weighted contribution
// and sends one masked value to every other member of set. The holder's own
// value stays local until Aggregate. A session can be split only once.
func (h *Holder) Split(ctx context.Context, sessionID string, set []int, newIndex int) error {
	h.mu.Lock()
	if _, ok := h.pending[sessionID]; ok {
		h.mu.Unlock()
		return errors.Wrap(ErrAlreadySplit, sessionID)
	}
	part := h.part
	split, err := part.SplitContribution(h.opts.rng, set, newIndex)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.pending[sessionID] = &pendingSplit{
		set:      append([]int(nil), set...),
		newIndex: newIndex,
		total:    part.Total(),
		own:      split[part.Index()],
	}
	h.mu.Unlock()

	log := h.opts.logger.With().Str("session_id", sessionID).Int("index", part.Index()).Logger()
	start := time.Now()
	for _, j := range set {
		if j == part.Index() {
			continue
		}
		env, err := transport.NewEnvelope(h.opts.codec, sessionID, transport.RoundSplit, part.Index(), j,
			transport.SplitMessage{Value: split[j].Bytes()})
		if err != nil {
			h.Abort(sessionID)
			return err
		}
		if err := h.transport.Send(ctx, env); err != nil {
			h.Abort(sessionID)
			return fmt.Errorf("%w: send to %d: %v", enroll.ErrParticipantUnavailable, j, err)
		}
	}
	log.Debug().Int("peers", len(set)-1).Dur("duration", time.Since(start)).Msg("split contribution sent")
	return nil
}

// Aggregate runs round 2: it collects one value from every other member of
// the set, sums them with its own and sends the aggregate, the group key
// and the session transcript to the newcomer. The pending split is
// destroyed whether or not aggregation succeeds.
func (h *Holder) Aggregate(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	ps, ok := h.pending[sessionID]
	delete(h.pending, sessionID)
	part := h.part
	h.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrNoPendingSplit, sessionID)
	}

	g := part.Group()
	self := part.Index()
	log := h.opts.logger.With().Str("session_id", sessionID).Int("index", self).Logger()
	start := time.Now()

	received := map[int]group.Scalar{self: ps.own}
	for len(received) < len(ps.set) {
		env, err := h.transport.Receive(ctx, sessionID, transport.RoundSplit, self)
		if err != nil {
			return unavailable(err, "receive split")
		}
		if !contains(ps.set, env.From) || env.From == self {
			return fmt.Errorf("%w: split from index %d outside the enrolling set", enroll.ErrIncompleteAggregation, env.From)
		}
		if _, dup := received[env.From]; dup {
			return fmt.Errorf("%w: second split from index %d", enroll.ErrIncompleteAggregation, env.From)
		}
		var msg transport.SplitMessage
		if err := env.Decode(h.opts.codec, &msg); err != nil {
			return fmt.Errorf("%w: %v", enroll.ErrIncompleteAggregation, err)
		}
		v, err := g.NewScalar().SetBytes(msg.Value)
		if err != nil {
			return fmt.Errorf("%w: split from %d: %v", enroll.ErrIncompleteAggregation, env.From, err)
		}
		received[env.From] = v
	}

	aggregate, err := part.AggregateContribution(ps.set, received)
	if err != nil {
		return err
	}

	groupKey := part.GroupKey()
	msg := transport.AggregateMessage{
		Value:      aggregate.Bytes(),
		GroupKey:   groupKey.Bytes(),
		Transcript: enroll.Transcript(g, sessionID, ps.set, ps.newIndex, part.Threshold(), ps.total, groupKey),
	}
	env, err := transport.NewEnvelope(h.opts.codec, sessionID, transport.RoundAggregate, self, ps.newIndex, msg)
	if err != nil {
		return err
	}
	if err := h.transport.Send(ctx, env); err != nil {
		return unavailable(err, "send aggregate")
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("aggregate sent")
	return nil
}

// Abort discards any pending split for the session.
func (h *Holder) Abort(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, sessionID)
}

// Complete records that the group grew by one participant.
func (h *Holder) Complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.part = h.part.Grow()
}

func unavailable(err error, what string) error {
	return fmt.Errorf("%w: %s: %v", enroll.ErrParticipantUnavailable, what, err)
}

func contains(set []int, i int) bool {
	for _, k := range set {
		if k == i {
			return true
		}
	}
	return false
}
