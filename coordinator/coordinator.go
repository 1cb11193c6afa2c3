package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/session"
	"github.com/f3rmion/fyenroll/transport"
)

// Holder is an existing share-holder as seen by the coordinator.
type Holder interface {
	Index() int
	PublicShare() group.Point
	Split(ctx context.Context, sessionID string, set []int, newIndex int) error
	Aggregate(ctx context.Context, sessionID string) error
	Abort(sessionID string)
	Complete()
}

// Newcomer is the party being enrolled.
type Newcomer interface {
	Index() int
	Assemble(ctx context.Context, sessionID string, set []int, pubs enroll.PublicShares) (enroll.Participant, enroll.Verification, error)
}

// Config holds the coordinator's parameters.
type Config struct {
	Threshold    int
	Participants int           // current n
	RoundTimeout time.Duration // per round
	MaxAttempts  int           // sessions per Enroll call
	Verify       bool          // check new shares against public shares

	// MaxParticipants caps n. Enroll is refused once n reaches it. Zero
	// means no cap.
	MaxParticipants int
}

// Request asks for one enrollment.
type Request struct {
	Set      []int
	Newcomer Newcomer
}

// Result describes a completed enrollment.
type Result struct {
	SessionID    string
	NewIndex     int
	Set          []int
	PublicShare  group.Point
	Verification enroll.Verification
	Attempts     int
	Participants int // n after enrollment, set when the result is recorded
	CompletedAt  time.Time
}

// Coordinator drives enrollment sessions: it validates requests, creates a
// session, runs the three rounds with a barrier and a timeout each, and
// retries with a fresh session when a holder is unavailable.
type Coordinator struct {
	mu        sync.Mutex
	cfg       Config
	holders   map[int]Holder
	history   []Result
	enrolled  map[int]struct{}
	registry  *session.Registry
	transport transport.Transport
	metrics   *Metrics
	logger    zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithRegistry shares a session registry between coordinators.
func WithRegistry(r *session.Registry) Option {
	return func(c *Coordinator) { c.registry = r }
}

// New validates cfg and returns a coordinator with no registered holders.
func New(cfg Config, t transport.Transport, opts ...Option) (*Coordinator, error) {
	if err := enroll.ValidateThreshold(cfg.Threshold, cfg.Participants); err != nil {
		return nil, err
	}
	if cfg.RoundTimeout <= 0 {
		return nil, errors.Wrap(enroll.ErrInvalidParameters, "round timeout must be positive")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.Wrap(enroll.ErrInvalidParameters, "max attempts must be at least 1")
	}
	if cfg.MaxParticipants < 0 || (cfg.MaxParticipants > 0 && cfg.Participants > cfg.MaxParticipants) {
		return nil, errors.Wrapf(enroll.ErrInvalidParameters, "participants %d exceed cap %d", cfg.Participants, cfg.MaxParticipants)
	}
	if t == nil {
		return nil, errors.New("coordinator needs a transport")
	}

	c := &Coordinator{
		cfg:       cfg,
		holders:   make(map[int]Holder),
		enrolled:  make(map[int]struct{}),
		transport: t,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = session.NewRegistry()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.metrics.participants.Set(float64(cfg.Participants))
	return c, nil
}

// Register adds a holder the coordinator can reach.
func (c *Coordinator) Register(h Holder) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := h.Index()
	if i < 1 {
		return errors.Wrapf(enroll.ErrInvalidParameters, "index %d", i)
	}
	if _, ok := c.holders[i]; ok {
		return errors.Wrapf(enroll.ErrDuplicateIndex, "index %d already registered", i)
	}
	c.holders[i] = h
	return nil
}

// Participants returns the current n.
func (c *Coordinator) Participants() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Participants
}

// Threshold returns t.
func (c *Coordinator) Threshold() int {
	return c.cfg.Threshold
}

// Registry returns the session registry.
func (c *Coordinator) Registry() *session.Registry {
	return c.registry
}

// History returns completed enrollments, oldest first.
func (c *Coordinator) History() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.history))
	copy(out, c.history)
	return out
}

// Enroll runs up to MaxAttempts sessions to enroll req.Newcomer using the
// holders in req.Set. Validation errors are returned before any session is
// created. Only ErrParticipantUnavailable and ErrIncompleteAggregation
// trigger another attempt.
func (c *Coordinator) Enroll(ctx context.Context, req Request) (*Result, error) {
	plan, holders, pubs, err := c.prepare(req)
	if err != nil {
		c.metrics.enrollment("rejected")
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		plan.Attempt = attempt
		res, err := c.attempt(ctx, plan, holders, req.Newcomer, pubs)
		if err == nil {
			c.finish(res)
			c.metrics.enrollment("enrolled")
			return res, nil
		}
		lastErr = err
		if !enroll.Retryable(err) || ctx.Err() != nil {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Int("new_index", plan.NewIndex).Msg("enrollment attempt failed, retrying with a fresh session")
	}
	c.metrics.enrollment("failed")
	return nil, lastErr
}

func (c *Coordinator) prepare(req Request) (session.Plan, []Holder, enroll.PublicShares, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Newcomer == nil {
		return session.Plan{}, nil, nil, errors.Wrap(enroll.ErrInvalidParameters, "missing newcomer")
	}
	newIndex := req.Newcomer.Index()
	if c.cfg.MaxParticipants > 0 && c.cfg.Participants >= c.cfg.MaxParticipants {
		return session.Plan{}, nil, nil, errors.Wrapf(enroll.ErrInvalidParameters, "group already has the maximum of %d participants", c.cfg.MaxParticipants)
	}
	if err := enroll.ValidateIndexSet(req.Set, newIndex, c.cfg.Threshold, c.cfg.Participants); err != nil {
		return session.Plan{}, nil, nil, err
	}
	if _, taken := c.holders[newIndex]; taken {
		return session.Plan{}, nil, nil, errors.Wrapf(enroll.ErrDuplicateIndex, "index %d is already a holder", newIndex)
	}
	if _, done := c.enrolled[newIndex]; done {
		return session.Plan{}, nil, nil, errors.Wrapf(enroll.ErrDuplicateIndex, "index %d was already enrolled", newIndex)
	}

	holders := make([]Holder, 0, len(req.Set))
	for _, i := range req.Set {
		h, ok := c.holders[i]
		if !ok {
			return session.Plan{}, nil, nil, errors.Wrapf(enroll.ErrParticipantUnavailable, "index %d is not registered", i)
		}
		holders = append(holders, h)
	}

	var pubs enroll.PublicShares
	if c.cfg.Verify {
		pubs = make(enroll.PublicShares, len(c.holders))
		for i, h := range c.holders {
			pubs[i] = h.PublicShare()
		}
	}

	set := append([]int(nil), req.Set...)
	sort.Ints(set)
	plan := session.Plan{
		Set:          set,
		NewIndex:     newIndex,
		Threshold:    c.cfg.Threshold,
		Participants: c.cfg.Participants,
	}
	return plan, holders, pubs, nil
}

func (c *Coordinator) attempt(ctx context.Context, plan session.Plan, holders []Holder, nc Newcomer, pubs enroll.PublicShares) (*Result, error) {
	rec, err := c.registry.Create(plan)
	if err != nil {
		return nil, err
	}
	id := rec.ID
	log := c.logger.With().Str("session_id", id).Int("attempt", plan.Attempt).Int("new_index", plan.NewIndex).Ints("set", plan.Set).Logger()
	defer func() {
		if err := c.transport.Close(id); err != nil {
			log.Warn().Err(err).Msg("close session transport")
		}
	}()

	fail := func(round string, err error) (*Result, error) {
		for _, h := range holders {
			h.Abort(id)
		}
		if _, ferr := c.registry.Fail(id, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("mark session failed")
		}
		c.metrics.session("failed")
		log.Warn().Err(err).Str("round", round).Msg("enrollment session failed")
		return nil, errors.Wrapf(err, "session %s: %s round", id, round)
	}

	// Round 1
	if _, err := c.registry.Transition(id, session.StateSplitsPending); err != nil {
		return fail(roundSplit, err)
	}
	if err := c.round(ctx, log, roundSplit, holders, func(ctx context.Context, h Holder) error {
		return h.Split(ctx, id, plan.Set, plan.NewIndex)
	}); err != nil {
		return fail(roundSplit, err)
	}

	// Round 2
	if _, err := c.registry.Transition(id, session.StateAggregatesPending); err != nil {
		return fail(roundAggregate, err)
	}
	if err := c.round(ctx, log, roundAggregate, holders, func(ctx context.Context, h Holder) error {
		return h.Aggregate(ctx, id)
	}); err != nil {
		return fail(roundAggregate, err)
	}

	// Round 3
	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RoundTimeout)
	part, verification, err := nc.Assemble(rctx, id, plan.Set, pubs)
	cancel()
	c.metrics.observeRound(roundAssemble, time.Since(start))
	if err != nil {
		return fail(roundAssemble, err)
	}
	if _, err := c.registry.Transition(id, session.StateAssembled); err != nil {
		return fail(roundAssemble, err)
	}
	if err := c.registry.Release(id); err != nil {
		log.Warn().Err(err).Msg("release session")
	}

	c.metrics.session("assembled")
	log.Info().Str("verification", verification.String()).Msg("enrollment session assembled")
	return &Result{
		SessionID:    id,
		NewIndex:     part.Index(),
		Set:          append([]int(nil), plan.Set...),
		PublicShare:  part.PublicShare(),
		Verification: verification,
		Attempts:     plan.Attempt,
		CompletedAt:  time.Now(),
	}, nil
}

// round fans fn out to every holder and waits for all of them. It is the
// barrier between protocol rounds.
func (c *Coordinator) round(ctx context.Context, log zerolog.Logger, name string, holders []Holder, fn func(context.Context, Holder) error) error {
	start := time.Now()
	log.Debug().Str("round", name).Int("holders", len(holders)).Msg("round started")
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RoundTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(rctx)
	for _, h := range holders {
		h := h
		g.Go(func() error {
			if err := fn(gctx, h); err != nil {
				return errors.Wrapf(err, "holder %d", h.Index())
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)
	c.metrics.observeRound(name, elapsed)
	log.Debug().Str("round", name).Dur("duration", elapsed).Bool("ok", err == nil).Msg("round finished")
	return err
}

func (c *Coordinator) finish(res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range c.holders {
		h.Complete()
	}
	c.enrolled[res.NewIndex] = struct{}{}
	c.cfg.Participants++
	res.Participants = c.cfg.Participants
	c.metrics.participants.Set(float64(c.cfg.Participants))
	c.history = append(c.history, *res)
}
