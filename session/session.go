package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/f3rmion/fyenroll/enroll"
)

var (
	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrInvalidTransition is returned when a state change skips a round,
	// goes backwards or leaves a terminal state.
	ErrInvalidTransition = errors.New("session: invalid state transition")
)

// State is the lifecycle state of an enrollment session.
type State string

const (
	// StateCreated is a registered session before round 1.
	StateCreated State = "created"
	// StateSplitsPending waits for every holder's round 1 split.
	StateSplitsPending State = "splits_pending"
	// StateAggregatesPending waits for every holder's round 2 aggregate.
	StateAggregatesPending State = "aggregates_pending"
	// StateAssembled means the newcomer holds its share.
	StateAssembled State = "assembled"
	// StateFailed means the session was abandoned. It is never resumed.
	StateFailed State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAssembled || s == StateFailed
}

func canTransition(current, next State) bool {
	if next == StateFailed {
		return !current.Terminal()
	}
	switch current {
	case StateCreated:
		return next == StateSplitsPending
	case StateSplitsPending:
		return next == StateAggregatesPending
	case StateAggregatesPending:
		return next == StateAssembled
	default:
		return false
	}
}

// Plan is the public context of one enrollment attempt.
type Plan struct {
	Set          []int // enrolling holders S
	NewIndex     int
	Threshold    int
	Participants int // n before enrollment
	Attempt      int
}

// Members returns S plus the new index.
func (p Plan) Members() []int {
	m := append([]int(nil), p.Set...)
	return append(m, p.NewIndex)
}

// Record is a snapshot of a session.
type Record struct {
	ID        string
	Plan      Plan
	State     State
	Reason    string // why the session failed
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) clone() Record {
	c := *r
	c.Plan.Set = append([]int(nil), r.Plan.Set...)
	return c
}

// NewID returns a fresh random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Registry tracks enrollment sessions by ID. A participant index may belong
// to at most one non-terminal session at a time.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Record
	busy     map[int]string // index -> active session ID
	now      func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Record),
		busy:     make(map[int]string),
		now:      time.Now,
	}
}

// Create registers a new session in StateCreated. It fails with
// enroll.ErrSessionConflict if any member of the plan is already in an
// active session.
func (r *Registry) Create(plan Plan) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, i := range plan.Members() {
		if other, ok := r.busy[i]; ok {
			return Record{}, errors.Wrapf(enroll.ErrSessionConflict, "index %d is in session %s", i, other)
		}
	}

	now := r.now()
	rec := &Record{
		ID:        NewID(),
		Plan:      plan,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Plan.Set = append([]int(nil), plan.Set...)
	r.sessions[rec.ID] = rec
	for _, i := range plan.Members() {
		r.busy[i] = rec.ID
	}
	return rec.clone(), nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return Record{}, errors.Wrap(ErrSessionNotFound, id)
	}
	return rec.clone(), nil
}

// Transition moves a session to next. Entering a terminal state frees the
// session's participants.
func (r *Registry) Transition(id string, next State) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(id, next, "")
}

// Fail moves a session to StateFailed and records reason.
func (r *Registry) Fail(id, reason string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(id, StateFailed, reason)
}

func (r *Registry) transition(id string, next State, reason string) (Record, error) {
	rec, ok := r.sessions[id]
	if !ok {
		return Record{}, errors.Wrap(ErrSessionNotFound, id)
	}
	if !canTransition(rec.State, next) {
		return Record{}, errors.Wrapf(ErrInvalidTransition, "%s: from %s to %s", id, rec.State, next)
	}

	rec.State = next
	rec.Reason = reason
	rec.UpdatedAt = r.now()
	if next.Terminal() {
		for _, i := range rec.Plan.Members() {
			if r.busy[i] == id {
				delete(r.busy, i)
			}
		}
	}
	return rec.clone(), nil
}

// Release forgets a terminal session.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return errors.Wrap(ErrSessionNotFound, id)
	}
	if !rec.State.Terminal() {
		return errors.Wrapf(ErrInvalidTransition, "%s: cannot release session in state %s", id, rec.State)
	}
	delete(r.sessions, id)
	return nil
}

// Active returns every non-terminal session, oldest first.
func (r *Registry) Active() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if !rec.State.Terminal() {
			out = append(out, rec.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SessionOf returns the active session holding index, if any.
func (r *Registry) SessionOf(index int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.busy[index]
	return id, ok
}
