package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Transport delivers envelopes between the parties of an enrollment
// session. Channels are assumed authenticated and confidential.
type Transport interface {
	// Send delivers env to env.To, blocking until accepted or ctx ends.
	Send(ctx context.Context, env *Envelope) error
	// Receive returns the next envelope for `to` in the given session and
	// round, blocking until one arrives or ctx ends.
	Receive(ctx context.Context, sessionID string, round Round, to int) (*Envelope, error)
	// Close tears down a session. Pending and later calls for it fail with
	// ErrSessionClosed.
	Close(sessionID string) error
}

type mailboxKey struct {
	session string
	round   Round
	to      int
}

type memorySession struct {
	done      chan struct{}
	closeOnce sync.Once
}

// Memory is an in-process Transport. Every envelope is CBOR-encoded on Send
// and decoded on Receive, so payloads never share memory across parties.
type Memory struct {
	mu           sync.Mutex
	codec        *Codec
	bufferSize   int
	sessions     map[string]*memorySession
	closed       map[string]struct{}
	closedOrder  []string
	mailboxes    map[mailboxKey]chan []byte
	disconnected map[int]struct{}
}

// NewMemory returns an empty in-memory transport.
func NewMemory(codec *Codec) *Memory {
	if codec == nil {
		codec = MustCodec()
	}
	return &Memory{
		codec:        codec,
		bufferSize:   64,
		sessions:     make(map[string]*memorySession),
		closed:       make(map[string]struct{}),
		mailboxes:    make(map[mailboxKey]chan []byte),
		disconnected: make(map[int]struct{}),
	}
}

// Disconnect makes index unreachable: sends from or to it and receives by
// it fail with ErrPeerUnreachable until Reconnect.
func (m *Memory) Disconnect(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected[index] = struct{}{}
}

// Reconnect undoes Disconnect.
func (m *Memory) Reconnect(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disconnected, index)
}

// mailbox returns the channel for key and its session, creating both on
// first use.
func (m *Memory) mailbox(key mailboxKey) (chan []byte, *memorySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.closed[key.session]; ok {
		return nil, nil, errors.Wrap(ErrSessionClosed, key.session)
	}
	sess, ok := m.sessions[key.session]
	if !ok {
		sess = &memorySession{done: make(chan struct{})}
		m.sessions[key.session] = sess
	}
	box, ok := m.mailboxes[key]
	if !ok {
		box = make(chan []byte, m.bufferSize)
		m.mailboxes[key] = box
	}
	return box, sess, nil
}

func (m *Memory) reachable(indices ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range indices {
		if _, down := m.disconnected[i]; down {
			return errors.Wrapf(ErrPeerUnreachable, "index %d", i)
		}
	}
	return nil
}

// Send implements Transport.
func (m *Memory) Send(ctx context.Context, env *Envelope) error {
	if env == nil || env.SessionID == "" || env.To < 1 {
		return ErrInvalidEnvelope
	}
	if err := m.reachable(env.From, env.To); err != nil {
		return err
	}
	data, err := m.codec.Marshal(env)
	if err != nil {
		return err
	}

	box, sess, err := m.mailbox(mailboxKey{env.SessionID, env.Round, env.To})
	if err != nil {
		return err
	}
	select {
	case box <- data:
		return nil
	case <-sess.done:
		return errors.Wrap(ErrSessionClosed, env.SessionID)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "send %s to %d", env.Round, env.To)
	}
}

// Receive implements Transport.
func (m *Memory) Receive(ctx context.Context, sessionID string, round Round, to int) (*Envelope, error) {
	if err := m.reachable(to); err != nil {
		return nil, err
	}
	box, sess, err := m.mailbox(mailboxKey{sessionID, round, to})
	if err != nil {
		return nil, err
	}

	select {
	case data := <-box:
		env := new(Envelope)
		if err := m.codec.Unmarshal(data, env); err != nil {
			return nil, err
		}
		return env, nil
	case <-sess.done:
		return nil, errors.Wrap(ErrSessionClosed, sessionID)
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "receive %s for %d", round, to)
	}
}

// MaxClosedSessions bounds how many closed session IDs a Memory transport
// remembers. Late messages for older sessions are no longer refused.
const MaxClosedSessions = 1024

// Close implements Transport. Closing an unknown session marks it closed
// too, so late messages are refused. Only the most recent
// MaxClosedSessions closed IDs are kept.
func (m *Memory) Close(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.closeOnce.Do(func() { close(sess.done) })
		delete(m.sessions, sessionID)
	}
	for key := range m.mailboxes {
		if key.session == sessionID {
			delete(m.mailboxes, key)
		}
	}
	if _, seen := m.closed[sessionID]; !seen {
		m.closed[sessionID] = struct{}{}
		m.closedOrder = append(m.closedOrder, sessionID)
		if len(m.closedOrder) > MaxClosedSessions {
			delete(m.closed, m.closedOrder[0])
			m.closedOrder = m.closedOrder[1:]
		}
	}
	return nil
}

// ClosedSessions returns how many closed session IDs are remembered.
func (m *Memory) ClosedSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.closed)
}

// Pending returns the number of undelivered envelopes across all sessions.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, box := range m.mailboxes {
		n += len(box)
	}
	return n
}
