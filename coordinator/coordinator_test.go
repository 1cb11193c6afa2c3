package coordinator_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/fyenroll/bjj"
	"github.com/f3rmion/fyenroll/coordinator"
	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/frost"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/peer"
	"github.com/f3rmion/fyenroll/session"
	"github.com/f3rmion/fyenroll/transport"
)

type harness struct {
	g          group.Group
	tr         *transport.Memory
	coord      *coordinator.Coordinator
	holders    map[int]*peer.Holder
	commitment []group.Point
}

func setup(t *testing.T, threshold, total int, mutate func(*coordinator.Config), opts ...coordinator.Option) *harness {
	t.Helper()
	g := &bjj.BJJ{}
	secret, err := g.RandomScalar(rand.Reader)
	require.NoError(t, err)
	shares, commitment, err := frost.Deal(g, rand.Reader, secret, threshold, total)
	require.NoError(t, err)

	cfg := coordinator.Config{
		Threshold:    threshold,
		Participants: total,
		RoundTimeout: time.Second,
		MaxAttempts:  3,
		Verify:       true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	tr := transport.NewMemory(nil)
	c, err := coordinator.New(cfg, tr, opts...)
	require.NoError(t, err)

	h := &harness{g: g, tr: tr, coord: c, holders: map[int]*peer.Holder{}, commitment: commitment}
	for _, ks := range shares {
		p, err := enroll.FromKeyShare(g, ks, threshold, total)
		require.NoError(t, err)
		holder, err := peer.NewHolder(p, tr)
		require.NoError(t, err)
		h.holders[ks.Index] = holder
	}
	return h
}

func (h *harness) registerAll(t *testing.T) {
	t.Helper()
	for _, holder := range h.holders {
		require.NoError(t, h.coord.Register(holder))
	}
}

func (h *harness) newcomer(t *testing.T, index int) *peer.Newcomer {
	t.Helper()
	nc, err := enroll.NewNewcomer(h.g, index, h.coord.Threshold(), h.coord.Participants())
	require.NoError(t, err)
	n, err := peer.NewNewcomer(nc, h.tr)
	require.NoError(t, err)
	return n
}

func TestEnroll(t *testing.T) {
	h := setup(t, 2, 3, nil)
	h.registerAll(t)
	nc := h.newcomer(t, 4)

	res, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{2, 1}, Newcomer: nc})
	require.NoError(t, err)

	assert.Equal(t, 4, res.NewIndex)
	assert.Equal(t, []int{1, 2}, res.Set)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 4, res.Participants)
	assert.Equal(t, enroll.VerificationPassed, res.Verification)
	assert.NotEmpty(t, res.SessionID)

	want := field.EvalCommitment(h.g, h.commitment, field.FromIndex(h.g, 4))
	assert.True(t, res.PublicShare.Equal(want))
	assert.True(t, nc.Participant().PublicShare().Equal(want))

	assert.Equal(t, 4, h.coord.Participants())
	for _, holder := range h.holders {
		assert.Equal(t, 4, holder.Participant().Total())
	}
	require.Len(t, h.coord.History(), 1)
	assert.Equal(t, res.SessionID, h.coord.History()[0].SessionID)
	assert.Empty(t, h.coord.Registry().Active())
	assert.Equal(t, 0, h.tr.Pending())
}

func TestEnrolledHolderEnrollsNext(t *testing.T) {
	h := setup(t, 2, 3, nil)
	h.registerAll(t)

	first := h.newcomer(t, 4)
	_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: first})
	require.NoError(t, err)

	enrolled, err := peer.NewHolder(first.Participant(), h.tr)
	require.NoError(t, err)
	require.NoError(t, h.coord.Register(enrolled))

	second := h.newcomer(t, 5)
	res, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{3, 4}, Newcomer: second})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Participants)
	assert.Equal(t, enroll.VerificationPassed, res.Verification)

	want := field.EvalCommitment(h.g, h.commitment, field.FromIndex(h.g, 5))
	assert.True(t, second.Participant().PublicShare().Equal(want))

	secret, err := enroll.Reconstruct(first.Participant(), second.Participant())
	require.NoError(t, err)
	assert.True(t, h.g.NewPoint().ScalarMult(secret, h.g.Generator()).Equal(h.commitment[0]))
}

func TestEnrollWithoutVerification(t *testing.T) {
	h := setup(t, 3, 4, func(c *coordinator.Config) { c.Verify = false })
	h.registerAll(t)

	res, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2, 4}, Newcomer: h.newcomer(t, 9)})
	require.NoError(t, err)
	assert.Equal(t, enroll.VerificationSkipped, res.Verification)
}

func TestEnrollRejectsInvalidRequests(t *testing.T) {
	h := setup(t, 2, 3, nil)
	h.registerAll(t)

	cases := []struct {
		name string
		set  []int
		nc   coordinator.Newcomer
		want error
	}{
		{"NewIndexInSet", []int{1, 4}, h.newcomer(t, 4), enroll.ErrDuplicateIndex},
		{"WrongSetSize", []int{1, 2, 3}, h.newcomer(t, 4), enroll.ErrDuplicateIndex},
		{"NonPositive", []int{0, 1}, h.newcomer(t, 4), enroll.ErrInvalidParameters},
		{"MissingNewcomer", []int{1, 2}, nil, enroll.ErrInvalidParameters},
		{"Unregistered", []int{1, 7}, h.newcomer(t, 8), enroll.ErrParticipantUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: tc.set, Newcomer: tc.nc})
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, h.coord.Registry().Active())
			assert.Equal(t, 0, h.tr.Pending())
		})
	}
	assert.Equal(t, 3, h.coord.Participants())
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	h := setup(t, 2, 3, nil)
	require.NoError(t, h.coord.Register(h.holders[1]))
	assert.ErrorIs(t, h.coord.Register(h.holders[1]), enroll.ErrDuplicateIndex)
}

// flakyHolder fails its first `failures` splits.
type flakyHolder struct {
	*peer.Holder
	failures int32
}

func (f *flakyHolder) Split(ctx context.Context, sessionID string, set []int, newIndex int) error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return fmt.Errorf("%w: injected", enroll.ErrParticipantUnavailable)
	}
	return f.Holder.Split(ctx, sessionID, set, newIndex)
}

func TestEnrollRetriesWithFreshSession(t *testing.T) {
	h := setup(t, 2, 3, nil)
	require.NoError(t, h.coord.Register(h.holders[1]))
	require.NoError(t, h.coord.Register(&flakyHolder{Holder: h.holders[2], failures: 1}))
	require.NoError(t, h.coord.Register(h.holders[3]))

	res, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	want := field.EvalCommitment(h.g, h.commitment, field.FromIndex(h.g, 4))
	assert.True(t, res.PublicShare.Equal(want))
}

func TestEnrollGivesUpAfterMaxAttempts(t *testing.T) {
	h := setup(t, 2, 3, func(c *coordinator.Config) { c.MaxAttempts = 2 })
	h.registerAll(t)
	h.tr.Disconnect(2)

	_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	require.Error(t, err)
	assert.ErrorIs(t, err, enroll.ErrParticipantUnavailable)
	assert.Equal(t, 3, h.coord.Participants())
	assert.Empty(t, h.coord.History())
	assert.Empty(t, h.coord.Registry().Active())

	// Nothing of the failed sessions is left behind.
	h.tr.Reconnect(2)
	assert.ErrorIs(t, h.holders[1].Aggregate(context.Background(), "any"), peer.ErrNoPendingSplit)

	res, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

// stalledHolder never answers round 2.
type stalledHolder struct {
	*peer.Holder
}

func (s *stalledHolder) Aggregate(ctx context.Context, sessionID string) error {
	<-ctx.Done()
	s.Holder.Abort(sessionID)
	return fmt.Errorf("%w: %v", enroll.ErrParticipantUnavailable, ctx.Err())
}

func TestRoundTimeout(t *testing.T) {
	h := setup(t, 2, 3, func(c *coordinator.Config) {
		c.RoundTimeout = 50 * time.Millisecond
		c.MaxAttempts = 1
	})
	require.NoError(t, h.coord.Register(h.holders[1]))
	require.NoError(t, h.coord.Register(&stalledHolder{Holder: h.holders[2]}))

	start := time.Now()
	_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	assert.ErrorIs(t, err, enroll.ErrParticipantUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, h.coord.Registry().Active())
}

func TestSessionConflictIsNotRetried(t *testing.T) {
	reg := session.NewRegistry()
	h := setup(t, 2, 3, nil, coordinator.WithRegistry(reg))
	h.registerAll(t)

	other, err := reg.Create(session.Plan{Set: []int{2, 3}, NewIndex: 5, Threshold: 2, Participants: 3})
	require.NoError(t, err)

	_, err = h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	assert.ErrorIs(t, err, enroll.ErrSessionConflict)
	assert.False(t, enroll.Retryable(err))

	_, err = reg.Fail(other.ID, "cancelled")
	require.NoError(t, err)
	_, err = h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	assert.NoError(t, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	tr := transport.NewMemory(nil)
	base := coordinator.Config{Threshold: 2, Participants: 3, RoundTimeout: time.Second, MaxAttempts: 1}

	bad := base
	bad.Threshold = 4
	_, err := coordinator.New(bad, tr)
	assert.ErrorIs(t, err, enroll.ErrInvalidParameters)

	bad = base
	bad.RoundTimeout = 0
	_, err = coordinator.New(bad, tr)
	assert.ErrorIs(t, err, enroll.ErrInvalidParameters)

	bad = base
	bad.MaxAttempts = 0
	_, err = coordinator.New(bad, tr)
	assert.ErrorIs(t, err, enroll.ErrInvalidParameters)

	bad = base
	bad.MaxParticipants = 2
	_, err = coordinator.New(bad, tr)
	assert.ErrorIs(t, err, enroll.ErrInvalidParameters)

	_, err = coordinator.New(base, nil)
	assert.Error(t, err)
}

func TestEnrollRejectsRepeatedNewIndex(t *testing.T) {
	h := setup(t, 2, 3, nil)
	h.registerAll(t)

	_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 7)})
	require.NoError(t, err)

	_, err = h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 7)})
	assert.ErrorIs(t, err, enroll.ErrDuplicateIndex)
	assert.Equal(t, 4, h.coord.Participants())
	assert.Len(t, h.coord.History(), 1)
	assert.Empty(t, h.coord.Registry().Active())
}

func TestEnrollStopsAtMaxParticipants(t *testing.T) {
	h := setup(t, 2, 3, func(c *coordinator.Config) { c.MaxParticipants = 4 })
	h.registerAll(t)

	_, err := h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{1, 2}, Newcomer: h.newcomer(t, 4)})
	require.NoError(t, err)

	_, err = h.coord.Enroll(context.Background(), coordinator.Request{Set: []int{2, 3}, Newcomer: h.newcomer(t, 5)})
	assert.ErrorIs(t, err, enroll.ErrInvalidParameters)
	assert.Equal(t, 4, h.coord.Participants())
	assert.Len(t, h.coord.History(), 1)
}
