package peer_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/f3rmion/fyenroll/bjj"
	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/frost"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/peer"
	"github.com/f3rmion/fyenroll/transport"
)

type fixture struct {
	g          group.Group
	tr         *transport.Memory
	holders    map[int]*peer.Holder
	commitment []group.Point
}

func newFixture(t *testing.T, threshold, total int) *fixture {
	t.Helper()
	g := &bjj.BJJ{}
	secret, err := g.RandomScalar(rand.Reader)
	require.NoError(t, err)
	shares, commitment, err := frost.Deal(g, rand.Reader, secret, threshold, total)
	require.NoError(t, err)

	f := &fixture{g: g, tr: transport.NewMemory(nil), holders: map[int]*peer.Holder{}, commitment: commitment}
	for _, ks := range shares {
		p, err := enroll.FromKeyShare(g, ks, threshold, total)
		require.NoError(t, err)
		h, err := peer.NewHolder(p, f.tr)
		require.NoError(t, err)
		f.holders[ks.Index] = h
	}
	return f
}

func (f *fixture) newcomer(t *testing.T, index, threshold, total int) *peer.Newcomer {
	t.Helper()
	nc, err := enroll.NewNewcomer(f.g, index, threshold, total)
	require.NoError(t, err)
	n, err := peer.NewNewcomer(nc, f.tr)
	require.NoError(t, err)
	return n
}

func (f *fixture) rounds(ctx context.Context, sessionID string, set []int, newIndex int) error {
	var r1 errgroup.Group
	for _, i := range set {
		h := f.holders[i]
		r1.Go(func() error { return h.Split(ctx, sessionID, set, newIndex) })
	}
	if err := r1.Wait(); err != nil {
		return err
	}
	var r2 errgroup.Group
	for _, i := range set {
		h := f.holders[i]
		r2.Go(func() error { return h.Aggregate(ctx, sessionID) })
	}
	return r2.Wait()
}

func TestEnrollOverMemoryTransport(t *testing.T) {
	f := newFixture(t, 3, 5)
	set := []int{1, 3, 5}
	ctx := context.Background()

	require.NoError(t, f.rounds(ctx, "s1", set, 6))

	pubs := enroll.PublicShares(frost.PublicShares(f.g, f.commitment, []int{1, 2, 3, 4, 5}))
	nc := f.newcomer(t, 6, 3, 5)
	p, v, err := nc.Assemble(ctx, "s1", set, pubs)
	require.NoError(t, err)

	assert.Equal(t, enroll.VerificationPassed, v)
	assert.Equal(t, 6, p.Total())
	want := field.EvalCommitment(f.g, f.commitment, field.FromIndex(f.g, 6))
	assert.True(t, p.PublicShare().Equal(want))
	assert.True(t, nc.Participant().Valid())
	assert.Equal(t, 0, f.tr.Pending())
}

func TestSplitIsOneShot(t *testing.T) {
	f := newFixture(t, 2, 3)
	ctx := context.Background()
	h := f.holders[1]

	require.NoError(t, h.Split(ctx, "s1", []int{1, 2}, 4))
	assert.ErrorIs(t, h.Split(ctx, "s1", []int{1, 2}, 4), peer.ErrAlreadySplit)
}

func TestAggregateWithoutSplit(t *testing.T) {
	f := newFixture(t, 2, 3)
	assert.ErrorIs(t, f.holders[1].Aggregate(context.Background(), "s1"), peer.ErrNoPendingSplit)
}

func TestSplitValidatesBeforeSending(t *testing.T) {
	f := newFixture(t, 2, 3)
	err := f.holders[1].Split(context.Background(), "s1", []int{1, 2}, 3)
	assert.ErrorIs(t, err, enroll.ErrDuplicateIndex)
	assert.Equal(t, 0, f.tr.Pending())
}

func TestUnreachableHolder(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.tr.Disconnect(2)

	err := f.holders[1].Split(context.Background(), "s1", []int{1, 2}, 4)
	assert.ErrorIs(t, err, enroll.ErrParticipantUnavailable)
	assert.True(t, enroll.Retryable(err))

	// The failed split leaves nothing pending.
	assert.ErrorIs(t, f.holders[1].Aggregate(context.Background(), "s1"), peer.ErrNoPendingSplit)
}

func TestAggregateTimesOut(t *testing.T) {
	f := newFixture(t, 2, 3)
	require.NoError(t, f.holders[1].Split(context.Background(), "s1", []int{1, 2}, 4))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := f.holders[1].Aggregate(ctx, "s1")
	assert.ErrorIs(t, err, enroll.ErrParticipantUnavailable)
}

func TestNewcomerRejectsForeignTranscript(t *testing.T) {
	f := newFixture(t, 2, 3)
	ctx := context.Background()
	require.NoError(t, f.rounds(ctx, "s1", []int{1, 2}, 7))

	// A newcomer that believes the group has four members computes a
	// different transcript.
	nc := f.newcomer(t, 7, 2, 4)
	_, _, err := nc.Assemble(ctx, "s1", []int{1, 2}, nil)
	assert.ErrorIs(t, err, enroll.ErrInconsistentShare)
}

func TestNewcomerRejectsWrongSetSize(t *testing.T) {
	f := newFixture(t, 2, 3)
	nc := f.newcomer(t, 4, 2, 3)
	_, _, err := nc.Assemble(context.Background(), "s1", []int{1}, nil)
	assert.ErrorIs(t, err, enroll.ErrDuplicateIndex)
}

func TestCompleteGrowsHolder(t *testing.T) {
	f := newFixture(t, 2, 3)
	h := f.holders[2]
	h.Complete()
	assert.Equal(t, 4, h.Participant().Total())
	assert.Equal(t, 2, h.Index())
	assert.True(t, h.PublicShare().Equal(h.Participant().PublicShare()))
}
