package keystore_test

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/fyenroll/bjj"
	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/keystore"
	"github.com/f3rmion/fyenroll/secp256k1"
)

var fast = keystore.WithParams(keystore.Params{N: 1024, R: 8, P: 1})

func participant(t *testing.T) enroll.Participant {
	t.Helper()
	g := &bjj.BJJ{}
	s, err := g.RandomScalar(rand.Reader)
	require.NoError(t, err)
	key := g.NewPoint().ScalarMult(s, g.Generator())
	p, err := enroll.NewParticipant(g, 4, s, key, 2, 4)
	require.NoError(t, err)
	return p
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.Open(dir, []byte("correct horse"), fast)
	require.NoError(t, err)

	p := participant(t)
	rec := keystore.NewRecord(p, []int{1, 2}, "session-1")
	require.NoError(t, store.Save(rec))

	info, err := os.Stat(filepath.Join(dir, "bjj-4.share"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(filepath.Join(dir, "bjj-4.share"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), string(p.Share().Bytes()))

	got, err := store.Load("bjj", 4)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	back, err := got.Participant(&bjj.BJJ{})
	require.NoError(t, err)
	assert.True(t, back.Share().Equal(p.Share()))
	assert.True(t, back.GroupKey().Equal(p.GroupKey()))
	assert.Equal(t, 4, back.Total())

	indices, err := store.List("bjj")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, indices)
}

func TestWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.Open(dir, []byte("right"), fast)
	require.NoError(t, err)
	require.NoError(t, store.Save(keystore.NewRecord(participant(t), nil, "")))

	other, err := keystore.Open(dir, []byte("wrong"), fast)
	require.NoError(t, err)
	_, err = other.Load("bjj", 4)
	assert.ErrorIs(t, err, keystore.ErrDecrypt)
}

func TestTamperedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.Open(dir, []byte("pw"), fast)
	require.NoError(t, err)
	require.NoError(t, store.Save(keystore.NewRecord(participant(t), nil, "")))

	path := filepath.Join(dir, "bjj-4.share")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = store.Load("bjj", 4)
	assert.ErrorIs(t, err, keystore.ErrDecrypt)

	require.NoError(t, os.WriteFile(path, raw[:5], 0600))
	_, err = store.Load("bjj", 4)
	assert.ErrorIs(t, err, keystore.ErrDecrypt)
}

func TestSaltIsPerFile(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.Open(dir, []byte("pw"), fast)
	require.NoError(t, err)
	rec := keystore.NewRecord(participant(t), nil, "")

	require.NoError(t, store.Save(rec))
	first, err := os.ReadFile(filepath.Join(dir, "bjj-4.share"))
	require.NoError(t, err)
	require.NoError(t, store.Save(rec))
	second, err := os.ReadFile(filepath.Join(dir, "bjj-4.share"))
	require.NoError(t, err)

	assert.NotEqual(t, first[:16], second[:16])
}

func TestDeleteAndNotFound(t *testing.T) {
	store, err := keystore.Open(t.TempDir(), []byte("pw"), fast)
	require.NoError(t, err)

	_, err = store.Load("bjj", 9)
	assert.ErrorIs(t, err, keystore.ErrNotFound)

	require.NoError(t, store.Save(keystore.NewRecord(participant(t), nil, "")))
	require.NoError(t, store.Delete("bjj", 4))
	require.NoError(t, store.Delete("bjj", 4))
	_, err = store.Load("bjj", 4)
	assert.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestWrongCurve(t *testing.T) {
	rec := keystore.NewRecord(participant(t), nil, "")
	_, err := rec.Participant(&secp256k1.Curve{})
	assert.ErrorIs(t, err, keystore.ErrWrongCurve)
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := keystore.Open(t.TempDir(), nil)
	assert.ErrorIs(t, err, keystore.ErrEmptyPass)
}
