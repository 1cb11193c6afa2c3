package frost

import (
	"crypto/sha256"
	"hash"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"

	"github.com/f3rmion/fyenroll/group"
)

// Hasher is the hash suite FROST signing runs on. Signers and verifiers
// must agree on it; a signature made under one suite does not verify under
// another.
type Hasher interface {
	// H1 derives a signer's binding factor from the hashed message, the
	// hashed commitment list and the signer ID.
	H1(g group.Group, msg, encCommitList, signerID []byte) group.Scalar

	// H2 is the Schnorr challenge over R, the group key Y and the message.
	H2(g group.Group, R, Y, msg []byte) group.Scalar

	// H4 hashes the message being signed.
	H4(g group.Group, msg []byte) []byte

	// H5 hashes the encoded commitment list.
	H5(g group.Group, encCommitList []byte) []byte
}

// Domain tags for each hash role.
const (
	tagRho       = "rho"
	tagChallenge = "chal"
	tagMessage   = "msg"
	tagCommit    = "com"
)

// suite builds every Hasher role from one hash function. Each digest is
// prefix || tag || inputs; littleEndian digests are byte-reversed before
// reduction modulo the group order.
type suite struct {
	newHash      func() hash.Hash
	prefix       string
	littleEndian bool
	challengeTag string
}

func (s suite) digest(tag string, data ...[]byte) []byte {
	h := s.newHash()
	h.Write([]byte(s.prefix))
	h.Write([]byte(tag))
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func (s suite) scalar(g group.Group, tag string, data ...[]byte) group.Scalar {
	d := s.digest(tag, data...)
	if s.littleEndian {
		for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
			d[i], d[j] = d[j], d[i]
		}
	}
	out, _ := g.NewScalar().SetBytes(d)
	return out
}

func (s suite) H1(g group.Group, msg, encCommitList, signerID []byte) group.Scalar {
	return s.scalar(g, tagRho, msg, encCommitList, signerID)
}

func (s suite) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return s.scalar(g, s.challengeTag, R, Y, msg)
}

func (s suite) H4(_ group.Group, msg []byte) []byte {
	return s.digest(tagMessage, msg)
}

func (s suite) H5(_ group.Group, encCommitList []byte) []byte {
	return s.digest(tagCommit, encCommitList)
}

// SHA256Hasher is the default suite: unprefixed SHA-256, big-endian
// reduction, untagged challenge.
type SHA256Hasher struct{}

func (SHA256Hasher) suite() suite {
	return suite{newHash: sha256.New}
}

// H1 implements Hasher.
func (h *SHA256Hasher) H1(g group.Group, msg, encCommitList, signerID []byte) group.Scalar {
	return h.suite().H1(g, msg, encCommitList, signerID)
}

// H2 implements Hasher.
func (h *SHA256Hasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return h.suite().H2(g, R, Y, msg)
}

// H4 implements Hasher.
func (h *SHA256Hasher) H4(g group.Group, msg []byte) []byte {
	return h.suite().H4(g, msg)
}

// H5 implements Hasher.
func (h *SHA256Hasher) H5(g group.Group, encCommitList []byte) []byte {
	return h.suite().H5(g, encCommitList)
}

// Blake2bHasher is the Ledger/iden3 compatible Baby Jubjub suite:
// Blake2b-512 with a domain prefix, digests read little-endian.
type Blake2bHasher struct {
	// Prefix is the domain separation prefix,
	// "FROST-EDBABYJUJUB-BLAKE512-v1" by default.
	Prefix string
}

// NewBlake2bHasher returns a Blake2bHasher with the Ledger prefix.
func NewBlake2bHasher() *Blake2bHasher {
	return &Blake2bHasher{Prefix: "FROST-EDBABYJUJUB-BLAKE512-v1"}
}

func (h *Blake2bHasher) suite() suite {
	return suite{
		newHash: func() hash.Hash {
			d, _ := blake2b.New512(nil)
			return d
		},
		prefix:       h.Prefix,
		littleEndian: true,
		challengeTag: tagChallenge,
	}
}

// H1 implements Hasher.
func (h *Blake2bHasher) H1(g group.Group, msg, encCommitList, signerID []byte) group.Scalar {
	return h.suite().H1(g, msg, encCommitList, signerID)
}

// H2 implements Hasher.
func (h *Blake2bHasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return h.suite().H2(g, R, Y, msg)
}

// H4 implements Hasher.
func (h *Blake2bHasher) H4(g group.Group, msg []byte) []byte {
	return h.suite().H4(g, msg)
}

// H5 implements Hasher.
func (h *Blake2bHasher) H5(g group.Group, encCommitList []byte) []byte {
	return h.suite().H5(g, encCommitList)
}

// Blake3Prefix prefixes every Blake3Hasher digest.
const Blake3Prefix = "fyenroll/frost/blake3/v1"

// NewBlake3Hasher returns a BLAKE3 suite with 64-byte digests, the same
// hash the enrollment transcript uses.
func NewBlake3Hasher() Hasher {
	return suite{
		newHash:      func() hash.Hash { return blake3New512() },
		prefix:       Blake3Prefix,
		challengeTag: tagChallenge,
	}
}

// blake3New512 returns a BLAKE3 hash whose Sum yields 64 bytes.
func blake3New512() hash.Hash {
	return &blake3Wide{Hasher: blake3.New()}
}

type blake3Wide struct {
	*blake3.Hasher
}

func (b *blake3Wide) Size() int { return 64 }

func (b *blake3Wide) Sum(in []byte) []byte {
	out := make([]byte, 64)
	_, _ = b.Hasher.Digest().Read(out)
	return append(in, out...)
}
