package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"

	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/group"
)

const (
	recordVersion = 1
	saltSize      = 16
	keySize       = 32
	fileSuffix    = ".share"
	aad           = "fyenroll/keystore/v1"
)

var (
	ErrNotFound     = errors.New("keystore: share not found")
	ErrDecrypt      = errors.New("keystore: cannot decrypt share")
	ErrWrongCurve   = errors.New("keystore: record is for a different curve")
	ErrEmptyPass    = errors.New("keystore: empty passphrase")
	ErrBadRecordVer = errors.New("keystore: unsupported record version")
)

// Record is the plaintext of a share backup.
type Record struct {
	Version      int    `cbor:"1,keyasint"`
	Curve        string `cbor:"2,keyasint"`
	Index        int    `cbor:"3,keyasint"`
	Share        []byte `cbor:"4,keyasint"`
	GroupKey     []byte `cbor:"5,keyasint"`
	Threshold    int    `cbor:"6,keyasint"`
	Participants int    `cbor:"7,keyasint"`
	Source       []int  `cbor:"8,keyasint,omitempty"` // enrolling set, empty for DKG shares
	SessionID    string `cbor:"9,keyasint,omitempty"`
	CreatedAt    int64  `cbor:"10,keyasint"`
}

// NewRecord captures p. source and sessionID describe the enrollment that
// produced the share, if any.
func NewRecord(p enroll.Participant, source []int, sessionID string) Record {
	return Record{
		Version:      recordVersion,
		Curve:        p.Group().Name(),
		Index:        p.Index(),
		Share:        p.Share().Bytes(),
		GroupKey:     p.GroupKey().Bytes(),
		Threshold:    p.Threshold(),
		Participants: p.Total(),
		Source:       append([]int(nil), source...),
		SessionID:    sessionID,
		CreatedAt:    time.Now().Unix(),
	}
}

// Participant rebuilds the participant in g.
func (r Record) Participant(g group.Group) (enroll.Participant, error) {
	if r.Curve != g.Name() {
		return enroll.Participant{}, errors.Wrapf(ErrWrongCurve, "%s, want %s", r.Curve, g.Name())
	}
	share, err := g.NewScalar().SetBytes(r.Share)
	if err != nil {
		return enroll.Participant{}, errors.Wrap(err, "decode share")
	}
	key, err := g.NewPoint().SetBytes(r.GroupKey)
	if err != nil {
		return enroll.Participant{}, errors.Wrap(err, "decode group key")
	}
	return enroll.NewParticipant(g, r.Index, share, key, r.Threshold, r.Participants)
}

// Params are the scrypt cost parameters.
type Params struct {
	N, R, P int
}

// DefaultParams are the interactive-login scrypt parameters.
var DefaultParams = Params{N: 32768, R: 8, P: 1}

// Store keeps encrypted share backups in a directory, one file per curve
// and index. Files are salt || nonce || AES-256-GCM ciphertext, with the
// key derived from the passphrase by scrypt.
type Store struct {
	dir        string
	passphrase []byte
	params     Params
	enc        cbor.EncMode
	dec        cbor.DecMode
}

// Option configures a Store.
type Option func(*Store)

// WithParams overrides the scrypt cost, e.g. to make tests fast.
func WithParams(p Params) Option {
	return func(s *Store) { s.params = p }
}

// Open creates dir if needed and returns a store.
func Open(dir string, passphrase []byte, opts ...Option) (*Store, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPass
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create keystore directory")
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "cbor encode mode")
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, errors.Wrap(err, "cbor decode mode")
	}
	s := &Store{
		dir:        dir,
		passphrase: append([]byte(nil), passphrase...),
		params:     DefaultParams,
		enc:        enc,
		dec:        dec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) path(curve string, index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", curve, index, fileSuffix))
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, s.params.N, s.params.R, s.params.P, keySize)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}
	return gcm, nil
}

// Save encrypts r and writes it atomically, replacing any previous backup
// for the same curve and index.
func (s *Store) Save(r Record) error {
	plaintext, err := s.enc.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errors.Wrap(err, "generate salt")
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(err, "generate nonce")
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, plaintext, []byte(aad))

	path := s.path(r.Curve, r.Index)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return errors.Wrap(err, "write encrypted share")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

// Load reads and decrypts the backup for curve and index.
func (s *Store) Load(curve string, index int) (Record, error) {
	data, err := os.ReadFile(s.path(curve, index))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.Wrapf(ErrNotFound, "%s/%d", curve, index)
		}
		return Record{}, errors.Wrap(err, "read encrypted share")
	}
	if len(data) < saltSize {
		return Record{}, errors.Wrap(ErrDecrypt, "file too short")
	}

	gcm, err := s.aead(data[:saltSize])
	if err != nil {
		return Record{}, err
	}
	body := data[saltSize:]
	if len(body) < gcm.NonceSize() {
		return Record{}, errors.Wrap(ErrDecrypt, "file too short")
	}
	nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return Record{}, errors.Wrap(ErrDecrypt, err.Error())
	}

	var r Record
	if err := s.dec.Unmarshal(plaintext, &r); err != nil {
		return Record{}, errors.Wrap(err, "decode record")
	}
	if r.Version != recordVersion {
		return Record{}, errors.Wrapf(ErrBadRecordVer, "%d", r.Version)
	}
	return r, nil
}

// Delete removes a backup. Deleting a missing backup is not an error.
func (s *Store) Delete(curve string, index int) error {
	if err := os.Remove(s.path(curve, index)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete share")
	}
	return nil
}

// List returns the indices backed up for curve, ascending.
func (s *Store) List(curve string) ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read keystore directory")
	}
	prefix := curve + "-"
	var out []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		var index int
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimPrefix(name, prefix), fileSuffix), "%d", &index); err != nil {
			continue
		}
		out = append(out, index)
	}
	sort.Ints(out)
	return out, nil
}
