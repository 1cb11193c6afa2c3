package secp256k1

import (
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/f3rmion/fyenroll/group"
)

const (
	scalarSize = 32
	pointSize  = 33
)

var errInvertZero = errors.New("secp256k1: cannot invert zero scalar")

// curveN is the order of the base point.
var curveN = new(big.Int).Set(secp256k1.S256().Params().N)

// Scalar is an integer modulo the secp256k1 group order.
type Scalar struct {
	inner secp256k1.ModNScalar
}

// Add sets s to a + b (mod N) and returns s.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	s.inner.Add2(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Sub sets s to a - b (mod N) and returns s.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	var negB secp256k1.ModNScalar
	negB.NegateVal(&b.(*Scalar).inner)
	s.inner.Add2(&a.(*Scalar).inner, &negB)
	return s
}

// Mul sets s to a * b (mod N) and returns s.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	s.inner.Mul2(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Negate sets s to -a (mod N) and returns s.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	s.inner.NegateVal(&a.(*Scalar).inner)
	return s
}

// Invert sets s to a^(-1) (mod N) and returns s.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	aScalar := a.(*Scalar)
	if aScalar.inner.IsZero() {
		return nil, errInvertZero
	}
	s.inner.InverseValNonConst(&aScalar.inner)
	return s, nil
}

// Set copies a into s and returns s.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	s.inner.Set(&a.(*Scalar).inner)
	return s
}

// Bytes returns the 32-byte big-endian encoding.
func (s *Scalar) Bytes() []byte {
	b := s.inner.Bytes()
	return b[:]
}

// SetBytes sets s from a big-endian slice of any length, reduced mod N.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	if len(data) <= scalarSize {
		s.inner.SetByteSlice(data)
		return s, nil
	}
	reduced := new(big.Int).Mod(new(big.Int).SetBytes(data), curveN)
	var buf [scalarSize]byte
	reduced.FillBytes(buf[:])
	s.inner.SetBytes(&buf)
	return s, nil
}

// Equal reports whether s equals b.
func (s *Scalar) Equal(b group.Scalar) bool {
	return s.inner.Equals(&b.(*Scalar).inner)
}

// IsZero reports whether s is zero.
func (s *Scalar) IsZero() bool {
	return s.inner.IsZero()
}

// Point is a secp256k1 point held in affine coordinates (Z = 1), with the
// identity stored as X = Y = 0.
type Point struct {
	inner secp256k1.JacobianPoint
}

func (p *Point) normalize() {
	p.inner.ToAffine()
}

func (p *Point) isInfinity() bool {
	return (p.inner.X.IsZero() && p.inner.Y.IsZero()) || p.inner.Z.IsZero()
}

// Add sets p to a + b and returns p.
func (p *Point) Add(a, b group.Point) group.Point {
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a.(*Point).inner, &b.(*Point).inner, &r)
	p.inner.Set(&r)
	p.normalize()
	return p
}

// Sub sets p to a - b and returns p.
func (p *Point) Sub(a, b group.Point) group.Point {
	var negB Point
	negB.Negate(b)
	return p.Add(a, &negB)
}

// Negate sets p to -a and returns p.
func (p *Point) Negate(a group.Point) group.Point {
	p.inner.Set(&a.(*Point).inner)
	if p.isInfinity() {
		return p
	}
	p.inner.Y.Negate(1).Normalize()
	return p
}

// ScalarMult sets p to s * q and returns p.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s.(*Scalar).inner, &q.(*Point).inner, &r)
	p.inner.Set(&r)
	p.normalize()
	return p
}

// Set copies a into p and returns p.
func (p *Point) Set(a group.Point) group.Point {
	p.inner.Set(&a.(*Point).inner)
	return p
}

// Bytes returns the 33-byte compressed encoding, or 33 zero bytes for the
// identity.
func (p *Point) Bytes() []byte {
	if p.isInfinity() {
		return make([]byte, pointSize)
	}
	return secp256k1.NewPublicKey(&p.inner.X, &p.inner.Y).SerializeCompressed()
}

// SetBytes parses an encoding produced by Bytes.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	if len(data) != pointSize {
		return nil, errors.New("secp256k1: invalid point encoding length")
	}
	if isZeroBytes(data) {
		p.inner = secp256k1.JacobianPoint{}
		p.normalize()
		return p, nil
	}
	pub, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, err
	}
	pub.AsJacobian(&p.inner)
	return p, nil
}

// Equal reports whether p and b are the same point.
func (p *Point) Equal(b group.Point) bool {
	q := b.(*Point)
	if p.isInfinity() || q.isInfinity() {
		return p.isInfinity() == q.isInfinity()
	}
	return p.inner.X.Equals(&q.inner.X) && p.inner.Y.Equals(&q.inner.Y)
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	return p.isInfinity()
}

// Curve implements [group.Group] for secp256k1.
type Curve struct{}

// Name returns "secp256k1".
func (c *Curve) Name() string {
	return "secp256k1"
}

// NewScalar returns a zero scalar.
func (c *Curve) NewScalar() group.Scalar {
	return &Scalar{}
}

// NewPoint returns the identity point.
func (c *Curve) NewPoint() group.Point {
	p := &Point{}
	p.normalize()
	return p
}

// Generator returns the standard base point G.
func (c *Curve) Generator() group.Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	p := &Point{}
	secp256k1.ScalarBaseMultNonConst(&one, &p.inner)
	p.normalize()
	return p
}

// RandomScalar draws 32-byte candidates from r until one is below N.
func (c *Curve) RandomScalar(r io.Reader) (group.Scalar, error) {
	var buf [scalarSize]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		s := &Scalar{}
		if overflow := s.inner.SetBytes(&buf); overflow == 0 {
			return s, nil
		}
	}
}

// HashToScalar hashes the concatenation of data with SHA-256 and reduces
// the digest mod N.
func (c *Curve) HashToScalar(data ...[]byte) (group.Scalar, error) {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	s := &Scalar{}
	s.inner.SetByteSlice(h.Sum(nil))
	return s, nil
}

// Order returns N as a big-endian byte slice.
func (c *Curve) Order() []byte {
	return curveN.Bytes()
}

func isZeroBytes(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
