package bjj

import (
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/cronokirby/saferith"

	"github.com/f3rmion/fyenroll/group"
)

// scalarSize is the length of a canonical scalar encoding.
const scalarSize = 32

// order is the Baby Jubjub prime subgroup order, which is distinct from the
// BN254 scalar field order (Fr).
var (
	order    *saferith.Modulus
	orderBig *big.Int
)

var errInvertZero = errors.New("bjj: cannot invert zero scalar")

func init() {
	curve := twistededwards.GetEdwardsCurve()
	orderBig = new(big.Int).Set(&curve.Order)
	order = saferith.ModulusFromBytes(orderBig.Bytes())
}

// Scalar is an element of the Baby Jubjub scalar field. It implements
// [group.Scalar] on saferith naturals, so additions, multiplications and
// inversions run in time independent of the operand values.
type Scalar struct {
	nat *saferith.Nat
}

// newScalar returns a zero scalar sized to the modulus.
func newScalar() *Scalar {
	return &Scalar{nat: new(saferith.Nat).Mod(new(saferith.Nat).SetUint64(0), order)}
}

func fromNat(n *saferith.Nat) *Scalar {
	return &Scalar{nat: new(saferith.Nat).Mod(n, order)}
}

// Add sets s to a + b (mod order) and returns s.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	s.nat = new(saferith.Nat).ModAdd(a.(*Scalar).nat, b.(*Scalar).nat, order)
	return s
}

// Sub sets s to a - b (mod order) and returns s.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	s.nat = new(saferith.Nat).ModSub(a.(*Scalar).nat, b.(*Scalar).nat, order)
	return s
}

// Mul sets s to a * b (mod order) and returns s.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	s.nat = new(saferith.Nat).ModMul(a.(*Scalar).nat, b.(*Scalar).nat, order)
	return s
}

// Negate sets s to -a (mod order) and returns s.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	s.nat = new(saferith.Nat).ModNeg(a.(*Scalar).nat, order)
	return s
}

// Invert sets s to a^(-1) (mod order) and returns s.
// Zero has no inverse and yields an error; s is left unchanged.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	aScalar := a.(*Scalar)
	if aScalar.IsZero() {
		return nil, errInvertZero
	}
	s.nat = new(saferith.Nat).ModInverse(aScalar.nat, order)
	return s, nil
}

// Set copies the value of a into s and returns s.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	s.nat = a.(*Scalar).nat.Clone()
	return s
}

// Bytes returns the scalar as a 32-byte big-endian representation.
func (s *Scalar) Bytes() []byte {
	return s.nat.FillBytes(make([]byte, scalarSize))
}

// SetBytes sets s from a big-endian byte slice of any length and returns s.
// The value is reduced modulo the subgroup order, which lets wide hash
// outputs be mapped into the field.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	s.nat = new(saferith.Nat).Mod(new(saferith.Nat).SetBytes(data), order)
	return s, nil
}

// Equal reports whether s and b represent the same scalar value.
func (s *Scalar) Equal(b group.Scalar) bool {
	return s.nat.Eq(b.(*Scalar).nat) == 1
}

// IsZero reports whether s is the zero scalar.
func (s *Scalar) IsZero() bool {
	return s.nat.EqZero() == 1
}

// big returns the scalar as a big.Int for gnark-crypto's scalar
// multiplication, which takes *big.Int.
func (s *Scalar) big() *big.Int {
	return s.nat.Big()
}

// Point is a point on the Baby Jubjub curve in affine coordinates.
// It implements [group.Point] by wrapping gnark-crypto's PointAffine.
// The identity element is (0, 1).
type Point struct {
	inner twistededwards.PointAffine
}

// Add sets p to a + b and returns p.
func (p *Point) Add(a, b group.Point) group.Point {
	p.inner.Add(&a.(*Point).inner, &b.(*Point).inner)
	return p
}

// Sub sets p to a - b and returns p.
func (p *Point) Sub(a, b group.Point) group.Point {
	var negB twistededwards.PointAffine
	negB.Neg(&b.(*Point).inner)
	p.inner.Add(&a.(*Point).inner, &negB)
	return p
}

// Negate sets p to -a and returns p.
func (p *Point) Negate(a group.Point) group.Point {
	p.inner.Neg(&a.(*Point).inner)
	return p
}

// ScalarMult sets p to s * q and returns p.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	p.inner.ScalarMultiplication(&q.(*Point).inner, s.(*Scalar).big())
	return p
}

// Set copies the value of a into p and returns p.
func (p *Point) Set(a group.Point) group.Point {
	p.inner.Set(&a.(*Point).inner)
	return p
}

// Bytes returns the 32-byte compressed point encoding.
func (p *Point) Bytes() []byte {
	b := p.inner.Bytes()
	return b[:]
}

// SetBytes sets p from a compressed encoding and returns p. Encodings that
// are not on the curve or not in the prime-order subgroup are rejected.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	var q twistededwards.PointAffine
	if err := q.Unmarshal(data); err != nil {
		return nil, err
	}
	if !q.IsOnCurve() {
		return nil, errors.New("bjj: point not on curve")
	}
	var check twistededwards.PointAffine
	check.ScalarMultiplication(&q, orderBig)
	if !check.IsZero() {
		return nil, errors.New("bjj: point not in prime-order subgroup")
	}
	p.inner = q
	return p, nil
}

// Equal reports whether p and b represent the same curve point.
func (p *Point) Equal(b group.Point) bool {
	return p.inner.Equal(&b.(*Point).inner)
}

// IsIdentity reports whether p is the identity element (0, 1).
func (p *Point) IsIdentity() bool {
	return p.inner.IsZero()
}

// BJJ implements [group.Group] for the Baby Jubjub curve. It is zero-sized;
// use &BJJ{} or new(BJJ).
type BJJ struct{}

// Name returns "bjj".
func (g *BJJ) Name() string {
	return "bjj"
}

// NewScalar returns a new scalar initialized to zero.
func (g *BJJ) NewScalar() group.Scalar {
	return newScalar()
}

// NewPoint returns a new point initialized to the identity element (0, 1).
func (g *BJJ) NewPoint() group.Point {
	var p Point
	p.inner.X.SetZero()
	p.inner.Y.SetOne()
	return &p
}

// Generator returns the standard base point for the Baby Jubjub curve.
func (g *BJJ) Generator() group.Point {
	var p Point
	p.inner = twistededwards.GetEdwardsCurve().Base
	return &p
}

// RandomScalar reads 64 bytes from r and reduces them modulo the subgroup
// order. The extra width keeps the modular bias negligible.
func (g *BJJ) RandomScalar(r io.Reader) (group.Scalar, error) {
	var buf [2 * scalarSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	return fromNat(new(saferith.Nat).SetBytes(buf[:])), nil
}

// HashToScalar hashes the concatenation of data with SHA-256 and reduces
// the digest modulo the subgroup order.
func (g *BJJ) HashToScalar(data ...[]byte) (group.Scalar, error) {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return fromNat(new(saferith.Nat).SetBytes(h.Sum(nil))), nil
}

// Order returns the order of the prime-order subgroup as a big-endian byte
// slice.
func (g *BJJ) Order() []byte {
	return orderBig.Bytes()
}
