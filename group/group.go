package group

import (
	"io"
)

// Scalar is an element of the scalar field of a prime-order group: an
// integer modulo the group order. Shares, masks, Lagrange coefficients and
// enrollment contributions are all Scalars.
//
// Arithmetic methods use a mutable receiver: they store the result in the
// receiver and return it. Callers in this module always write into a fresh
// scalar (g.NewScalar().Add(a, b)) so values handed out are never aliased.
//
// Implementations must keep every value in [0, order) and must only ever
// reduce modulo the group order.
type Scalar interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Scalar) Scalar
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Scalar) Scalar
	// Mul sets the receiver to a*b and returns it.
	Mul(a, b Scalar) Scalar
	// Negate sets the receiver to -a and returns it.
	Negate(a Scalar) Scalar
	// Invert sets the receiver to a^{-1} and returns it.
	// Returns an error if a is zero.
	Invert(a Scalar) (Scalar, error)
	// Set sets the receiver to a and returns it.
	Set(a Scalar) Scalar
	// Bytes returns the canonical 32-byte big-endian encoding.
	Bytes() []byte
	// SetBytes sets the receiver from a big-endian byte slice, reducing
	// modulo the group order, and returns it.
	SetBytes(data []byte) (Scalar, error)
	// Equal reports whether the receiver equals b.
	Equal(b Scalar) bool
	// IsZero reports whether the receiver is zero.
	IsZero() bool
}

// Point is an element of the group, typically an elliptic curve point.
// Group public keys and per-participant public shares are Points.
//
// Like [Scalar], arithmetic methods use a mutable receiver.
type Point interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Point) Point
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Point) Point
	// Negate sets the receiver to -a and returns it.
	Negate(a Point) Point
	// ScalarMult sets the receiver to s*p and returns it.
	ScalarMult(s Scalar, p Point) Point
	// Set sets the receiver to a and returns it.
	Set(a Point) Point
	// Bytes returns the canonical compressed encoding of the point.
	Bytes() []byte
	// SetBytes sets the receiver from an encoding produced by Bytes.
	// Returns an error if the data is not a valid group element.
	SetBytes(data []byte) (Point, error)
	// Equal reports whether the receiver equals b.
	Equal(b Point) bool
	// IsIdentity reports whether the receiver is the identity element.
	IsIdentity() bool
}

// Group is a prime-order group together with its scalar field. It is the
// only place curve-specific code lives; everything above it (Lagrange
// arithmetic, FROST, enrollment) is generic over Group.
//
//	g := &bjj.BJJ{}
//	s, _ := g.RandomScalar(rand.Reader)
//	pub := g.NewPoint().ScalarMult(s, g.Generator())
type Group interface {
	// Name returns a short stable identifier such as "bjj" or "secp256k1".
	Name() string
	// NewScalar returns a new zero scalar.
	NewScalar() Scalar
	// NewPoint returns a new identity point.
	NewPoint() Point
	// Generator returns the group's base point.
	Generator() Point
	// RandomScalar returns a uniformly random scalar read from r.
	RandomScalar(r io.Reader) (Scalar, error)
	// HashToScalar hashes the input data to a scalar.
	HashToScalar(data ...[]byte) (Scalar, error)
	// Order returns the group order as a big-endian byte slice.
	Order() []byte
}
