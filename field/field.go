package field

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/f3rmion/fyenroll/group"
)

var (
	// ErrDegenerateIndexSet indicates that two evaluation points coincide, so a
	// Lagrange denominator would be zero.
	ErrDegenerateIndexSet = errors.New("field: degenerate index set")

	// ErrNonInvertibleScalar indicates an attempt to invert zero. For distinct
	// small indices over a large prime order this cannot happen; seeing it
	// means a caller skipped validation.
	ErrNonInvertibleScalar = errors.New("field: non-invertible scalar")

	// ErrIndexNotInSet indicates a basis coefficient was requested for an
	// index that is not a member of the interpolation set.
	ErrIndexNotInSet = errors.New("field: index not in set")
)

// FromUint64 returns n as a scalar.
func FromUint64(g group.Group, n uint64) group.Scalar {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], n)
	s, _ := g.NewScalar().SetBytes(buf[:])
	return s
}

// FromIndex maps a participant index (an evaluation point x_i) to a scalar.
// Negative values map to their additive inverse.
func FromIndex(g group.Group, i int) group.Scalar {
	if i < 0 {
		return g.NewScalar().Negate(FromUint64(g, uint64(-i)))
	}
	return FromUint64(g, uint64(i))
}

// One returns the multiplicative identity.
func One(g group.Group) group.Scalar {
	return FromUint64(g, 1)
}

// Add returns a + b in a fresh scalar.
func Add(g group.Group, a, b group.Scalar) group.Scalar {
	return g.NewScalar().Add(a, b)
}

// Sub returns a - b in a fresh scalar.
func Sub(g group.Group, a, b group.Scalar) group.Scalar {
	return g.NewScalar().Sub(a, b)
}

// Mul returns a * b in a fresh scalar.
func Mul(g group.Group, a, b group.Scalar) group.Scalar {
	return g.NewScalar().Mul(a, b)
}

// Inv returns a^{-1}, failing with ErrNonInvertibleScalar on zero.
func Inv(g group.Group, a group.Scalar) (group.Scalar, error) {
	if a.IsZero() {
		return nil, ErrNonInvertibleScalar
	}
	inv, err := g.NewScalar().Invert(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonInvertibleScalar, err)
	}
	return inv, nil
}

// Sum returns the sum of values; the empty sum is zero.
func Sum(g group.Group, values ...group.Scalar) group.Scalar {
	acc := g.NewScalar()
	for _, v := range values {
		acc = g.NewScalar().Add(acc, v)
	}
	return acc
}

// LagrangeBasis returns l_i(at) over set:
//
//	l_i(at) = prod_{k in set, k != i} (at - x_k) / (x_i - x_k)
//
// The indices of set together with at must be pairwise distinct; at = 0 is
// the usual reconstruction point.
func LagrangeBasis(g group.Group, set []int, i, at int) (group.Scalar, error) {
	if err := checkDistinct(set, at); err != nil {
		return nil, err
	}
	if !contains(set, i) {
		return nil, fmt.Errorf("%w: %d", ErrIndexNotInSet, i)
	}
	return basis(g, set, i, at)
}

// LagrangeCoefficients returns l_i(at) for every i in set.
func LagrangeCoefficients(g group.Group, set []int, at int) (map[int]group.Scalar, error) {
	if err := checkDistinct(set, at); err != nil {
		return nil, err
	}
	coeffs := make(map[int]group.Scalar, len(set))
	for _, i := range set {
		l, err := basis(g, set, i, at)
		if err != nil {
			return nil, err
		}
		coeffs[i] = l
	}
	return coeffs, nil
}

func basis(g group.Group, set []int, i, at int) (group.Scalar, error) {
	xi := FromIndex(g, i)
	x := FromIndex(g, at)

	num := One(g)
	den := One(g)
	for _, k := range set {
		if k == i {
			continue
		}
		xk := FromIndex(g, k)
		num = Mul(g, num, Sub(g, x, xk))
		den = Mul(g, den, Sub(g, xi, xk))
	}

	if den.IsZero() {
		return nil, fmt.Errorf("%w: zero denominator for index %d", ErrDegenerateIndexSet, i)
	}
	denInv, err := Inv(g, den)
	if err != nil {
		return nil, err
	}
	return Mul(g, num, denInv), nil
}

// Interpolate evaluates at `at` the unique polynomial of degree
// len(points)-1 passing through points (index -> value).
func Interpolate(g group.Group, points map[int]group.Scalar, at int) (group.Scalar, error) {
	set := Indices(points)
	coeffs, err := LagrangeCoefficients(g, set, at)
	if err != nil {
		return nil, err
	}
	acc := g.NewScalar()
	for _, i := range set {
		acc = Add(g, acc, Mul(g, coeffs[i], points[i]))
	}
	return acc, nil
}

// InterpolatePoints is Interpolate in the exponent: given commitments
// Y_i = p(x_i)*G it returns p(at)*G.
func InterpolatePoints(g group.Group, points map[int]group.Point, at int) (group.Point, error) {
	set := make([]int, 0, len(points))
	for i := range points {
		set = append(set, i)
	}
	sort.Ints(set)

	coeffs, err := LagrangeCoefficients(g, set, at)
	if err != nil {
		return nil, err
	}
	acc := g.NewPoint()
	for _, i := range set {
		term := g.NewPoint().ScalarMult(coeffs[i], points[i])
		acc = g.NewPoint().Add(acc, term)
	}
	return acc, nil
}

// EvalPolynomial evaluates sum(coeffs[k] * x^k) by Horner's rule.
func EvalPolynomial(g group.Group, coeffs []group.Scalar, x group.Scalar) group.Scalar {
	if len(coeffs) == 0 {
		return g.NewScalar()
	}
	result := g.NewScalar().Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = g.NewScalar().Mul(result, x)
		result = g.NewScalar().Add(result, coeffs[i])
	}
	return result
}

// EvalCommitment evaluates a polynomial commitment C_k = a_k*G at x,
// returning p(x)*G.
func EvalCommitment(g group.Group, commitment []group.Point, x group.Scalar) group.Point {
	result := g.NewPoint()
	for k := len(commitment) - 1; k >= 0; k-- {
		result = g.NewPoint().ScalarMult(x, result)
		result = g.NewPoint().Add(result, commitment[k])
	}
	return result
}

// Indices returns the sorted keys of m.
func Indices(m map[int]group.Scalar) []int {
	set := make([]int, 0, len(m))
	for i := range m {
		set = append(set, i)
	}
	sort.Ints(set)
	return set
}

func checkDistinct(set []int, at int) error {
	seen := make(map[int]struct{}, len(set)+1)
	seen[at] = struct{}{}
	for _, i := range set {
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: index %d repeated", ErrDegenerateIndexSet, i)
		}
		seen[i] = struct{}{}
	}
	return nil
}

func contains(set []int, i int) bool {
	for _, k := range set {
		if k == i {
			return true
		}
	}
	return false
}
