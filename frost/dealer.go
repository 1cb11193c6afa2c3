package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// Deal splits secret with a random polynomial of degree threshold-1 and
// returns one KeyShare per index in 1..total together with the polynomial
// commitment. Unlike [FROST.KeyGen] a single dealer learns the secret, and
// threshold may be 1.
func Deal(g group.Group, r io.Reader, secret group.Scalar, threshold, total int) ([]*KeyShare, []group.Point, error) {
	if threshold < 1 || total < threshold {
		return nil, nil, fmt.Errorf("invalid parameters t=%d n=%d", threshold, total)
	}
	coeffs := make([]group.Scalar, threshold)
	coeffs[0] = g.NewScalar().Set(secret)
	for k := 1; k < threshold; k++ {
		c, err := g.RandomScalar(r)
		if err != nil {
			return nil, nil, err
		}
		coeffs[k] = c
	}

	indices := make([]int, total)
	for i := range indices {
		indices[i] = i + 1
	}
	return DealPolynomial(g, coeffs, indices)
}

// DealPolynomial evaluates a fixed polynomial (coeffs[k] is the x^k
// coefficient) at each index. It is useful for deterministic scenarios such
// as p(x) = 7 + 5x.
func DealPolynomial(g group.Group, coeffs []group.Scalar, indices []int) ([]*KeyShare, []group.Point, error) {
	if len(coeffs) == 0 {
		return nil, nil, errors.New("polynomial has no coefficients")
	}
	commitment := make([]group.Point, len(coeffs))
	for k, c := range coeffs {
		commitment[k] = g.NewPoint().ScalarMult(c, g.Generator())
	}

	shares := make([]*KeyShare, len(indices))
	for n, i := range indices {
		if i < 1 {
			return nil, nil, fmt.Errorf("index must be positive, got %d", i)
		}
		secret := field.EvalPolynomial(g, coeffs, field.FromIndex(g, i))
		shares[n] = NewKeyShare(g, i, secret, commitment[0])
	}
	return shares, commitment, nil
}
