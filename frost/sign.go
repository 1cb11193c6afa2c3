package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// SigningNonce holds a participant's nonce pair for signing.
type SigningNonce struct {
	ID group.Scalar
	D  group.Scalar // hiding nonce
	E  group.Scalar // binding nonce
}

// SigningCommitment is broadcast in round 1 of signing.
type SigningCommitment struct {
	Index        int
	ID           group.Scalar
	HidingPoint  group.Point // D * G
	BindingPoint group.Point // E * G
}

// SignatureShare is a participant's share of the signature.
type SignatureShare struct {
	ID group.Scalar
	Z  group.Scalar
}

// SignRound1 generates nonces and commitment for signing.
func (f *FROST) SignRound1(r io.Reader, share *KeyShare) (*SigningNonce, *SigningCommitment, error) {
	d, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}
	e, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}

	nonce := &SigningNonce{
		ID: share.ID,
		D:  d,
		E:  e,
	}

	commitment := &SigningCommitment{
		Index:        share.Index,
		ID:           share.ID,
		HidingPoint:  f.group.NewPoint().ScalarMult(d, f.group.Generator()),
		BindingPoint: f.group.NewPoint().ScalarMult(e, f.group.Generator()),
	}

	return nonce, commitment, nil
}

// SignRound2 generates a signature share.
func (f *FROST) SignRound2(
	share *KeyShare,
	nonce *SigningNonce,
	message []byte,
	commitments []*SigningCommitment,
) (*SignatureShare, error) {
	if len(commitments) < f.threshold {
		return nil, fmt.Errorf("need at least %d commitments, got %d", f.threshold, len(commitments))
	}

	bindingFactors := f.computeBindingFactors(message, commitments)
	R := f.groupCommitment(bindingFactors, commitments)

	// c = H2(R, GroupKey, message)
	c := f.hasher.H2(f.group, R.Bytes(), share.GroupKey.Bytes(), message)

	signers := make([]int, len(commitments))
	for i, comm := range commitments {
		signers[i] = comm.Index
	}
	lambda, err := field.LagrangeBasis(f.group, signers, share.Index, 0)
	if err != nil {
		return nil, fmt.Errorf("lagrange coefficient: %w", err)
	}

	myRho, ok := bindingFactors[string(share.ID.Bytes())]
	if !ok {
		return nil, errors.New("signer is not part of the commitment list")
	}

	// z_i = d + rho * e + lambda * s * c
	z := f.group.NewScalar().Mul(myRho, nonce.E)
	z = f.group.NewScalar().Add(nonce.D, z)
	lambdaS := f.group.NewScalar().Mul(lambda, share.SecretKey)
	lambdaSC := f.group.NewScalar().Mul(lambdaS, c)
	z = f.group.NewScalar().Add(z, lambdaSC)

	return &SignatureShare{
		ID: share.ID,
		Z:  z,
	}, nil
}

// Aggregate combines signature shares into a final signature.
func (f *FROST) Aggregate(
	message []byte,
	commitments []*SigningCommitment,
	shares []*SignatureShare,
) (*Signature, error) {
	if len(shares) != len(commitments) {
		return nil, fmt.Errorf("got %d shares for %d commitments", len(shares), len(commitments))
	}

	bindingFactors := f.computeBindingFactors(message, commitments)
	R := f.groupCommitment(bindingFactors, commitments)

	z := f.group.NewScalar()
	for _, s := range shares {
		z = f.group.NewScalar().Add(z, s.Z)
	}

	return &Signature{R: R, Z: z}, nil
}

// Verify checks a FROST signature.
func (f *FROST) Verify(message []byte, sig *Signature, groupKey group.Point) bool {
	c := f.hasher.H2(f.group, sig.R.Bytes(), groupKey.Bytes(), message)

	// z*G == R + c*Y
	lhs := f.group.NewPoint().ScalarMult(sig.Z, f.group.Generator())
	cY := f.group.NewPoint().ScalarMult(c, groupKey)
	rhs := f.group.NewPoint().Add(sig.R, cY)

	return lhs.Equal(rhs)
}

// Sign runs both signing rounds for every given share in this process.
// len(shares) must be at least the threshold.
func (f *FROST) Sign(r io.Reader, message []byte, shares []*KeyShare) (*Signature, error) {
	nonces := make([]*SigningNonce, len(shares))
	commitments := make([]*SigningCommitment, len(shares))
	for i, ks := range shares {
		n, c, err := f.SignRound1(r, ks)
		if err != nil {
			return nil, err
		}
		nonces[i], commitments[i] = n, c
	}

	sigShares := make([]*SignatureShare, len(shares))
	for i, ks := range shares {
		s, err := f.SignRound2(ks, nonces[i], message, commitments)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", ks.Index, err)
		}
		sigShares[i] = s
	}

	return f.Aggregate(message, commitments, sigShares)
}

// groupCommitment computes R = sum(D_i + rho_i * E_i).
func (f *FROST) groupCommitment(bindingFactors map[string]group.Scalar, commitments []*SigningCommitment) group.Point {
	R := f.group.NewPoint()
	for _, comm := range commitments {
		rho := bindingFactors[string(comm.ID.Bytes())]
		rhoE := f.group.NewPoint().ScalarMult(rho, comm.BindingPoint)
		term := f.group.NewPoint().Add(comm.HidingPoint, rhoE)
		R = f.group.NewPoint().Add(R, term)
	}
	return R
}

func (f *FROST) computeBindingFactors(message []byte, commitments []*SigningCommitment) map[string]group.Scalar {
	factors := make(map[string]group.Scalar)

	var commBytes []byte
	for _, c := range commitments {
		commBytes = append(commBytes, c.ID.Bytes()...)
		commBytes = append(commBytes, c.HidingPoint.Bytes()...)
		commBytes = append(commBytes, c.BindingPoint.Bytes()...)
	}
	encCommitList := f.hasher.H5(f.group, commBytes)
	msgHash := f.hasher.H4(f.group, message)

	for _, c := range commitments {
		factors[string(c.ID.Bytes())] = f.hasher.H1(f.group, msgHash, encCommitList, c.ID.Bytes())
	}

	return factors
}
