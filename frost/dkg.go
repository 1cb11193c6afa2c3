package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/fyenroll/field"
	"github.com/f3rmion/fyenroll/group"
)

// Round1Data is broadcast by each participant in round 1.
type Round1Data struct {
	ID          group.Scalar  // participant identifier
	Index       int           // participant index
	Commitments []group.Point // commitments to polynomial coefficients
}

// Round1PrivateData is sent privately to each participant.
type Round1PrivateData struct {
	FromID group.Scalar // sender's ID
	ToID   group.Scalar // recipient's ID
	Share  group.Scalar // polynomial evaluation for recipient
}

// Participant holds state during DKG.
type Participant struct {
	index          int
	id             group.Scalar
	coefficients   []group.Scalar          // our secret polynomial
	commitments    []group.Point           // public commitments
	receivedShares map[string]group.Scalar // shares from others
}

// NewParticipant creates a participant for DKG.
func (f *FROST) NewParticipant(r io.Reader, id int) (*Participant, error) {
	if id < 1 || id > f.total {
		return nil, fmt.Errorf("participant ID must be between 1 and %d, got %d", f.total, id)
	}

	// Random polynomial of degree t-1
	coeffs := make([]group.Scalar, f.threshold)
	for i := 0; i < f.threshold; i++ {
		c, err := f.group.RandomScalar(r)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}

	// C_i = coeffs[i] * G
	commits := make([]group.Point, f.threshold)
	for i, c := range coeffs {
		commits[i] = f.group.NewPoint().ScalarMult(c, f.group.Generator())
	}

	return &Participant{
		index:          id,
		id:             f.scalarFromInt(id),
		coefficients:   coeffs,
		commitments:    commits,
		receivedShares: make(map[string]group.Scalar),
	}, nil
}

// Index returns the participant's index.
func (p *Participant) Index() int {
	return p.index
}

// Round1Broadcast returns data to broadcast to all participants.
func (p *Participant) Round1Broadcast() *Round1Data {
	return &Round1Data{
		ID:          p.id,
		Index:       p.index,
		Commitments: p.commitments,
	}
}

// Round1PrivateSend returns the share to send privately to recipient.
func (f *FROST) Round1PrivateSend(p *Participant, recipientID int) *Round1PrivateData {
	toID := f.scalarFromInt(recipientID)
	return &Round1PrivateData{
		FromID: p.id,
		ToID:   toID,
		Share:  field.EvalPolynomial(f.group, p.coefficients, toID),
	}
}

// Round2ReceiveShare verifies and stores a received share.
func (f *FROST) Round2ReceiveShare(p *Participant, data *Round1PrivateData, senderCommitments []group.Point) error {
	// share * G == sum(commitments[k] * recipientID^k)
	lhs := f.group.NewPoint().ScalarMult(data.Share, f.group.Generator())
	rhs := field.EvalCommitment(f.group, senderCommitments, data.ToID)

	if !lhs.Equal(rhs) {
		return errors.New("invalid share from participant")
	}

	p.receivedShares[string(data.FromID.Bytes())] = data.Share
	return nil
}

// Finalize computes the final key share after receiving all shares.
func (f *FROST) Finalize(p *Participant, allBroadcasts []*Round1Data) (*KeyShare, error) {
	if len(allBroadcasts) != f.total {
		return nil, fmt.Errorf("expected %d broadcasts, got %d", f.total, len(allBroadcasts))
	}
	if len(p.receivedShares) != f.total-1 {
		return nil, fmt.Errorf("expected %d private shares, got %d", f.total-1, len(p.receivedShares))
	}

	// Our own evaluation plus every received share
	secretKey := field.EvalPolynomial(f.group, p.coefficients, p.id)
	for _, share := range p.receivedShares {
		secretKey = f.group.NewScalar().Add(secretKey, share)
	}

	commitment := GroupCommitment(f.group, allBroadcasts)
	return &KeyShare{
		Index:     p.index,
		ID:        p.id,
		SecretKey: secretKey,
		PublicKey: f.group.NewPoint().ScalarMult(secretKey, f.group.Generator()),
		GroupKey:  commitment[0],
	}, nil
}

// GroupCommitment sums the coefficient commitments of every DKG
// participant into a commitment to the joint polynomial. Its first entry is
// the group public key.
func GroupCommitment(g group.Group, allBroadcasts []*Round1Data) []group.Point {
	if len(allBroadcasts) == 0 {
		return nil
	}
	sum := make([]group.Point, len(allBroadcasts[0].Commitments))
	for k := range sum {
		sum[k] = g.NewPoint()
	}
	for _, b := range allBroadcasts {
		for k, c := range b.Commitments {
			sum[k] = g.NewPoint().Add(sum[k], c)
		}
	}
	return sum
}

// PublicShares derives p(i)*G for each index from a joint polynomial
// commitment. Anyone holding the DKG broadcasts can compute these.
func PublicShares(g group.Group, commitment []group.Point, indices []int) map[int]group.Point {
	pubs := make(map[int]group.Point, len(indices))
	for _, i := range indices {
		pubs[i] = field.EvalCommitment(g, commitment, field.FromIndex(g, i))
	}
	return pubs
}

// KeyGen runs a complete DKG with every participant in this process and
// returns the key shares ordered by index, together with the joint
// polynomial commitment. It is meant for tests, simulations and
// single-machine setups.
func (f *FROST) KeyGen(r io.Reader) ([]*KeyShare, []group.Point, error) {
	participants := make([]*Participant, f.total)
	broadcasts := make([]*Round1Data, f.total)
	for i := range participants {
		p, err := f.NewParticipant(r, i+1)
		if err != nil {
			return nil, nil, err
		}
		participants[i] = p
		broadcasts[i] = p.Round1Broadcast()
	}

	for i, sender := range participants {
		for j := range participants {
			if i == j {
				continue
			}
			data := f.Round1PrivateSend(sender, j+1)
			if err := f.Round2ReceiveShare(participants[j], data, broadcasts[i].Commitments); err != nil {
				return nil, nil, fmt.Errorf("participant %d: %w", j+1, err)
			}
		}
	}

	shares := make([]*KeyShare, f.total)
	for i, p := range participants {
		ks, err := f.Finalize(p, broadcasts)
		if err != nil {
			return nil, nil, err
		}
		shares[i] = ks
	}
	return shares, GroupCommitment(f.group, broadcasts), nil
}
