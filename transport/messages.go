package transport

import "time"

// Round identifies which protocol round a message belongs to.
type Round uint8

const (
	// RoundSplit carries one masked value r_{i,j} from holder i to holder j.
	RoundSplit Round = 1
	// RoundAggregate carries a_j from holder j to the newcomer.
	RoundAggregate Round = 2
)

func (r Round) String() string {
	switch r {
	case RoundSplit:
		return "split"
	case RoundAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Envelope wraps every message on the wire.
type Envelope struct {
	SessionID string `cbor:"1,keyasint"`
	Round     Round  `cbor:"2,keyasint"`
	From      int    `cbor:"3,keyasint"`
	To        int    `cbor:"4,keyasint"`
	Payload   []byte `cbor:"5,keyasint"`
	Timestamp int64  `cbor:"6,keyasint"`
}

// SplitMessage is the round 1 payload.
type SplitMessage struct {
	Value []byte `cbor:"1,keyasint"` // encoded scalar
}

// AggregateMessage is the round 2 payload. GroupKey re-asserts the group
// public key; Transcript binds the value to its session.
type AggregateMessage struct {
	Value      []byte `cbor:"1,keyasint"`
	GroupKey   []byte `cbor:"2,keyasint"`
	Transcript []byte `cbor:"3,keyasint"`
}

// NewEnvelope encodes payload and wraps it.
func NewEnvelope(c *Codec, sessionID string, round Round, from, to int, payload any) (*Envelope, error) {
	data, err := c.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		SessionID: sessionID,
		Round:     round,
		From:      from,
		To:        to,
		Payload:   data,
		Timestamp: time.Now().UnixNano(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(c *Codec, v any) error {
	return c.Unmarshal(e.Payload, v)
}
