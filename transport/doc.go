// Package transport moves enrollment messages between parties.
//
// Messages are wrapped in an [Envelope] addressed by session, round and
// recipient index, and encoded with a deterministic CBOR [Codec]. [Memory]
// is the in-process implementation used by simulations and tests; it can
// disconnect a participant to model an unreachable peer.
package transport
