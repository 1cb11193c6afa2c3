// Package secp256k1 implements [group.Group] for the secp256k1 curve, the
// curve used by BIP-340 Schnorr and most Bitcoin FROST deployments.
//
// Field and point arithmetic come from decred's dcrd secp256k1 package:
// scalars are ModNScalar values reduced modulo the curve order N, and
// points are Jacobian points kept in affine form after every operation so
// that equality and encoding are cheap.
//
// Points encode as 33-byte SEC1 compressed keys. The identity, which has no
// SEC1 encoding, is written as 33 zero bytes.
package secp256k1
