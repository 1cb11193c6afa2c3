// Package group defines the abstract prime-order group used by the
// enrollment protocol and the FROST base library.
//
// Three interfaces capture what the rest of the module needs from an
// elliptic curve:
//
//   - [Scalar]: elements of the scalar field (integers modulo the group order)
//   - [Point]: group elements (curve points)
//   - [Group]: factory and utility methods for scalars and points
//
// # Mutable receivers
//
// Operations such as Add, Mul and ScalarMult set the receiver to the result
// and return it, which allows chaining with few allocations:
//
//	// a + b*c
//	r := g.NewScalar().Mul(b, c)
//	r = g.NewScalar().Add(a, r)
//
// Operations that can fail return errors rather than panicking.
//
// # Implementations
//
// Two groups ship with this module:
//
//   - bjj: Baby Jubjub over BN254, via gnark-crypto
//   - secp256k1: the Bitcoin curve, via decred's secp256k1 package
//
// Implementations must perform all scalar arithmetic modulo the group order,
// draw random scalars from the supplied reader and reject invalid encodings
// in Point.SetBytes.
package group
