// Package bjj provides a Baby Jubjub elliptic curve implementation of the
// [group.Group] interface for use with FROST groups and share enrollment.
//
// Baby Jubjub is a twisted Edwards curve defined over the scalar field of
// BN254 (also known as alt_bn128). It is commonly used in zero-knowledge
// proof systems and privacy-preserving applications.
//
// Points wrap the Baby Jubjub implementation from gnark-crypto. Scalars are
// saferith naturals reduced modulo the subgroup order, so share and mask
// arithmetic does not branch on secret values.
//
// # Curve Parameters
//
// Baby Jubjub is defined by the equation:
//
//	a*x^2 + y^2 = 1 + d*x^2*y^2
//
// where a = 168700 and d = 168696 over the BN254 scalar field.
//
// The curve has a prime-order subgroup of size:
//
//	2736030358979909402780800718157159386076813972158567259200215660948447373041
//
// # Usage
//
// Create a BJJ group and hand it to FROST or the enrollment protocol:
//
//	g := &bjj.BJJ{}
//	f, err := frost.New(g, threshold, total)
//	newcomer, err := enroll.NewNewcomer(g, 4, threshold, total)
//
// The BJJ type implements [group.Group] and can be used anywhere a Group
// is required.
//
// # Security
//
// Point decoding rejects encodings outside the prime-order subgroup. Scalar
// decoding reduces its input modulo the subgroup order.
package bjj
