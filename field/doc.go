// Package field provides scalar and Lagrange arithmetic over a
// [group.Group]'s scalar field.
//
// Participant indices are small positive integers used as evaluation points
// x_i of a secret polynomial p. Given t distinct indices S and a target x*,
// the Lagrange basis coefficients satisfy
//
//	p(x*) = sum_{i in S} l_i(x*) * p(x_i)
//
// for every polynomial of degree below t. Evaluating at x* = 0 reconstructs
// the secret; evaluating at a fresh index derives a new share.
//
// Every function works in the group's scalar field only. Helpers return fresh
// scalars and never mutate their arguments.
package field
