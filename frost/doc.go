// Package frost is the threshold Schnorr library whose shares fyenroll
// grows. It covers key generation, key shares and FROST signing over any
// [group.Group].
//
// # Key Generation
//
// [FROST.KeyGen] runs the Pedersen-style DKG in one process and returns a
// [KeyShare] per participant plus the group's polynomial commitment. The
// individual steps are exposed for distributed runs:
//
//  1. [FROST.NewParticipant] samples a secret polynomial and
//     [Participant.Round1Broadcast] publishes its commitment.
//  2. [FROST.Round1PrivateSend] evaluates the polynomial for one recipient.
//  3. [FROST.Round2ReceiveShare] checks a received value against the
//     sender's commitment.
//  4. [FROST.Finalize] sums the received values into the final share once
//     every participant has contributed.
//
// [GroupCommitment] and [PublicShares] turn the broadcasts into each
// participant's public share p(i)*G, which the enrollment protocol uses to
// check a newcomer's share. [Deal] and [DealPolynomial] are trusted-dealer
// alternatives that also allow t = 1.
//
// # Key Shares
//
// A [KeyShare] is an index, a secret scalar p(index) and the group key.
// Shares created by enrollment sign exactly like DKG shares.
//
// # Signing
//
// Any t holders sign in two rounds: [FROST.SignRound1] commits to a nonce
// pair and [FROST.SignRound2] produces a signature share. [FROST.Aggregate]
// combines the shares and [FROST.Verify] checks the result. [FROST.Sign]
// runs both rounds in one process:
//
//	f, _ := frost.New(g, 2, 3)
//	shares, _, _ := f.KeyGen(rand.Reader)
//	sig, _ := f.Sign(rand.Reader, msg, shares[:2])
//	ok := f.Verify(msg, sig, shares[0].GroupKey)
//
// # Hash Suites
//
// [New] signs with [SHA256Hasher]. [NewWithHasher] accepts the Ledger/iden3
// compatible [NewBlake2bHasher] or [NewBlake3Hasher]. Signer and verifier
// must use the same suite.
//
// Nonces from [FROST.SignRound1] must never be reused.
package frost
