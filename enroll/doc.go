// Package enroll adds a share-holder to a (t, n) Shamir-shared group
// without reconstructing the secret.
//
// A set S of exactly t existing holders and a newcomer at a fresh index x*
// run three rounds:
//
//  1. Each P_i in S calls [Participant.SplitContribution]. It computes
//     c_i = s_i * l_i(x*) and splits it into t masked values r_{i,j}, one
//     per member j of S, sent pairwise.
//  2. Each P_j in S calls [Participant.AggregateContribution] on the t values
//     it received and sends a_j = sum_i r_{i,j} to the newcomer together with
//     the group public key.
//  3. The newcomer calls [Newcomer.Assemble]: s_new = sum_j a_j = p(x*).
//
// No party other than P_i ever sees c_i, and the newcomer only sees sums of
// masked values. The protocol assumes authenticated confidential channels
// and honest-but-curious holders.
//
// [Participant] values are immutable. [ValidateThreshold] and
// [ValidateIndexSet] run before any randomness is drawn, and
// [ValidateShareConsistency] optionally checks the result against the
// holders' public shares.
package enroll
