// Package coordinator orchestrates enrollment sessions.
//
// A [Coordinator] knows the group's (t, n), the reachable holders and a
// session registry. [Coordinator.Enroll] validates the request before any
// randomness is drawn, then for each attempt:
//
//   - creates a session (rejected if a participant is already busy),
//   - fans round 1 out to every holder in S and waits for all of them,
//   - fans round 2 out the same way,
//   - lets the newcomer assemble its share.
//
// Each round has its own timeout. A holder that fails or times out fails
// the session with enroll.ErrParticipantUnavailable, and the next attempt
// starts over with a new session and fresh randomness. After success every
// registered holder learns that n grew by one.
package coordinator
