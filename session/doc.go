// Package session keeps the coordinator-side record of enrollment sessions.
//
// Each session moves through
//
//	Created -> SplitsPending -> AggregatesPending -> Assembled
//
// and may fail from any non-terminal state. Sessions are never resumed:
// a retry creates a new session with a new ID and fresh randomness.
//
// A [Registry] guards the records with a mutex and rejects a new session
// when any of its participants (the enrolling set or the new index) already
// belongs to an active one:
//
//	reg := session.NewRegistry()
//	rec, err := reg.Create(session.Plan{Set: []int{1, 2}, NewIndex: 4, Threshold: 2, Participants: 3})
//	if errors.Is(err, enroll.ErrSessionConflict) {
//		// wait for the other session to finish
//	}
//	_, _ = reg.Transition(rec.ID, session.StateSplitsPending)
package session
