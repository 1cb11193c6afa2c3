// Package peer runs the enrollment rounds for one party over a
// [transport.Transport].
//
// A [Holder] wraps an existing participant. [Holder.Split] sends masked
// values to the other enrolling holders and [Holder.Aggregate] forwards the
// summed values to the newcomer, with the group key and a session
// transcript. A [Newcomer] receives the aggregates and assembles the new
// share with [Newcomer.Assemble].
//
// Endpoints keep per-session state only between Split and Aggregate; it is
// discarded as soon as the session moves on or fails.
package peer
