// Package reconcile closes the gap between optimistic command effects
// and the panel's real state.
//
// Commands are reflected immediately: the bridge predicts the
// resulting state fragment and publishes it without waiting for the
// next poll. The Tracker then verifies against the panel after a short
// delay by fetching the element's own status document and merging the
// decoded result over the published state. Issuing a newer command on
// the same element supersedes any verification still in flight.
//
// Two estimation helpers cover what the panel does not report:
//
// Hold windows keep a light's optimistic values authoritative for a
// few seconds after a command, so a poll racing the panel's internal
// update cannot flash the old state back.
//
// PositionEstimator derives a shutter's position from its travel time
// and the direction flags, since the panel only reports moving up or
// moving down.
package reconcile
