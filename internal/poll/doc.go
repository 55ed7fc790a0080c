// Package poll drives the periodic status cycle against the panel and
// holds the last published element states.
//
// The Coordinator runs one cycle at a time: fetch the bulk status
// document, decode each catalogued element's snapshot, then replace the
// Store's contents and notify the publish callback. A failed bulk fetch
// marks the cycle failed and leaves the Store's previous states in
// place, flagged stale, so consumers keep serving the last known data.
// A failed decode affects only that element; the rest of the cycle
// publishes normally.
//
// Manual refreshes requested through Refresh are coalesced: any number
// of requests arriving while a cycle is in flight collapse into a
// single follow-up cycle.
//
// The Store is also the merge point for out-of-cycle updates. Command
// verification and optimistic predictions overlay fragments onto an
// element's current state through MergeElement without waiting for the
// next poll.
package poll
