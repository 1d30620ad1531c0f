// Package pause keeps a session-wide paused flag consistent across peers.
//
// One peer, the authority, decides. Everyone else asks. A follower that wants
// to pause sends a request to the authority and changes nothing locally; the
// authority checks the host's pausable phase, updates its Store and broadcasts
// a pause command, which followers adopt as-is when it comes from the
// authority they currently know.
//
// Messages carry a protocol version. Peers speaking another version ignore
// each other's pause traffic entirely.
//
// Delivery is assumed to be unordered and at-most-once. Every mutation is
// idempotent and inbound commands are trusted by sender identity, not by
// sequence. A lost command leaves a follower diverged until the next toggle or
// resync.
//
// Handler and Store are not safe for concurrent use. Callers deliver inbound
// messages and local intents from a single goroutine.
package pause
