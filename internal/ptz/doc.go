// Package ptz drives the camera head's lens over its serial control link.
//
// Commands are VISCA-style frames: a fixed three byte prefix, a parameter
// field, and a 0xFF terminator. The controller owns the single serial handle,
// opens it lazily against an ordered list of candidate device paths, and
// serializes every write so held-button repeat timers and API calls never
// interleave frames on the wire.
package ptz
