// Package services defines shared utilities consumed by the appliance
// components.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, job IDs, and correlation
//     identifiers for logging.
//   - The error taxonomy (device, recording, transcode, export) plus the Wrap
//     helper and the mapping from errors to operator status text.
//
// Use these helpers when wiring new components so failures surface on the
// status line the same way everywhere.
package services
