// Package appliance wires the recording core into one running process.
//
// App owns every long-lived component: status board, camera head controller,
// recording session, transcode runner, exporter, catalog, storage monitor and
// control API. A file lock in the state directory keeps a second instance
// from driving the same camera.
package appliance
