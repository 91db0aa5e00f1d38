// Package recording owns the capture-to-file side of a recording.
//
// A Session moves Idle → Recording → Finalizing. The sink is opened lazily on
// the first frame so its dimensions match what the camera actually delivers.
// Stop hands the finished capture and its wall-clock duration to the
// transcode runner; the session reads as Idle again once that job is no
// longer running.
package recording
