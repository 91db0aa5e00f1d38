// Package transcode normalizes finished recordings.
//
// A recording is captured at whatever rate the camera delivered but written
// with a nominal 30 fps header. A Job counts the frames actually captured,
// divides by the wall-clock duration of the session and remuxes the file with
// `ffmpeg -c copy -r <fps>` so playback speed matches reality. Progress is read
// from ffmpeg's -progress artifact, the output is validated with ffprobe, and
// only then is the raw capture deleted. A failed job always leaves the source
// in place.
//
// The Runner guarantees at most one running job. Submitting a new job first
// joins the previous one.
package transcode
