// Package ffprobe wraps the ffprobe binary.
//
// Inspect decodes ffprobe's JSON description of a file. CountFrames decodes
// every video frame to obtain an exact count, which is how drip learns the
// real capture rate of a finished recording. Validate is the lightweight open
// check used to accept or reject a transcoded deliverable: only the exit
// status matters.
package ffprobe
