// Package notifications pushes appliance milestones to an ntfy topic.
//
// A recording saved after remux, a failed transcode, a finished export batch
// and newly attached export storage each map to one Event. When ntfy_topic is
// empty NewService returns a no-op, so callers publish unconditionally.
package notifications
