// Package controlapi exposes camera control and appliance operations over
// HTTP with JSON bodies.
//
// Camera routes keep the query-string shape used by existing remote
// controls (`/zoom?multiplier=`, `/icr/toggle?enable=`). Every response
// carries a `status` of "ok", "success" or "error" and a human message.
package controlapi
