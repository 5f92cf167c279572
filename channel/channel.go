// Package channel carries document text between collaborating sessions.
//
// A session binds to a Remote: it registers a callback for texts committed
// by other participants and pushes its own committed text outward. Two
// transports are provided, an in-process Hub for tests and same-process
// panes, and a websocket client speaking a small JSON frame protocol to a
// relay server.
package channel

import "errors"

// ErrClosed is returned by Commit after the transport closed.
var ErrClosed = errors.New("channel: closed")

// Remote is the transport contract a session binds to. OnRemoteChange
// registers the callback invoked with the full document text whenever
// another participant commits; Commit publishes this participant's text to
// the others.
type Remote interface {
	OnRemoteChange(fn func(text string))
	Commit(text string) error
}
