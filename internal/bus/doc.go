// Package bus implements the message channel between the host and the
// privileged background process.
//
// Messages are flat JSON objects whose "method" field names the envelope.
// An Endpoint can send one-way messages, send requests that expect exactly
// one correlated reply, and register persistent listeners for inbound
// messages. Listeners are broadcast: every listener whose predicate matches
// runs, and the first one that reports the message as handled supplies the
// reply.
//
// Inbound messages from one peer are dispatched in the order the peer sent
// them. Replies are resolved on a separate queue, so a listener may block
// on a request of its own without stalling reply delivery.
//
// Two transports are provided:
//   - NewPipe: a pair of connected in-process endpoints
//   - Dial / NewWebSocketHandler: JSON frames over a WebSocket connection
package bus
