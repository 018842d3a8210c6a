// Package tail streams log events to an output until the operator stops it.
//
// A Session has three stages. While Draining it emits the backlog handed out
// by its Source. It then goes Live and emits each event the subscriber
// receives, in the order the buffer accepted them. It ends Stopped when its
// context is cancelled, Stop is called, or the source closes the subscriber.
// The subscriber is always detached on the way out.
//
// Sources attach the backlog and the live subscriber in one step, so the
// hand-off from backlog to live events has neither gaps nor duplicates.
// BufferSource does this against a local ring buffer; the HTTP client offers
// a remote source with the same contract.
//
// Follow pairs a session with a KeySource. End of input, Ctrl-C, Ctrl-D or a
// read error on the key source stops the session, and a session that ends on
// its own closes the key source so the pending read returns. Terminal is the
// KeySource for an interactive shell: it switches stdin to raw mode and
// reads through a cancelable reader.
package tail
