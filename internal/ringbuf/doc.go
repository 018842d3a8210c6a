// Package ringbuf retains the most recent log events in a fixed-capacity
// circular buffer and fans new events out to live subscribers.
//
// # Overview
//
// Buffer is the in-memory history behind the display and tail commands. It is
// created once at daemon start with a configured capacity and closed at
// shutdown. Producers call Add (or Accept, which swallows failures); readers
// call Snapshot; tail sessions call Attach to get both a backlog and a live
// Subscriber.
//
// # Ring Layout
//
// The buffer keeps a slice of capacity slots and two indices:
//
//	head: oldest retained event
//	tail: next write position
//	full: head == tail because the ring wrapped, not because it is empty
//
// Add on a full ring clears slots[head], advances head, then writes at tail.
// Exactly one event is evicted per insert. Snapshot(n) reads
//
//	slots[(head + size - n + i) % capacity]  for i in [0, n)
//
// which yields the newest n events oldest first.
//
// # Locking
//
// One mutex guards the slots, the indices and the subscriber list. Add holds
// it for O(1) work; Snapshot holds it for an O(n) copy. Fan-out to
// subscribers runs after that mutex is released but under a second delivery
// mutex acquired before the first is dropped. Concurrent producers therefore
// deliver in insertion order while Snapshot and Clear never wait on
// delivery.
//
// # Subscribers
//
// A Subscriber owns an unbounded queue. Push appends and signals; it never
// waits for the consumer, so a slow tail session cannot slow producers down.
// Next blocks until an event arrives, its context ends, or the subscriber is
// closed. A subscriber that panics during delivery is skipped and counted
// through Observer.DeliveryFailed; the producer never sees the failure.
//
// Attach and AttachSince register a subscriber under the same lock that
// copies the backlog. Every event is either in the backlog or delivered to
// the subscriber, never both and never neither.
//
// # Sequence Numbers
//
// Each accepted event is stamped with a monotonically increasing Seq. Clear
// does not reset the counter, so remote readers can resume with
// AttachSince(lastSeq) without replaying or skipping events.
package ringbuf
