// Package dispatch delivers events to one subscriber at a time, in order.
//
// Every listener or consumer owns a Queue and a Worker. Producers push under
// whatever lock orders their mutations, so each subscriber observes events in
// mutation order, while a slow subscriber only backs up its own queue.
//
// # Lanes
//
// A Queue has a normal and a high lane. High items overtake queued normal
// items. When a Queue is ordered, a high item never overtakes an earlier item
// from its own group (for channels the group is the sender), so a single
// sender's stream is never reordered.
//
// # Coalescing
//
// Items pushed with a non-empty Key remove a pending item with the same Key
// and then queue as usual, so the newest value never overtakes items pushed
// before it. Byte array value changes use this: a listener that falls behind
// skips intermediate values but never observes an older value after a newer
// one, nor a value change ahead of an earlier membership event.
//
// # Latest
//
// Latest is a mutex-guarded cell holding the newest value with a version,
// with Wait blocking until a newer value arrives. It is the replacement for
// a "changed" flag polled on a timer.
package dispatch
