// Package session is the in-process core of huddle: named sessions grouping
// clients, ordered multicast channels and last-writer-wins shared byte
// arrays.
//
// # Sessions
//
// A Manager owns the sessions of one transport type. The first client to
// CreateOrJoin with create=true creates a session; later clients join it.
// Client names are unique within a session:
//
//	m := session.NewManager(session.DefaultManagerConfig())
//	s, err := m.CreateOrJoin(ctx, session.NewClient("bob"), "S", true)
//	if errors.Is(err, session.ErrNameInUse) {
//	    // pick another name, see RetryOnNameInUse
//	}
//
// A session closes when its last member leaves, or when a member calls
// Close. A non-forced Close fails with ErrSessionInUse while other members
// remain.
//
// # Channels
//
// Channels deliver byte-string messages to consumers. For a fixed sender and
// recipient, messages arrive in send order. High priority messages overtake
// queued normal ones from other senders; on unordered channels they overtake
// everything queued. Unreliable channels bound each consumer's queue and
// drop the oldest normal message when full.
//
//	ch, _ := s.CreateChannel(alice, "C", session.DefaultChannelOptions())
//	ch.AddConsumer(alice, func(d session.Data) { ... })
//	ch.SendToAll(bob, session.PriorityNormal, []byte("hello"))
//
// Sending to a client without consumers is a silent no-op.
//
// # Byte Arrays
//
// A ByteArray holds one value. SetValue replaces it, bumps its version and
// notifies every listener. Readers see the current value only; there is no
// history. Listeners that fall behind skip intermediate values, so the
// versions a listener observes only ever increase.
//
// # Delivery
//
// Every consumer and listener has its own queue and goroutine (package
// dispatch). Events are queued while the session lock is held, so each
// listener observes mutations in the order they happened, and a slow
// listener never blocks another one.
package session
