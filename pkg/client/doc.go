// Package client joins sessions hosted by a remote huddle server.
//
// A remote session mirrors the in-process session API: the same options,
// events and sentinel errors, with a context on every call since each one
// is a request to the server.
//
//	s, err := client.CreateOrJoin(ctx, session.NewClient("alice"),
//		"huddle://localhost:4461/socket/Session/Chat", true)
//	if err != nil {
//		return err
//	}
//	defer s.Leave(ctx)
//
//	ch, _ := s.CreateChannel(ctx, "C", session.DefaultChannelOptions())
//	ch.AddConsumer(ctx, func(d session.Data) { ... })
//	ch.SendToAll(ctx, session.PriorityNormal, []byte("hello"))
//
// # Connection
//
// Each Session owns one WebSocket. Requests are matched to replies by id;
// events are routed to the listener that registered them, each listener
// with its own delivery queue so a slow listener never blocks the
// connection. When the server destroys the session or the connection drops,
// Done is closed, pending requests fail and Inbox receives return
// session.ErrClosed.
//
// Names already joined fail with session.ErrNameInUse; CreateOrJoinUnique
// retries with "name+", "name++" and so on.
package client
