package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCreateOrJoin(t *testing.T) {
	m := newTestManager()

	s1, alice := mustJoin(t, m, "alice", "S", true)
	if s1.State() != StateActive {
		t.Errorf("State() = %v, want active", s1.State())
	}
	if s1.Creator() != alice.Name() {
		t.Errorf("Creator() = %q, want alice", s1.Creator())
	}
	if s1.ID() == "" {
		t.Error("ID() is empty")
	}

	s2, _ := mustJoin(t, m, "bob", "S", false)
	if s1 != s2 {
		t.Error("second join returned a different session")
	}
	if got := s1.ClientNames(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("ClientNames() = %v", got)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestCreateOrJoinNoSuchSession(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateOrJoin(context.Background(), NewClient("alice"), "missing", false)
	if !errors.Is(err, ErrNoSuchSession) {
		t.Fatalf("error = %v, want ErrNoSuchSession", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Resource != "missing" {
		t.Errorf("error = %#v, want *OpError for missing", err)
	}
}

func TestNameInUseThenRetry(t *testing.T) {
	m := newTestManager()
	mustJoin(t, m, "bob", "S", true)

	_, err := m.CreateOrJoin(context.Background(), NewClient("bob"), "S", true)
	if !errors.Is(err, ErrNameInUse) {
		t.Fatalf("duplicate join error = %v, want ErrNameInUse", err)
	}
	if !IsRecoverable(err) {
		t.Error("IsRecoverable(ErrNameInUse) = false")
	}

	s, c, err := m.CreateOrJoinUnique(context.Background(), "bob", func(n string) Client { return NewClient(n) }, "S", true)
	if err != nil {
		t.Fatalf("CreateOrJoinUnique() error = %v", err)
	}
	if c.Name() != "bob+" {
		t.Errorf("joined as %q, want bob+", c.Name())
	}
	if got := s.ClientNames(); !reflect.DeepEqual(got, []string{"bob", "bob+"}) {
		t.Errorf("ClientNames() = %v", got)
	}
}

func TestRetryOnNameInUseGivesUp(t *testing.T) {
	calls := 0
	_, err := RetryOnNameInUse(context.Background(), "bob", 3, func(context.Context, string) error {
		calls++
		return ErrNameInUse
	})
	if !errors.Is(err, ErrNameInUse) {
		t.Errorf("error = %v, want ErrNameInUse", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	boom := errors.New("boom")
	_, err = RetryOnNameInUse(context.Background(), "bob", 3, func(context.Context, string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		attempt int
		want    string
	}{
		{0, "bob"},
		{1, "bob+"},
		{3, "bob+++"},
	}
	for _, tc := range tests {
		if got := UniqueName("bob", tc.attempt); got != tc.want {
			t.Errorf("UniqueName(bob, %d) = %q, want %q", tc.attempt, got, tc.want)
		}
	}
}

type staticTokenClient struct {
	name, token string
}

func (c staticTokenClient) Name() string { return c.name }
func (c staticTokenClient) Authenticate(context.Context, AuthInfo) (string, error) {
	return c.token, nil
}

func TestAuthorizer(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.Authorizer = AuthorizerFunc(func(_ context.Context, req AuthRequest) error {
		if req.Token != "secret-"+req.Client {
			return errors.New("bad token")
		}
		return nil
	})
	m := NewManager(cfg)

	if _, err := m.CreateOrJoin(context.Background(), staticTokenClient{"alice", "secret-alice"}, "S", true); err != nil {
		t.Fatalf("authorized join error = %v", err)
	}
	_, err := m.CreateOrJoin(context.Background(), staticTokenClient{"mallory", "guess"}, "S", true)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("rejected join error = %v, want ErrPermissionDenied", err)
	}
	if IsRecoverable(err) {
		t.Error("IsRecoverable(ErrPermissionDenied) = true")
	}
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager()
	s, alice := mustJoin(t, m, "alice", "S", true)
	_, bob := mustJoin(t, m, "bob", "S", false)

	events := newRecorder[SessionEvent]()
	if _, err := s.AddSessionListener(events.record); err != nil {
		t.Fatalf("AddSessionListener() error = %v", err)
	}

	if err := s.Close(alice, false); !errors.Is(err, ErrSessionInUse) {
		t.Fatalf("Close(force=false) error = %v, want ErrSessionInUse", err)
	}

	if err := s.Leave(bob); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if err := s.Leave(bob); err != nil {
		t.Fatalf("second Leave() error = %v", err)
	}
	if err := s.Close(alice, false); err != nil {
		t.Fatalf("Close() as last member error = %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed")
	}
	if _, ok := m.Get("S"); ok {
		t.Error("closed session still registered")
	}
	if err := s.Close(alice, true); err != nil {
		t.Errorf("Close() on closed session error = %v", err)
	}

	got := events.waitLen(t, 2)
	want := []SessionEvent{
		{Kind: ClientLeft, Session: "S", Client: "bob"},
		{Kind: SessionDestroyed, Session: "S", Client: "alice"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %+v, want %+v", got, want)
	}
}

func TestForceCloseNotifiesRemainingMembers(t *testing.T) {
	m := newTestManager()
	s, alice := mustJoin(t, m, "alice", "S", true)
	mustJoin(t, m, "bob", "S", false)
	if _, err := s.CreateChannel(alice, "C", DefaultChannelOptions()); err != nil {
		t.Fatal(err)
	}

	events := newRecorder[SessionEvent]()
	s.AddSessionListener(events.record)

	if err := s.Close(alice, true); err != nil {
		t.Fatalf("Close(force=true) error = %v", err)
	}

	got := events.waitLen(t, 3)
	want := []SessionEvent{
		{Kind: ChannelDestroyed, Session: "S", Client: "alice", Resource: "C"},
		{Kind: ClientLeft, Session: "S", Client: "bob"},
		{Kind: SessionDestroyed, Session: "S", Client: "alice"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %+v, want %+v", got, want)
	}
}

func TestDrainedWaitsForListeners(t *testing.T) {
	m := newTestManager()
	s, alice := mustJoin(t, m, "alice", "S", true)

	release := make(chan struct{})
	events := newRecorder[SessionEvent]()
	s.AddSessionListener(func(e SessionEvent) {
		<-release
		events.record(e)
	})

	if err := s.Close(alice, true); err != nil {
		t.Fatalf("Close(force=true) error = %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("Done() not closed after Close")
	}
	select {
	case <-s.Drained():
		t.Fatal("Drained() closed while a listener still holds the destroy event")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-s.Drained():
	case <-time.After(waitTimeout):
		t.Fatal("Drained() not closed after the listener finished")
	}
	got := events.snapshot()
	if len(got) == 0 || got[len(got)-1].Kind != SessionDestroyed {
		t.Errorf("events = %+v, want SessionDestroyed last", got)
	}
}

func TestLastLeaveClosesSession(t *testing.T) {
	m := newTestManager()
	s, alice := mustJoin(t, m, "alice", "S", true)
	s.Leave(alice)
	if s.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", s.State())
	}

	// The name is free for a new session instance.
	s2, _ := mustJoin(t, m, "alice", "S", true)
	if s2 == s || s2.ID() == s.ID() {
		t.Error("rejoin returned the closed session")
	}
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	m := newTestManager()
	s, _ := mustJoin(t, m, "alice", "S", true)
	if err := s.Leave(NewClient("stranger")); err != nil {
		t.Errorf("Leave(stranger) error = %v", err)
	}
	if err := s.Leave(nil); err != nil {
		t.Errorf("Leave(nil) error = %v", err)
	}
	if s.State() != StateActive {
		t.Errorf("State() = %v, want active", s.State())
	}
}

func TestManagerClose(t *testing.T) {
	m := newTestManager()
	s1, _ := mustJoin(t, m, "alice", "S1", true)
	s2, _ := mustJoin(t, m, "alice", "S2", true)
	if got := m.Names(); !reflect.DeepEqual(got, []string{"S1", "S2"}) {
		t.Errorf("Names() = %v", got)
	}

	m.Close()
	if s1.State() != StateClosed || s2.State() != StateClosed {
		t.Error("Close() left sessions open")
	}
	_, err := m.CreateOrJoin(context.Background(), NewClient("bob"), "S3", true)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("join after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestSessionNames(t *testing.T) {
	m := newTestManager()
	s, alice := mustJoin(t, m, "alice", "S", true)
	for _, name := range []string{"MSFT", "AAPL", "IBM"} {
		if _, err := s.CreateByteArray(alice, name, DefaultByteArrayOptions()); err != nil {
			t.Fatal(err)
		}
	}
	s.CreateChannel(alice, "Z", DefaultChannelOptions())
	s.CreateChannel(alice, "A", DefaultChannelOptions())

	if got := s.ByteArrayNames(); !reflect.DeepEqual(got, []string{"AAPL", "IBM", "MSFT"}) {
		t.Errorf("ByteArrayNames() = %v", got)
	}
	if got := s.ChannelNames(); !reflect.DeepEqual(got, []string{"A", "Z"}) {
		t.Errorf("ChannelNames() = %v", got)
	}

	info := s.Info()
	if info.Name != "S" || info.Creator != "alice" || len(info.ByteArrays) != 3 || len(info.Channels) != 2 {
		t.Errorf("Info() = %+v", info)
	}
	if infos := m.Infos(); len(infos) != 1 || infos[0].ID != s.ID() {
		t.Errorf("Infos() = %+v", infos)
	}
}

func TestCreateResourcesRequireMembership(t *testing.T) {
	m := newTestManager()
	s, _ := mustJoin(t, m, "alice", "S", true)
	stranger := NewClient("stranger")

	if _, err := s.CreateChannel(stranger, "C", DefaultChannelOptions()); !errors.Is(err, ErrNoSuchClient) {
		t.Errorf("CreateChannel(stranger) error = %v, want ErrNoSuchClient", err)
	}
	if _, err := s.CreateByteArray(stranger, "B", DefaultByteArrayOptions()); !errors.Is(err, ErrNoSuchClient) {
		t.Errorf("CreateByteArray(stranger) error = %v, want ErrNoSuchClient", err)
	}
}

func TestSessionListenerRemove(t *testing.T) {
	m := newTestManager()
	s, _ := mustJoin(t, m, "alice", "S", true)
	id, _ := s.AddSessionListener(func(SessionEvent) {})
	if err := s.RemoveSessionListener(id); err != nil {
		t.Errorf("RemoveSessionListener() error = %v", err)
	}
	if err := s.RemoveSessionListener(id); !errors.Is(err, ErrNoSuchConsumer) {
		t.Errorf("second RemoveSessionListener() error = %v, want ErrNoSuchConsumer", err)
	}
}
