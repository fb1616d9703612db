package stockd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/vango-dev/huddle/pkg/client"
	"github.com/vango-dev/huddle/pkg/payload"
	"github.com/vango-dev/huddle/pkg/server"
	"github.com/vango-dev/huddle/pkg/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startEndpoint(t *testing.T) string {
	t.Helper()
	srv := server.New(server.Config{Logger: quiet})
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		hs.Close()
	})
	return "huddle://" + hs.Listener.Addr().String() + "/socket/Session/StockSession"
}

func connect(t *testing.T, url, name string, create bool) *client.Session {
	t.Helper()
	s, err := client.CreateOrJoin(context.Background(), session.NewClient(name), url, create, client.WithLogger(quiet))
	if err != nil {
		t.Fatalf("CreateOrJoin(%s) error = %v", name, err)
	}
	t.Cleanup(func() { s.Disconnect() })
	return s
}

// fixedFeed quotes every symbol at a price that counts up per call.
func fixedFeed() Feed {
	calls := map[string]int{}
	return FeedFunc(func(_ context.Context, sym string) (payload.Stock, error) {
		if sym == "BAD" {
			return payload.Stock{}, errors.New("feed unavailable")
		}
		calls[sym]++
		return payload.Stock{
			Symbol:        sym,
			Valid:         true,
			Time:          "4:00pm",
			Value:         []string{"", "100.00", "101.00", "102.00", "103.00"}[min(calls[sym], 4)],
			Change:        "+0.00",
			PercentChange: "+0.00%",
		}, nil
	})
}

func TestPublishAndWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := startEndpoint(t)

	pubSess := connect(t, url, "stockd", true)
	pub := NewPublisher(pubSess, fixedFeed(), Config{Symbols: []string{"ibm", "BAD"}, Logger: quiet})

	viewer := connect(t, url, "viewer", false)
	w, err := Watch(ctx, viewer, "AAPL", quiet)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if _, seq := w.Load(); seq != 0 {
		t.Fatalf("quote before any publish, seq %d", seq)
	}

	symbols, err := pub.Symbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"AAPL", "BAD", "IBM"}; !slices.Equal(symbols, want) {
		t.Errorf("Symbols() = %v, want %v", symbols, want)
	}

	// The failing symbol is skipped without stopping the cycle.
	if err := pub.PublishOnce(ctx); err != nil {
		t.Fatalf("PublishOnce() error = %v", err)
	}
	quote, seq, err := w.Wait(ctx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Value != "100.00" {
		t.Errorf("quote = %+v", quote)
	}

	pub.PublishOnce(ctx)
	quote, _, err = w.Wait(ctx, seq)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if quote.Value != "101.00" {
		t.Errorf("second quote = %+v", quote)
	}

	// A late watcher sees the current quote without waiting.
	late := connect(t, url, "late", false)
	lw, err := Watch(ctx, late, "IBM", quiet)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if q, seq := lw.Load(); seq == 0 || q.Value != "101.00" {
		t.Errorf("late watcher Load() = %+v, %d", q, seq)
	}

	if err := w.Close(ctx); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWatcherDropsMalformedQuotes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := startEndpoint(t)

	writer := connect(t, url, "writer", true)
	ba, err := writer.CreateByteArray(ctx, "AAPL", session.DefaultByteArrayOptions())
	if err != nil {
		t.Fatal(err)
	}

	viewer := connect(t, url, "viewer", false)
	w, err := Watch(ctx, viewer, "AAPL", quiet)
	if err != nil {
		t.Fatal(err)
	}

	if err := ba.SetValue(ctx, []byte{0xFF}); err != nil {
		t.Fatal(err)
	}
	good, _ := payload.Stock{Symbol: "AAPL", Valid: true, Time: "t", Value: "1", Change: "0", PercentChange: "0%"}.MarshalBinary()
	if err := ba.SetValue(ctx, good); err != nil {
		t.Fatal(err)
	}

	quote, seq, err := w.Wait(ctx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if quote.Value != "1" || seq != 1 {
		t.Errorf("Wait() = %+v, seq %d; want the valid quote as the first", quote, seq)
	}
}

func TestRequestChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := startEndpoint(t)

	pubSess := connect(t, url, "stockd", true)
	pub := NewPublisher(pubSess, fixedFeed(), Config{
		Interval:       time.Hour,
		RequestChannel: "StockRequests",
		Logger:         quiet,
	})
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- pub.Run(runCtx) }()

	asker := connect(t, url, "asker", false)
	for {
		if err := Request(ctx, asker, "StockRequests", "msft"); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		symbols, _ := pub.Symbols(ctx)
		if slices.Contains(symbols, "MSFT") {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("request never reached the publisher")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// The request wakes the publisher before the hour is up.
	ba, err := asker.CreateByteArray(ctx, "MSFT", session.ByteArrayOptions{})
	for err != nil {
		select {
		case <-ctx.Done():
			t.Fatalf("MSFT byte array never created: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
		ba, err = asker.CreateByteArray(ctx, "MSFT", session.ByteArrayOptions{})
	}
	for {
		snap, err := ba.Snapshot(ctx)
		if err == nil && snap.Version > 0 {
			q, _ := payload.DecodeStock(snap.Value)
			if q.Symbol != "MSFT" {
				t.Errorf("published %+v", q)
			}
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("MSFT never published")
		case <-time.After(20 * time.Millisecond):
		}
	}

	stop()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunStopsWhenSessionCloses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := startEndpoint(t)

	pubSess := connect(t, url, "stockd", true)
	pub := NewPublisher(pubSess, fixedFeed(), Config{Interval: time.Hour, Logger: quiet})
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	if err := pubSess.Close(ctx, true); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, session.ErrSessionClosed) {
			t.Errorf("Run() error = %v, want ErrSessionClosed", err)
		}
	case <-ctx.Done():
		t.Fatal("Run() did not return after the session closed")
	}
}

func TestRandomFeed(t *testing.T) {
	ctx := context.Background()
	a, b := NewRandomFeed(7), NewRandomFeed(7)
	fixed := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	b.now = a.now

	for i := 0; i < 3; i++ {
		qa, _ := a.Quote(ctx, "aapl")
		qb, _ := b.Quote(ctx, "AAPL")
		if qa != qb {
			t.Fatalf("same seed diverged: %+v vs %+v", qa, qb)
		}
		if !qa.Valid || qa.Symbol != "AAPL" || qa.Time != "4:00pm" {
			t.Errorf("quote = %+v", qa)
		}
	}

	for _, sym := range []string{"", "TOOLONG", "A1"} {
		q, err := a.Quote(ctx, sym)
		if err != nil || q.Valid {
			t.Errorf("Quote(%q) = %+v, %v; want invalid record", sym, q, err)
		}
	}
}
