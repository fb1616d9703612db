// Package stockd publishes stock quotes into a session.
//
// Every symbol is a byte array named after it holding an encoded
// payload.Stock. The publisher refreshes every byte array in the session,
// so a client asks for a ticker just by creating its byte array, or by
// sending the symbol on the request channel. Watchers read the current
// quote on join and then follow updates.
package stockd

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/huddle/pkg/client"
	"github.com/vango-dev/huddle/pkg/session"
)

// Config configures a Publisher.
type Config struct {
	// Symbols are published even before anyone asks for them.
	Symbols []string

	// Interval is the refresh period. Default: 15 seconds.
	Interval time.Duration

	// RequestChannel carries symbol requests. Empty disables it.
	RequestChannel string

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

// Publisher refreshes every ticker byte array in a session from a Feed.
type Publisher struct {
	sess   *client.Session
	feed   Feed
	config Config
	logger *slog.Logger

	mu        sync.Mutex
	arrays    map[string]*client.ByteArray
	requested map[string]struct{}
	wake      chan struct{}
}

// NewPublisher returns a Publisher for sess.
func NewPublisher(sess *client.Session, feed Feed, config Config) *Publisher {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	p := &Publisher{
		sess:      sess,
		feed:      feed,
		config:    config,
		logger:    config.Logger.With("component", "stockd", "session", sess.Name()),
		arrays:    make(map[string]*client.ByteArray),
		requested: make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
	for _, s := range config.Symbols {
		p.requested[strings.ToUpper(s)] = struct{}{}
	}
	return p
}

// Run publishes immediately, then every Interval and whenever a new symbol
// is requested, until ctx is done or the session closes.
func (p *Publisher) Run(ctx context.Context) error {
	if p.config.RequestChannel != "" {
		ch, err := p.sess.CreateChannel(ctx, p.config.RequestChannel, session.DefaultChannelOptions())
		if err != nil {
			return err
		}
		if _, err := ch.AddConsumer(ctx, p.handleRequest); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	for {
		if err := p.PublishOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if fatal(err) {
				return err
			}
			p.logger.Warn("publish cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-p.sess.Done():
			return session.ErrSessionClosed
		case <-ticker.C:
		case <-p.wake:
		}
	}
}

func (p *Publisher) handleRequest(d session.Data) {
	sym := strings.ToUpper(strings.TrimSpace(string(d.Payload)))
	if sym == "" {
		return
	}
	p.mu.Lock()
	_, seen := p.requested[sym]
	p.requested[sym] = struct{}{}
	p.mu.Unlock()
	if seen {
		return
	}
	p.logger.Debug("symbol requested", "symbol", sym, "by", d.Sender)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Symbols returns the symbols the next cycle will publish: byte arrays in
// the session plus configured and requested symbols.
func (p *Publisher) Symbols(ctx context.Context) ([]string, error) {
	names, err := p.sess.ByteArrayNames(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	p.mu.Lock()
	for s := range p.requested {
		set[s] = struct{}{}
	}
	p.mu.Unlock()

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// PublishOnce refreshes every symbol once. Failures for one symbol are
// logged and skipped; only a lost session stops the cycle.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	symbols, err := p.Symbols(ctx)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		if err := p.publish(ctx, sym); err != nil {
			if fatal(err) || ctx.Err() != nil {
				return err
			}
			p.logger.Warn("publish skipped", "symbol", sym, "error", err)
		}
	}
	return nil
}

// fatal reports whether err means the session is gone for this publisher.
func fatal(err error) bool {
	return errors.Is(err, session.ErrSessionClosed) ||
		errors.Is(err, session.ErrConnect) ||
		errors.Is(err, session.ErrPermissionDenied)
}

func (p *Publisher) publish(ctx context.Context, sym string) error {
	quote, err := p.feed.Quote(ctx, sym)
	if err != nil {
		return &session.OpError{Op: "quote", Resource: sym, Err: err}
	}
	data, err := quote.MarshalBinary()
	if err != nil {
		return err
	}

	ba, err := p.array(ctx, sym)
	if err != nil {
		return err
	}
	err = ba.SetValue(ctx, data)
	if errors.Is(err, session.ErrNoSuchByteArray) {
		// Destroyed between listing and setting; recreate next cycle.
		p.mu.Lock()
		delete(p.arrays, sym)
		p.mu.Unlock()
	}
	if err == nil {
		p.logger.Debug("published", "symbol", sym, "value", quote.Value, "valid", quote.Valid)
	}
	return err
}

func (p *Publisher) array(ctx context.Context, sym string) (*client.ByteArray, error) {
	p.mu.Lock()
	ba, ok := p.arrays[sym]
	p.mu.Unlock()
	if ok {
		return ba, nil
	}
	ba, err := p.sess.CreateByteArray(ctx, sym, session.DefaultByteArrayOptions())
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.arrays[sym] = ba
	p.mu.Unlock()
	return ba, nil
}

// Request asks the publisher in sess to track symbol.
func Request(ctx context.Context, sess *client.Session, channel, symbol string) error {
	ch, err := sess.CreateChannel(ctx, channel, session.DefaultChannelOptions())
	if err != nil {
		return err
	}
	return ch.SendToOthers(ctx, session.PriorityNormal, []byte(strings.ToUpper(symbol)))
}
