package stockd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/huddle/pkg/payload"
)

// Feed supplies quotes. A symbol the feed does not know yields an invalid
// record rather than an error; errors mean the feed itself failed.
type Feed interface {
	Quote(ctx context.Context, symbol string) (payload.Stock, error)
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context, symbol string) (payload.Stock, error)

// Quote calls f.
func (f FeedFunc) Quote(ctx context.Context, symbol string) (payload.Stock, error) {
	return f(ctx, symbol)
}

// RandomFeed simulates a market: each symbol starts at a price derived from
// its name and moves by a small random step on every quote. Symbols must be
// one to five letters.
type RandomFeed struct {
	mu   sync.Mutex
	rng  *rand.Rand
	open map[string]float64
	last map[string]float64
	now  func() time.Time
}

// NewRandomFeed returns a RandomFeed seeded with seed.
func NewRandomFeed(seed uint64) *RandomFeed {
	return &RandomFeed{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		open: make(map[string]float64),
		last: make(map[string]float64),
		now:  time.Now,
	}
}

// Quote implements Feed.
func (f *RandomFeed) Quote(_ context.Context, symbol string) (payload.Stock, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if !validSymbol(sym) {
		return payload.Stock{Symbol: symbol}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	open, ok := f.open[sym]
	if !ok {
		open = startPrice(sym)
		f.open[sym] = open
		f.last[sym] = open
	}
	price := f.last[sym] * (1 + (f.rng.Float64()-0.5)*0.02)
	f.last[sym] = price

	change := price - open
	return payload.Stock{
		Symbol:        sym,
		Valid:         true,
		Time:          f.now().Format("3:04pm"),
		Value:         fmt.Sprintf("%.2f", price),
		Change:        fmt.Sprintf("%+.2f", change),
		PercentChange: fmt.Sprintf("%+.2f%%", change/open*100),
	}, nil
}

func validSymbol(s string) bool {
	if len(s) == 0 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func startPrice(sym string) float64 {
	var h uint32 = 2166136261
	for i := 0; i < len(sym); i++ {
		h = (h ^ uint32(sym[i])) * 16777619
	}
	return 10 + float64(h%49000)/100
}
