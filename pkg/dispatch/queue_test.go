package dispatch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, q *Queue[string]) []string {
	t.Helper()
	var out []string
	for q.Len() > 0 {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestQueueLanes(t *testing.T) {
	type push struct {
		value string
		lane  Lane
		group string
	}

	tests := []struct {
		name    string
		ordered bool
		pushes  []push
		want    []string
	}{
		{
			name: "fifo_normal",
			pushes: []push{
				{"a1", LaneNormal, "a"},
				{"a2", LaneNormal, "a"},
				{"b1", LaneNormal, "b"},
			},
			want: []string{"a1", "a2", "b1"},
		},
		{
			name: "unordered_high_overtakes_all",
			pushes: []push{
				{"a1", LaneNormal, "a"},
				{"b1", LaneNormal, "b"},
				{"a2!", LaneHigh, "a"},
			},
			want: []string{"a2!", "a1", "b1"},
		},
		{
			name:    "ordered_high_overtakes_other_senders_only",
			ordered: true,
			pushes: []push{
				{"b1", LaneNormal, "b"},
				{"a1", LaneNormal, "a"},
				{"b2", LaneNormal, "b"},
				{"a2!", LaneHigh, "a"},
			},
			want: []string{"b1", "a1", "a2!", "b2"},
		},
		{
			name:    "ordered_high_fifo_among_high",
			ordered: true,
			pushes: []push{
				{"a1", LaneNormal, "a"},
				{"b1!", LaneHigh, "b"},
				{"c1!", LaneHigh, "c"},
			},
			want: []string{"b1!", "c1!", "a1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := NewQueue[string](Options{Ordered: tc.ordered})
			for _, p := range tc.pushes {
				q.Push(Item[string]{Value: p.value, Lane: p.lane, Group: p.group})
			}
			if got := drain(t, q); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQueueCoalesce(t *testing.T) {
	q := NewQueue[string](Options{})
	q.Push(Item[string]{Value: "joined"})
	q.Push(Item[string]{Value: "v1", Key: "value"})
	q.Push(Item[string]{Value: "left"})
	q.Push(Item[string]{Value: "v2", Key: "value"})
	q.Push(Item[string]{Value: "v3", Key: "value"})

	want := []string{"joined", "left", "v3"}
	if got := drain(t, q); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	// Once popped, the key no longer coalesces.
	q.Push(Item[string]{Value: "v4", Key: "value"})
	if got := drain(t, q); !reflect.DeepEqual(got, []string{"v4"}) {
		t.Errorf("after pop = %v, want [v4]", got)
	}
}

func TestQueueCoalescedItemKeepsPushOrder(t *testing.T) {
	tests := []struct {
		name  string
		items []Item[string]
		want  []string
	}{
		{
			name: "keyed unkeyed keyed",
			items: []Item[string]{
				{Value: "v1", Key: "value"},
				{Value: "joined"},
				{Value: "v2", Key: "value"},
			},
			want: []string{"joined", "v2"},
		},
		{
			name: "other keys untouched",
			items: []Item[string]{
				{Value: "a1", Key: "a"},
				{Value: "b1", Key: "b"},
				{Value: "a2", Key: "a"},
			},
			want: []string{"b1", "a2"},
		},
		{
			name: "high lane replacement",
			items: []Item[string]{
				{Value: "h1", Lane: LaneHigh, Key: "h"},
				{Value: "n1"},
				{Value: "h2", Lane: LaneHigh, Key: "h"},
			},
			want: []string{"h2", "n1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue[string](Options{})
			for _, it := range tt.items {
				q.Push(it)
			}
			if got := drain(t, q); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueueBoundedCoalesceDoesNotDrop(t *testing.T) {
	q := NewQueue[string](Options{Limit: 2})
	q.Push(Item[string]{Value: "v1", Key: "value"})
	q.Push(Item[string]{Value: "joined"})
	q.Push(Item[string]{Value: "v2", Key: "value"})

	if q.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", q.Dropped())
	}
	want := []string{"joined", "v2"}
	if got := drain(t, q); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestQueueBoundedDropsOldestNormal(t *testing.T) {
	q := NewQueue[string](Options{Limit: 3})
	q.Push(Item[string]{Value: "hi", Lane: LaneHigh})
	q.Push(Item[string]{Value: "n1"})
	q.Push(Item[string]{Value: "n2"})
	q.Push(Item[string]{Value: "n3"})

	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	want := []string{"hi", "n2", "n3"}
	if got := drain(t, q); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestQueueCloseDrainsThenErrClosed(t *testing.T) {
	q := NewQueue[string](Options{})
	q.Push(Item[string]{Value: "last"})
	q.Close()

	if q.Push(Item[string]{Value: "late"}) {
		t.Error("Push() after Close = true, want false")
	}
	v, err := q.Pop(context.Background())
	if err != nil || v != "last" {
		t.Fatalf("Pop() = %q, %v; want last, nil", v, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Pop() error = %v, want ErrClosed", err)
	}
}

func TestQueueDiscard(t *testing.T) {
	q := NewQueue[string](Options{})
	q.Push(Item[string]{Value: "pending"})
	q.Discard()
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Pop() error = %v, want ErrClosed", err)
	}
	if !q.Closed() {
		t.Error("Closed() = false after Discard")
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue[int](Options{})
	got := make(chan int, 1)
	go func() {
		v, _ := q.Pop(context.Background())
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Item[int]{Value: 42})

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("Pop() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() did not wake up")
	}
}

func TestQueuePopContextCancel(t *testing.T) {
	q := NewQueue[int](Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pop() error = %v, want DeadlineExceeded", err)
	}
}

func TestQueueConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 200
	q := NewQueue[[2]int](Options{Ordered: true})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(Item[[2]int]{Value: [2]int{p, i}})
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	next := make([]int, producers)
	for {
		v, err := q.Pop(context.Background())
		if err != nil {
			break
		}
		if v[1] != next[v[0]] {
			t.Fatalf("producer %d: got %d, want %d", v[0], v[1], next[v[0]])
		}
		next[v[0]]++
	}
	for p, n := range next {
		if n != perProducer {
			t.Errorf("producer %d delivered %d, want %d", p, n, perProducer)
		}
	}
}
