package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openTestQueue(t *testing.T, maxReceives int) (*SQLiteQueue, *fakeClock) {
	t.Helper()
	q, err := OpenSQLite(filepath.Join(t.TempDir(), "queue.db"), maxReceives)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	q.now = clock.Now
	return q, clock
}

func TestSQLiteSendReceiveAck(t *testing.T) {
	q, _ := openTestQueue(t, 5)
	ctx := context.Background()

	first, err := q.Send(ctx, []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := q.Send(ctx, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := q.Receive(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != first || string(msgs[0].Body) != `{"n":1}` {
		t.Fatalf("expected arrival order, got %+v", msgs[0])
	}
	if msgs[0].ReceiveCount != 1 || msgs[0].Receipt == "" {
		t.Fatalf("unexpected receive metadata %+v", msgs[0])
	}

	again, err := q.Receive(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected in-flight messages to stay hidden, got %d", len(again))
	}

	for _, msg := range msgs {
		if err := q.Ack(ctx, msg); err != nil {
			t.Fatalf("Ack: %v", err)
		}
	}
	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (Stats{}) {
		t.Fatalf("expected empty queue, got %+v", stats)
	}
}

func TestSQLiteVisibilityTimeoutRedelivers(t *testing.T) {
	q, clock := openTestQueue(t, 5)
	ctx := context.Background()

	if _, err := q.Send(ctx, []byte("job")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	first, err := q.Receive(ctx, 1, 15*time.Minute)
	if err != nil || len(first) != 1 {
		t.Fatalf("Receive: %v (%d)", err, len(first))
	}

	stats, _ := q.Stats(ctx)
	if stats.InFlight != 1 || stats.Ready != 0 {
		t.Fatalf("unexpected stats while in flight: %+v", stats)
	}

	clock.Advance(15 * time.Minute)
	second, err := q.Receive(ctx, 1, 15*time.Minute)
	if err != nil || len(second) != 1 {
		t.Fatalf("expected redelivery, got %v (%d)", err, len(second))
	}
	if second[0].ID != first[0].ID || second[0].ReceiveCount != 2 {
		t.Fatalf("unexpected redelivery %+v", second[0])
	}
	if second[0].Receipt == first[0].Receipt {
		t.Fatal("expected a fresh receipt on redelivery")
	}

	if err := q.Ack(ctx, first[0]); !errors.Is(err, ErrStaleReceipt) {
		t.Fatalf("expected stale receipt error, got %v", err)
	}
	if err := q.Ack(ctx, second[0]); err != nil {
		t.Fatalf("Ack with current receipt: %v", err)
	}
}

func TestSQLiteDeadLettersAfterMaxReceives(t *testing.T) {
	q, clock := openTestQueue(t, 2)
	ctx := context.Background()

	if _, err := q.Send(ctx, []byte("poison")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i := 0; i < 2; i++ {
		msgs, err := q.Receive(ctx, 1, time.Minute)
		if err != nil || len(msgs) != 1 {
			t.Fatalf("receive %d: %v (%d)", i, err, len(msgs))
		}
		clock.Advance(time.Minute)
	}

	msgs, err := q.Receive(ctx, 1, time.Minute)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected message to be dead-lettered, got %+v", msgs)
	}
	stats, _ := q.Stats(ctx)
	if stats.Dead != 1 || stats.Ready != 0 || stats.InFlight != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	dead, err := q.List(ctx, "dead")
	if err != nil || len(dead) != 1 || dead[0].ReceiveCount != 2 {
		t.Fatalf("unexpected dead list %+v (%v)", dead, err)
	}

	n, err := q.Redrive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Redrive: %d %v", n, err)
	}
	msgs, err = q.Receive(ctx, 1, time.Minute)
	if err != nil || len(msgs) != 1 || msgs[0].ReceiveCount != 1 {
		t.Fatalf("expected redriven message with reset count, got %+v (%v)", msgs, err)
	}
}

func TestSQLiteConcurrentReceiversNeverShare(t *testing.T) {
	q, _ := openTestQueue(t, 5)
	ctx := context.Background()
	const total = 20
	for i := 0; i < total; i++ {
		if _, err := q.Send(ctx, []byte("x")); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msgs, err := q.Receive(ctx, 3, time.Hour)
				if err != nil {
					t.Errorf("Receive: %v", err)
					return
				}
				if len(msgs) == 0 {
					return
				}
				mu.Lock()
				for _, m := range msgs {
					seen[m.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("expected %d distinct messages, got %d", total, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("message %s received %d times", id, n)
		}
	}
}

func TestSQLitePurge(t *testing.T) {
	q, _ := openTestQueue(t, 5)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := q.Send(ctx, []byte("x")); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if n, err := q.Purge(ctx, false); err != nil || n != 0 {
		t.Fatalf("expected no dead messages to purge, got %d %v", n, err)
	}
	if n, err := q.Purge(ctx, true); err != nil || n != 3 {
		t.Fatalf("expected 3 purged, got %d %v", n, err)
	}
	if _, err := q.List(ctx, "bogus"); err == nil {
		t.Fatal("expected unknown state error")
	}
}

func TestOpenSQLiteReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := OpenSQLite(path, 5)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := q.Send(context.Background(), []byte("persist")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = q.Close()

	reopened, err := OpenSQLite(path, 5)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), "")
	if err != nil || len(entries) != 1 || string(entries[0].Body) != "persist" {
		t.Fatalf("unexpected entries %+v (%v)", entries, err)
	}
}
