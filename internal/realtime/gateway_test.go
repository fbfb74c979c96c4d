package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeDocumentStore struct {
	mu      sync.Mutex
	applied []string
	fail    error
	block   chan struct{} // when set, writes wait here until it is closed
}

func (f *fakeDocumentStore) ApplyContentChange(ctx context.Context, contractID int64, content string, wordCount int) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, fmt.Sprintf("%d:%s:%d", contractID, content, wordCount))
	return nil
}

func (f *fakeDocumentStore) contents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func TestGatewayAppliesJobsInOrder(t *testing.T) {
	store := &fakeDocumentStore{}
	gateway := NewGateway(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	done := func(error) { wg.Done() }

	for _, job := range []struct {
		content string
		words   int
	}{{"first", 1}, {"second", 1}, {"third wins", 2}} {
		if err := gateway.Apply(7, job.content, job.words, done); err != nil {
			t.Fatalf("apply %q: %v", job.content, err)
		}
	}
	wg.Wait()

	got := store.contents()
	want := []string{"7:first:1", "7:second:1", "7:third wins:2"}
	if len(got) != len(want) {
		t.Fatalf("applied %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("applied[%d] = %s, want %s (order must match enqueue order)", i, got[i], want[i])
		}
	}
}

func TestGatewayReportsFailureThroughCallback(t *testing.T) {
	store := &fakeDocumentStore{fail: errors.New("db down")}
	gateway := NewGateway(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	result := make(chan error, 1)
	if err := gateway.Apply(7, "content", 1, func(err error) { result <- err }); err != nil {
		t.Fatalf("apply: %v", err)
	}

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected error from failing store")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job callback")
	}
}

func TestGatewayNilCallback(t *testing.T) {
	store := &fakeDocumentStore{}
	gateway := NewGateway(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	if err := gateway.Apply(7, "fire and forget", 3, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.contents()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job with nil callback was never applied")
}

func TestGatewayRejectsWhenQueueFull(t *testing.T) {
	// No worker running, so the queue only fills.
	gateway := NewGateway(&fakeDocumentStore{})

	var err error
	for i := 0; err == nil && i < 10_000; i++ {
		err = gateway.Apply(7, "pending", 1, nil)
	}
	if !errors.Is(err, ErrSaveQueueFull) {
		t.Fatalf("expected ErrSaveQueueFull, got %v", err)
	}
}
