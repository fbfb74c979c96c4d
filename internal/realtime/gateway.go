package realtime

import (
	"context"
	"errors"
	"time"
)

// ErrSaveQueueFull is returned by Apply when the write queue is saturated.
// The caller decides how to surface it; the gateway never blocks the caller.
var ErrSaveQueueFull = errors.New("content save queue full")

// DocumentStore is the external collaborator that persists contract content.
// Implemented by app.Service over the Postgres store.
type DocumentStore interface {
	ApplyContentChange(ctx context.Context, contractID int64, content string, wordCount int) error
}

type saveJob struct {
	contractID int64
	content    string
	wordCount  int
	done       func(error)
}

// Gateway serializes content-change writes into the document store. Jobs are
// applied strictly in enqueue order, so the store ends up with the content of
// the last accepted change (last-write-wins, full replacement, no merge).
// Failures are reported through the job callback; the gateway never retries.
type Gateway struct {
	store   DocumentStore
	jobs    chan saveJob
	timeout time.Duration
}

func NewGateway(store DocumentStore) *Gateway {
	return &Gateway{
		store:   store,
		jobs:    make(chan saveJob, 64),
		timeout: 10 * time.Second,
	}
}

// Run drains the job queue until ctx is cancelled. In-flight writes are not
// cancelled by connection lifecycle events; they complete or fail on their
// own.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-g.jobs:
			writeCtx, cancel := context.WithTimeout(context.Background(), g.timeout)
			err := g.store.ApplyContentChange(writeCtx, job.contractID, job.content, job.wordCount)
			cancel()
			if job.done != nil {
				job.done(err)
			}
		}
	}
}

// Apply queues a full content replacement for contractID. The done callback
// runs on the gateway worker once the write completes or fails; callers that
// need loop affinity must re-enqueue from it. When the queue is saturated the
// job is rejected with ErrSaveQueueFull instead of blocking the caller.
func (g *Gateway) Apply(contractID int64, content string, wordCount int, done func(error)) error {
	select {
	case g.jobs <- saveJob{contractID: contractID, content: content, wordCount: wordCount, done: done}:
		return nil
	default:
		return ErrSaveQueueFull
	}
}
