package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"contractops/api/internal/realtime"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, time.Minute), mr
}

func TestUpsertAndListActive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, rec := range []realtime.PresenceRecord{
		{UserID: 1, ContractID: 7, IsActive: true, Position: &realtime.Position{Line: 3}},
		{UserID: 2, ContractID: 7, IsActive: true},
		{UserID: 3, ContractID: 9, IsActive: true},
	} {
		if err := store.UpsertPresence(ctx, rec); err != nil {
			t.Fatalf("upsert user %d: %v", rec.UserID, err)
		}
	}

	records, err := store.ListActive(ctx, 7)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListActive(7) returned %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.ContractID != 7 {
			t.Fatalf("record for wrong contract: %+v", rec)
		}
	}
}

func TestListActiveSkipsInactiveRecords(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPresence(ctx, realtime.PresenceRecord{UserID: 1, ContractID: 7, IsActive: false}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := store.ListActive(ctx, 7)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no active records, got %+v", records)
	}
}

func TestRemovePresence(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPresence(ctx, realtime.PresenceRecord{UserID: 1, ContractID: 7, IsActive: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.RemovePresence(ctx, 1, 7); err != nil {
		t.Fatalf("remove: %v", err)
	}

	records, err := store.ListActive(ctx, 7)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected record gone, got %+v", records)
	}

	// Removing twice is a no-op.
	if err := store.RemovePresence(ctx, 1, 7); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPresenceExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPresence(ctx, realtime.PresenceRecord{UserID: 1, ContractID: 7, IsActive: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	records, err := store.ListActive(ctx, 7)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected record expired, got %+v", records)
	}
}
