package realtime

import (
	"testing"
	"time"
)

func testClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestPresenceUpsertAndGet(t *testing.T) {
	store := NewPresenceStore()
	store.now = testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	rec := store.Upsert(3, 7, &Position{Line: 2, Character: 14}, true)
	if !rec.IsActive {
		t.Fatal("expected record to be active")
	}

	got, ok := store.Get(3, 7)
	if !ok {
		t.Fatal("expected record for (3, 7)")
	}
	if got.Position == nil || got.Position.Line != 2 {
		t.Fatalf("unexpected position: %+v", got.Position)
	}
}

func TestPresenceUpsertWithoutPositionKeepsLastKnown(t *testing.T) {
	store := NewPresenceStore()

	store.Upsert(3, 7, &Position{Line: 5, Character: 1}, true)
	rec := store.Upsert(3, 7, nil, true)

	if rec.Position == nil || rec.Position.Line != 5 {
		t.Fatalf("expected last-known position to survive, got %+v", rec.Position)
	}
}

func TestPresenceUpsertBumpsLastSeen(t *testing.T) {
	store := NewPresenceStore()
	store.now = testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	first := store.Upsert(3, 7, nil, true)
	second := store.Upsert(3, 7, nil, true)

	if !second.LastSeen.After(first.LastSeen) {
		t.Fatalf("LastSeen not bumped: %v -> %v", first.LastSeen, second.LastSeen)
	}
}

func TestPresenceListActiveFiltersByContractAndLiveness(t *testing.T) {
	store := NewPresenceStore()

	store.Upsert(1, 7, nil, true)
	store.Upsert(2, 7, nil, true)
	store.Upsert(3, 9, nil, true)
	store.MarkInactive(2, 7)

	active := store.ListActive(7)
	if len(active) != 1 || active[0].UserID != 1 {
		t.Fatalf("ListActive(7) = %+v, want only user 1", active)
	}
}

func TestPresenceMarkInactiveKeepsPosition(t *testing.T) {
	store := NewPresenceStore()

	store.Upsert(3, 7, &Position{Line: 8, Character: 0}, true)
	if !store.MarkInactive(3, 7) {
		t.Fatal("MarkInactive returned false for existing record")
	}

	rec, ok := store.Get(3, 7)
	if !ok || rec.IsActive {
		t.Fatalf("expected inactive record to survive: %+v, %v", rec, ok)
	}
	if rec.Position == nil || rec.Position.Line != 8 {
		t.Fatalf("expected position to survive disconnect, got %+v", rec.Position)
	}
}

func TestPresenceMarkInactiveMissingRecord(t *testing.T) {
	store := NewPresenceStore()
	if store.MarkInactive(3, 7) {
		t.Fatal("MarkInactive returned true for missing record")
	}
}
