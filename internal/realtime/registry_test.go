package realtime

import "testing"

func TestRegistryRegisterAndSubscribers(t *testing.T) {
	reg := NewRegistry()
	a := &Client{id: "a"}
	b := &Client{id: "b"}

	reg.Register(7, a)
	reg.Register(7, b)

	if got := reg.Count(7); got != 2 {
		t.Fatalf("Count(7) = %d, want 2", got)
	}
	if id, ok := reg.ContractOf(a); !ok || id != 7 {
		t.Fatalf("ContractOf(a) = %d, %v", id, ok)
	}
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	a := &Client{id: "a"}

	reg.Register(7, a)
	reg.Register(7, a)

	if got := reg.Count(7); got != 1 {
		t.Fatalf("Count(7) = %d, want 1", got)
	}
}

func TestRegistryRegisterMovesBetweenContracts(t *testing.T) {
	reg := NewRegistry()
	a := &Client{id: "a"}

	reg.Register(7, a)
	reg.Register(9, a)

	if got := reg.Count(7); got != 0 {
		t.Fatalf("Count(7) = %d, want 0 after move", got)
	}
	if got := reg.Count(9); got != 1 {
		t.Fatalf("Count(9) = %d, want 1", got)
	}
	if id, _ := reg.ContractOf(a); id != 9 {
		t.Fatalf("ContractOf(a) = %d, want 9", id)
	}
}

func TestRegistryUnregisterUnknownIsNoOp(t *testing.T) {
	reg := NewRegistry()
	a := &Client{id: "a"}

	reg.Unregister(7, a)

	reg.Register(7, a)
	reg.Unregister(9, a)
	if got := reg.Count(7); got != 1 {
		t.Fatalf("Count(7) = %d, want 1 after unrelated unregister", got)
	}
}

func TestRegistryRemovesEmptySets(t *testing.T) {
	reg := NewRegistry()
	a := &Client{id: "a"}

	reg.Register(7, a)
	reg.Unregister(7, a)

	if _, ok := reg.subs[7]; ok {
		t.Fatal("expected subscription set for 7 to be removed")
	}
	if subs := reg.Subscribers(7); subs != nil {
		t.Fatalf("Subscribers(7) = %v, want nil", subs)
	}
}
