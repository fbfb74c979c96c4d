package realtime

// Registry tracks which live connections are subscribed to which contract.
// It is mutated only from the router loop (single writer), so it carries no
// lock. A connection belongs to at most one subscription set at a time;
// registering it under a new contract moves it. Empty sets are removed.
type Registry struct {
	subs  map[int64]map[*Client]struct{}
	docOf map[*Client]int64
}

func NewRegistry() *Registry {
	return &Registry{
		subs:  make(map[int64]map[*Client]struct{}),
		docOf: make(map[*Client]int64),
	}
}

// Register adds c to the subscription set for contractID. Registering an
// already-registered connection is a no-op.
func (r *Registry) Register(contractID int64, c *Client) {
	if current, ok := r.docOf[c]; ok {
		if current == contractID {
			return
		}
		r.Unregister(current, c)
	}
	set, ok := r.subs[contractID]
	if !ok {
		set = make(map[*Client]struct{})
		r.subs[contractID] = set
	}
	set[c] = struct{}{}
	r.docOf[c] = contractID
}

// Unregister removes c from the subscription set for contractID. Unknown
// connections are a no-op, which keeps cleanup after an abrupt disconnect
// idempotent.
func (r *Registry) Unregister(contractID int64, c *Client) {
	set, ok := r.subs[contractID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	delete(r.docOf, c)
	if len(set) == 0 {
		delete(r.subs, contractID)
	}
}

// Subscribers returns the live connections subscribed to contractID. Order is
// unspecified.
func (r *Registry) Subscribers(contractID int64) []*Client {
	set := r.subs[contractID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ContractOf reports which contract c is currently subscribed to.
func (r *Registry) ContractOf(c *Client) (int64, bool) {
	id, ok := r.docOf[c]
	return id, ok
}

// Count returns the number of subscribers for contractID.
func (r *Registry) Count(contractID int64) int {
	return len(r.subs[contractID])
}
