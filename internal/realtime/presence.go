package realtime

import "time"

// PresenceRecord is one user's live editing state on one contract.
type PresenceRecord struct {
	UserID     int64     `json:"userId"`
	ContractID int64     `json:"contractId"`
	Position   *Position `json:"position,omitempty"`
	IsActive   bool      `json:"isActive"`
	LastSeen   time.Time `json:"lastSeen"`
}

type presenceKey struct {
	userID     int64
	contractID int64
}

// PresenceStore keeps last-known cursor position and liveness per
// (user, contract) pair. Disconnects flip the liveness flag rather than
// deleting the record, so last-known positions survive. Like the Registry it
// has a single writer: the router loop.
type PresenceStore struct {
	records map[presenceKey]PresenceRecord
	now     func() time.Time
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		records: make(map[presenceKey]PresenceRecord),
		now:     time.Now,
	}
}

// Upsert creates or refreshes the record for (userID, contractID) and always
// bumps LastSeen.
func (p *PresenceStore) Upsert(userID, contractID int64, pos *Position, active bool) PresenceRecord {
	key := presenceKey{userID: userID, contractID: contractID}
	rec := PresenceRecord{
		UserID:     userID,
		ContractID: contractID,
		Position:   pos,
		IsActive:   active,
		LastSeen:   p.now(),
	}
	if pos == nil {
		// A join without a position keeps whatever was last known.
		if prev, ok := p.records[key]; ok {
			rec.Position = prev.Position
		}
	}
	p.records[key] = rec
	return rec
}

// ListActive returns the records with the liveness flag set for contractID.
// Order is unspecified; callers must not depend on it.
func (p *PresenceStore) ListActive(contractID int64) []PresenceRecord {
	var out []PresenceRecord
	for key, rec := range p.records {
		if key.contractID == contractID && rec.IsActive {
			out = append(out, rec)
		}
	}
	return out
}

// MarkInactive flips the liveness flag for (userID, contractID). It returns
// false when no record exists, which is not an error: a client may disconnect
// before ever joining.
func (p *PresenceStore) MarkInactive(userID, contractID int64) bool {
	key := presenceKey{userID: userID, contractID: contractID}
	rec, ok := p.records[key]
	if !ok {
		return false
	}
	rec.IsActive = false
	rec.LastSeen = p.now()
	p.records[key] = rec
	return true
}

// Get returns the record for (userID, contractID) whether or not it is
// active.
func (p *PresenceStore) Get(userID, contractID int64) (PresenceRecord, bool) {
	rec, ok := p.records[presenceKey{userID: userID, contractID: contractID}]
	return rec, ok
}
