package realtime

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Sender delivers outbound envelopes to one connected peer. Implementations
// must not block the caller; the websocket transport uses a buffered send
// channel and drops the connection when the peer cannot keep up.
type Sender interface {
	Send(Envelope)
}

// Client is the router-side record of one transport connection. It is created
// on transport accept and never persisted.
type Client struct {
	id         string
	sender     Sender
	userID     int64
	contractID int64
	joined     bool
	closed     bool
}

// ID returns the connection identifier, useful for logs.
func (c *Client) ID() string { return c.id }

// Mirror is the optional presence durability collaborator. Writes are
// best-effort: the router logs failures and carries on.
type Mirror interface {
	UpsertPresence(ctx context.Context, rec PresenceRecord) error
	RemovePresence(ctx context.Context, userID, contractID int64) error
}

// Router routes inbound events to state mutations and fans the resulting
// notifications out to every other subscriber of the same contract. All state
// (registry, presence) is owned by the router and mutated only from its Run
// loop, one event at a time to completion: two clients that observe a joined
// notification and then query presence can never see a half-applied join.
type Router struct {
	registry *Registry
	presence *PresenceStore
	gateway  *Gateway
	mirror   Mirror
	logger   *log.Logger

	events     chan func()
	mirrorJobs chan func(context.Context) error
	stopped    chan struct{}
	dropped    atomic.Uint64
	now        func() time.Time
}

func NewRouter(registry *Registry, presence *PresenceStore, gateway *Gateway) *Router {
	return &Router{
		registry: registry,
		presence: presence,
		gateway:  gateway,
		logger:     log.Default(),
		events:     make(chan func(), 256),
		mirrorJobs: make(chan func(context.Context) error, 256),
		stopped:    make(chan struct{}),
		now:        time.Now,
	}
}

// NewRouterWithMirror wires the presence durability collaborator in.
func NewRouterWithMirror(registry *Registry, presence *PresenceStore, gateway *Gateway, mirror Mirror) *Router {
	r := NewRouter(registry, presence, gateway)
	r.mirror = mirror
	return r
}

// Run executes queued events one at a time until ctx is cancelled. Events for
// different contracts share the same loop; there is no cross-document
// ordering guarantee beyond queue order.
func (r *Router) Run(ctx context.Context) {
	defer close(r.stopped)
	go r.mirrorLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.events:
			fn()
		}
	}
}

// mirrorLoop applies mirror writes one at a time, in enqueue order. A join
// followed by a quick close therefore upserts before it removes; unordered
// per-write goroutines could leave an active mirror record for a departed
// user until its TTL expired.
func (r *Router) mirrorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.mirrorJobs:
			opCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := job(opCtx); err != nil {
				r.logger.Printf("realtime: presence mirror write failed: %v", err)
			}
			cancel()
		}
	}
}

// Dropped reports how many inbound events were discarded for missing join
// identifiers or for arriving before a join. The silent-drop policy is kept,
// but it is observable here and in the log.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Attach creates the router-side record for a newly accepted transport
// connection.
func (r *Router) Attach(sender Sender) *Client {
	return &Client{id: uuid.NewString(), sender: sender}
}

// HandleFrame queues one raw inbound frame from c for processing.
func (r *Router) HandleFrame(c *Client, data []byte) {
	r.enqueue(func() { r.processFrame(c, data) })
}

// HandleClose queues the terminal close transition for c. Closing an
// already-closed connection is a no-op.
func (r *Router) HandleClose(c *Client) {
	r.enqueue(func() { r.processClose(c) })
}

func (r *Router) enqueue(fn func()) {
	select {
	case r.events <- fn:
	case <-r.stopped:
	}
}

func (r *Router) processFrame(c *Client, data []byte) {
	if c.closed {
		return
	}
	env, err := ParseInbound(data)
	if err != nil {
		// Malformed payloads go back to the sender only, never broadcast,
		// and the connection stays open.
		c.sender.Send(errorEnvelope(err.Error()))
		return
	}
	switch env.Type {
	case TypeJoin:
		r.processJoin(c, env)
	case TypeCursorMove:
		r.processCursorMove(c, env)
	case TypeContentChange:
		r.processContentChange(c, env)
	}
}

func (r *Router) processJoin(c *Client, env Envelope) {
	if env.UserID == 0 || env.ContractID == 0 {
		r.drop(c, "join missing userId or contractId")
		return
	}
	if c.joined && c.contractID != env.ContractID {
		// A connection edits one contract at a time; joining another one
		// leaves the previous contract first.
		r.leave(c)
	}
	c.userID = env.UserID
	c.contractID = env.ContractID
	c.joined = true

	r.registry.Register(env.ContractID, c)
	rec := r.presence.Upsert(env.UserID, env.ContractID, env.Position, true)
	r.mirrorUpsert(rec)

	r.broadcast(env.ContractID, c, Envelope{
		Type:       TypePresenceUpdate,
		Action:     ActionJoined,
		UserID:     env.UserID,
		ContractID: env.ContractID,
		Position:   rec.Position,
		Timestamp:  wireTime(r.now()),
	})

	// The joiner learns who is already editing: one joined notification per
	// active peer, so a fresh client can render presence without a separate
	// query.
	for _, peer := range r.presence.ListActive(env.ContractID) {
		if peer.UserID == env.UserID {
			continue
		}
		c.sender.Send(Envelope{
			Type:       TypePresenceUpdate,
			Action:     ActionJoined,
			UserID:     peer.UserID,
			ContractID: env.ContractID,
			Position:   peer.Position,
			Timestamp:  wireTime(r.now()),
		})
	}
}

func (r *Router) processCursorMove(c *Client, env Envelope) {
	if !c.joined {
		r.drop(c, "cursor_move before join")
		return
	}
	rec := r.presence.Upsert(c.userID, c.contractID, env.Position, true)
	r.mirrorUpsert(rec)

	r.broadcast(c.contractID, c, Envelope{
		Type:       TypeCursorUpdate,
		UserID:     c.userID,
		ContractID: c.contractID,
		Position:   env.Position,
		Timestamp:  wireTime(r.now()),
	})
}

func (r *Router) processContentChange(c *Client, env Envelope) {
	contractID := env.ContractID
	if contractID == 0 && c.joined {
		contractID = c.contractID
	}
	userID := env.UserID
	if userID == 0 && c.joined {
		userID = c.userID
	}
	if contractID == 0 {
		r.drop(c, "content_change without a target contract")
		return
	}
	content := *env.Content
	wordCount := env.WordCount

	// The persistence call must not stall the loop; the gateway worker posts
	// the outcome back here. Presence and registry state were not touched, so
	// a cursor_move on the same contract may run and broadcast while this
	// save is pending.
	err := r.gateway.Apply(contractID, content, wordCount, func(err error) {
		r.enqueue(func() {
			if err != nil {
				r.logger.Printf("realtime: content save failed for contract %d: %v", contractID, err)
				c.sender.Send(errorEnvelope("content update failed"))
				return
			}
			// Broadcast scope is all current subscribers of the target
			// contract except the originating connection.
			r.broadcast(contractID, c, Envelope{
				Type:       TypeContentUpdate,
				UserID:     userID,
				ContractID: contractID,
				Content:    &content,
				WordCount:  wordCount,
				Timestamp:  wireTime(r.now()),
			})
		})
	})
	if err != nil {
		// A saturated save queue gets the same treatment as a failed write:
		// the author hears about it, the loop keeps serving everyone else.
		r.logger.Printf("realtime: content save rejected for contract %d: %v", contractID, err)
		c.sender.Send(errorEnvelope("content update failed"))
	}
}

func (r *Router) processClose(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	if !c.joined {
		return
	}
	r.leave(c)
}

// leave marks presence inactive, unregisters the connection, and notifies the
// remaining subscribers of the contract it was editing.
func (r *Router) leave(c *Client) {
	contractID := c.contractID
	userID := c.userID
	c.joined = false

	r.presence.MarkInactive(userID, contractID)
	r.registry.Unregister(contractID, c)
	r.mirrorRemove(userID, contractID)

	r.broadcast(contractID, c, Envelope{
		Type:       TypePresenceUpdate,
		Action:     ActionLeft,
		UserID:     userID,
		ContractID: contractID,
		Timestamp:  wireTime(r.now()),
	})
}

func (r *Router) broadcast(contractID int64, exclude *Client, env Envelope) {
	for _, sub := range r.registry.Subscribers(contractID) {
		if sub == exclude {
			continue
		}
		sub.sender.Send(env)
	}
}

func (r *Router) drop(c *Client, reason string) {
	r.dropped.Add(1)
	r.logger.Printf("realtime: dropped event from %s: %s", c.id, reason)
}

func (r *Router) mirrorUpsert(rec PresenceRecord) {
	if r.mirror == nil {
		return
	}
	r.enqueueMirror(func(ctx context.Context) error {
		return r.mirror.UpsertPresence(ctx, rec)
	})
}

func (r *Router) mirrorRemove(userID, contractID int64) {
	if r.mirror == nil {
		return
	}
	r.enqueueMirror(func(ctx context.Context) error {
		return r.mirror.RemovePresence(ctx, userID, contractID)
	})
}

// enqueueMirror hands a write to the mirror worker without blocking the
// router loop. The mirror is best-effort durability, so a saturated queue
// sheds the write rather than stalling anyone.
func (r *Router) enqueueMirror(job func(context.Context) error) {
	select {
	case r.mirrorJobs <- job:
	default:
		r.logger.Printf("realtime: presence mirror queue full, write dropped")
	}
}
