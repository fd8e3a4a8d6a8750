package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/payment"
	"github.com/parkline/tonpark/internal/queue"
	"github.com/parkline/tonpark/internal/repository"
)

// SpaceStore persists space state after every transition.  The
// in-memory engine state is authoritative for serialization; the
// store is the durable copy the service rehydrates from at boot.
type SpaceStore interface {
	SaveState(ctx context.Context, s *model.ParkingSpace) error
}

// ConsumedStore records which ledger transactions have unlocked a
// reservation.  Consume must be atomic: when two callers present the
// same hash concurrently, exactly one call succeeds and the other
// gets repository.ErrPaymentConsumed.
type ConsumedStore interface {
	Consume(ctx context.Context, p *model.VerifiedPayment, spaceID string) error
	Release(ctx context.Context, txHash string) error
}

// Verifier decides whether a payment reference satisfies an
// expectation.  Satisfied by *payment.Verifier.
type Verifier interface {
	Verify(ctx context.Context, exp payment.Expectation) payment.Result
}

// Publisher emits space lifecycle events.  Publishing is best effort;
// a broker failure never rolls back a transition.
type Publisher interface {
	PublishSpaceEvent(ctx context.Context, ev queue.SpaceEvent) error
}

// ReserveRequest carries everything needed to reserve a space.
type ReserveRequest struct {
	SpaceID       string
	Plate         string
	DurationHours int
	PaymentRef    model.PaymentReference // required for premium zones
	SenderWallet  string                 // optional declared payer wallet
}

// spaceState pairs a space with its exclusive lock.  Every mutation
// of the space happens with mu held, and every transition re-checks
// its precondition after acquiring it: check-act-under-lock, never
// check-then-lock.
type spaceState struct {
	mu    sync.Mutex
	space model.ParkingSpace
}

// Config wires an Engine.  Payments, Store and Events may be nil when
// the corresponding concern is disabled (tests, free-only lots).
type Config struct {
	Spaces   []model.ParkingSpace
	Zones    []model.Zone
	Registry *Registry
	Verifier Verifier
	Payments ConsumedStore
	Store    SpaceStore
	Events   Publisher
	// Wallet is the operator account premium payments must be sent
	// to, in any textual encoding.
	Wallet string
	// Now overrides the clock (tests).  Defaults to time.Now in UTC.
	Now func() time.Time
}

// Engine is the reservation state machine.  It owns every parking
// space: Vacant -> Reserved -> Occupied -> Vacant on the normal path,
// with cancel and expire edges out of Reserved and complete out of
// either claimed state.  Premium zones additionally require a
// verified ledger payment before the Reserved transition, and a
// payment hash unlocks at most one reservation ever.
type Engine struct {
	mu     sync.RWMutex // guards the spaces map itself, not the per-space state
	spaces map[string]*spaceState
	zones  map[string]model.Zone

	registry *Registry
	verifier Verifier
	payments ConsumedStore
	store    SpaceStore
	events   Publisher
	wallet   string
	now      func() time.Time
}

// New builds an engine over the given spaces and zones.
func New(cfg Config) *Engine {
	e := &Engine{
		spaces:   make(map[string]*spaceState, len(cfg.Spaces)),
		zones:    make(map[string]model.Zone, len(cfg.Zones)),
		registry: cfg.Registry,
		verifier: cfg.Verifier,
		payments: cfg.Payments,
		store:    cfg.Store,
		events:   cfg.Events,
		wallet:   cfg.Wallet,
		now:      cfg.Now,
	}
	if e.registry == nil {
		e.registry = NewRegistry(nil)
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	for _, z := range cfg.Zones {
		e.zones[z.ID] = z
	}
	for _, s := range cfg.Spaces {
		e.spaces[s.ID] = &spaceState{space: s}
	}
	return e
}

// Registry exposes the session registry the engine admits sessions
// through, for handlers that need direct lookups.
func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) state(id string) (*spaceState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.spaces[id]
	return st, ok
}

// Space returns a copy of the space's current state.
func (e *Engine) Space(id string) (model.ParkingSpace, bool) {
	st, ok := e.state(id)
	if !ok {
		return model.ParkingSpace{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.space, true
}

// Zone returns the zone reference data for the given id.
func (e *Engine) Zone(id string) (model.Zone, bool) {
	z, ok := e.zones[id]
	return z, ok
}

// Snapshot returns copies of every space.  Used by the sweeper and
// the space list endpoint; the copies are safe to read without locks.
func (e *Engine) Snapshot() []model.ParkingSpace {
	e.mu.RLock()
	states := make([]*spaceState, 0, len(e.spaces))
	for _, st := range e.spaces {
		states = append(states, st)
	}
	e.mu.RUnlock()

	out := make([]model.ParkingSpace, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.space)
		st.mu.Unlock()
	}
	return out
}

// ValidateDeepLink checks the obligation behind deep-link requests:
// the space must exist and be vacant.  Parsing the link itself is the
// caller's business.
func (e *Engine) ValidateDeepLink(spaceID string) error {
	sp, ok := e.Space(spaceID)
	if !ok {
		return ErrSpaceNotFound
	}
	if !sp.Vacant() {
		return ErrNotVacant
	}
	return nil
}

// Reserve grants the plate an exclusive hold on the space until
// now + duration.  For premium zones the payment reference is
// verified against the ledger first, outside the space lock, so a
// slow indexer round-trip never blocks other operations on the
// space.  The consumed hash is recorded before the space mutates;
// a concurrent caller reusing the same hash loses on that insert.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (model.ClientSession, error) {
	var none model.ClientSession

	st, ok := e.state(req.SpaceID)
	if !ok {
		return none, ErrSpaceNotFound
	}
	zone, ok := e.zones[st.zoneID()]
	if !ok {
		return none, fmt.Errorf("space %s references unknown zone %s", req.SpaceID, st.zoneID())
	}
	if req.DurationHours < 1 {
		return none, ErrInvalidDuration
	}
	if req.DurationHours > zone.MaxDurationHours {
		return none, ErrDurationTooLong
	}

	// Fail fast before any network call.  The authoritative check is
	// repeated under the lock below.
	if sp, _ := e.Space(req.SpaceID); !sp.Vacant() {
		return none, ErrNotVacant
	}

	var verified *model.VerifiedPayment
	if zone.Premium {
		if req.PaymentRef == "" {
			return none, ErrPaymentRequired
		}
		if e.verifier == nil {
			return none, &PaymentPendingError{Reason: "payment verification disabled"}
		}
		res := e.verifier.Verify(ctx, payment.Expectation{
			Ref:        req.PaymentRef,
			AmountNano: zone.PriceFor(req.DurationHours),
			Recipient:  e.wallet,
			Sender:     req.SenderWallet,
		})
		switch res.Status {
		case payment.StatusPending:
			return none, &PaymentPendingError{Reason: res.Reason}
		case payment.StatusRejected:
			return none, &PaymentRejectedError{Reason: res.Reason}
		}
		verified = res.Payment
	}

	now := e.now()
	deadline := now.Add(time.Duration(req.DurationHours) * time.Hour)

	st.mu.Lock()
	defer st.mu.Unlock()

	// Re-check under the lock.  A verification result arriving after
	// someone else claimed the space (or after the client cancelled
	// and re-reserved) must find the precondition gone and no-op.
	if !st.space.Vacant() {
		return none, ErrNotVacant
	}

	sess, err := e.registry.Begin(ctx, req.Plate, req.SpaceID, now)
	if err != nil {
		return none, err
	}

	if verified != nil && e.payments != nil {
		if err := e.payments.Consume(ctx, verified, req.SpaceID); err != nil {
			e.registry.End(ctx, req.Plate)
			if errors.Is(err, repository.ErrPaymentConsumed) {
				return none, &PaymentRejectedError{Reason: "payment already used for another reservation"}
			}
			return none, fmt.Errorf("recording payment: %w", err)
		}
	}

	prev := st.space
	st.space.Status = model.StatusReserved
	st.space.Plate = req.Plate
	st.space.ReservedAt = &now
	st.space.Deadline = &deadline
	st.space.OccupiedSince = nil
	if verified != nil {
		st.space.PaymentHash = verified.TxHash
	}

	if err := e.persist(ctx, &st.space); err != nil {
		st.space = prev
		e.registry.End(ctx, req.Plate)
		if verified != nil && e.payments != nil {
			if relErr := e.payments.Release(ctx, verified.TxHash); relErr != nil {
				log.Printf("engine: releasing payment %s after failed persist: %v", verified.TxHash, relErr)
			}
		}
		return none, err
	}

	e.publish(ctx, queue.SpaceEvent{
		Event:      queue.EventReserved,
		SpaceID:    req.SpaceID,
		ZoneID:     zone.ID,
		Plate:      req.Plate,
		SessionID:  sess.ID,
		TxHash:     st.space.PaymentHash,
		Deadline:   deadline.Format(time.RFC3339),
		OccurredAt: now.Format(time.RFC3339),
	})
	return sess, nil
}

// MarkOccupied records the vehicle's arrival.  Only the plate holding
// the reservation may occupy the space, and only from Reserved.
func (e *Engine) MarkOccupied(ctx context.Context, spaceID, plate string) error {
	st, ok := e.state(spaceID)
	if !ok {
		return ErrSpaceNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.space.Status != model.StatusReserved {
		return ErrNotReserved
	}
	if st.space.Plate != plate {
		return ErrNotOwner
	}

	now := e.now()
	prev := st.space
	st.space.Status = model.StatusOccupied
	st.space.OccupiedSince = &now

	if err := e.persist(ctx, &st.space); err != nil {
		st.space = prev
		return err
	}

	e.registry.MarkOccupied(ctx, plate)
	e.publish(ctx, queue.SpaceEvent{
		Event:      queue.EventOccupied,
		SpaceID:    spaceID,
		ZoneID:     st.space.ZoneID,
		Plate:      plate,
		OccurredAt: now.Format(time.RFC3339),
	})
	return nil
}

// Complete releases the space from Reserved or Occupied and ends the
// plate's session.  Calling it on an already vacant space is a no-op;
// the operation always succeeds short of a persistence failure.
func (e *Engine) Complete(ctx context.Context, spaceID string) error {
	return e.release(ctx, spaceID, "", queue.EventReleased, false)
}

// Cancel abandons a reservation before arrival.  It is Complete
// restricted to the Reserved state and to the owning plate.
func (e *Engine) Cancel(ctx context.Context, spaceID, plate string) error {
	st, ok := e.state(spaceID)
	if !ok {
		return ErrSpaceNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.space.Status != model.StatusReserved {
		return ErrNotReserved
	}
	if st.space.Plate != plate {
		return ErrNotOwner
	}
	return e.clearLocked(ctx, st, queue.EventCancelled)
}

// Expire reclaims a reserved space whose deadline has passed.  It is
// invoked only by the sweeper.  It is a no-op on any space not in
// Reserved state and when now is not past the deadline; occupied
// spaces never expire, only the reservation hold has a deadline.
func (e *Engine) Expire(ctx context.Context, spaceID string, now time.Time) error {
	st, ok := e.state(spaceID)
	if !ok {
		return ErrSpaceNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.space.Status != model.StatusReserved {
		return nil
	}
	if st.space.Deadline == nil || !now.After(*st.space.Deadline) {
		return nil
	}
	return e.clearLocked(ctx, st, queue.EventExpired)
}

// release implements Complete.  When requireOwner is set the plate
// must match (unused today, kept for symmetry with Cancel).
func (e *Engine) release(ctx context.Context, spaceID, plate, event string, requireOwner bool) error {
	st, ok := e.state(spaceID)
	if !ok {
		return ErrSpaceNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.space.Vacant() {
		return nil
	}
	if requireOwner && st.space.Plate != plate {
		return ErrNotOwner
	}
	return e.clearLocked(ctx, st, event)
}

// clearLocked transitions the space back to Vacant and ends the
// occupant's session.  Caller holds st.mu.
func (e *Engine) clearLocked(ctx context.Context, st *spaceState, event string) error {
	prev := st.space
	plate := st.space.Plate
	st.space.ClearOccupancy()

	if err := e.persist(ctx, &st.space); err != nil {
		st.space = prev
		return err
	}

	e.registry.End(ctx, plate)
	e.publish(ctx, queue.SpaceEvent{
		Event:      event,
		SpaceID:    st.space.ID,
		ZoneID:     st.space.ZoneID,
		Plate:      plate,
		OccurredAt: e.now().Format(time.RFC3339),
	})
	return nil
}

func (e *Engine) persist(ctx context.Context, s *model.ParkingSpace) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveState(ctx, s); err != nil {
		return fmt.Errorf("persisting space %s: %w", s.ID, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, ev queue.SpaceEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishSpaceEvent(ctx, ev); err != nil {
		log.Printf("engine: publishing %s for space %s failed: %v", ev.Event, ev.SpaceID, err)
	}
}

func (st *spaceState) zoneID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.space.ZoneID
}
