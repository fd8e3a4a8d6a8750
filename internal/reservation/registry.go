package reservation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parkline/tonpark/internal/model"
)

// SessionStore persists sessions for audit purposes.  Persistence is
// best effort: the in-memory registry is authoritative for the
// one-session-per-plate invariant, and a store failure must never
// block a reservation.
type SessionStore interface {
	Insert(ctx context.Context, s *model.ClientSession) error
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
	Delete(ctx context.Context, id string) error
}

// Registry enforces the single-active-session-per-client invariant.
// The plate to session mapping has at most one entry per plate at all
// times.  Begin is a single atomic check-and-insert: callers must
// never probe Lookup first and insert afterwards, that pattern is
// exactly the race this type exists to close.
type Registry struct {
	mu      sync.Mutex
	byPlate map[string]*model.ClientSession
	store   SessionStore // nil disables persistence
}

// NewRegistry creates an empty registry.  store may be nil.
func NewRegistry(store SessionStore) *Registry {
	return &Registry{byPlate: make(map[string]*model.ClientSession), store: store}
}

// Begin admits a new session for the plate, atomically checking that
// none exists.  On conflict it returns a DuplicateSessionError naming
// the space the existing session claims.
func (r *Registry) Begin(ctx context.Context, plate, spaceID string, reservedAt time.Time) (model.ClientSession, error) {
	r.mu.Lock()
	if existing, ok := r.byPlate[plate]; ok {
		other := existing.SpaceID
		r.mu.Unlock()
		return model.ClientSession{}, &DuplicateSessionError{Plate: plate, SpaceID: other}
	}
	sess := &model.ClientSession{
		ID:         uuid.NewString(),
		Plate:      plate,
		SpaceID:    spaceID,
		Status:     model.SessionReserved,
		StartedAt:  reservedAt,
		ReservedAt: reservedAt,
	}
	r.byPlate[plate] = sess
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Insert(ctx, sess); err != nil {
			log.Printf("session-registry: persist insert for plate %s failed: %v", plate, err)
		}
	}
	return *sess, nil
}

// MarkOccupied flips the plate's session to the occupied state.  A
// missing session is ignored; the engine validates ownership before
// calling.
func (r *Registry) MarkOccupied(ctx context.Context, plate string) {
	r.mu.Lock()
	sess, ok := r.byPlate[plate]
	if ok {
		sess.Status = model.SessionOccupied
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, sess.ID, model.SessionOccupied); err != nil {
			log.Printf("session-registry: persist status for plate %s failed: %v", plate, err)
		}
	}
}

// End removes the plate's session, if any.  Safe to call for plates
// without a session; completion, cancellation and sweeper expiry all
// funnel through here.
func (r *Registry) End(ctx context.Context, plate string) {
	r.mu.Lock()
	sess, ok := r.byPlate[plate]
	if ok {
		delete(r.byPlate, plate)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, sess.ID); err != nil {
			log.Printf("session-registry: persist delete for plate %s failed: %v", plate, err)
		}
	}
}

// Lookup returns a copy of the plate's session.
func (r *Registry) Lookup(plate string) (model.ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byPlate[plate]
	if !ok {
		return model.ClientSession{}, false
	}
	return *sess, true
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPlate)
}
