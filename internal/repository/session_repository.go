package repository

import (
	"context"
	"database/sql"

	"github.com/parkline/tonpark/internal/model"
)

// SessionRepo persists client sessions for audit.  The in-memory
// registry is authoritative; these writes are best effort and the
// registry logs rather than fails when they do not land.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Insert stores a freshly admitted session.
func (r *SessionRepo) Insert(ctx context.Context, s *model.ClientSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_sessions (id, plate, space_id, status, started_at, reserved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Plate, s.SpaceID, string(s.Status), s.StartedAt.UTC(), s.ReservedAt.UTC())
	return err
}

// UpdateStatus moves a session between the reserved and occupied
// states.
func (r *SessionRepo) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE client_sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session on completion, cancellation or expiry.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM client_sessions WHERE id = ?`, id)
	return err
}
