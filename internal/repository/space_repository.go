package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/parkline/tonpark/internal/model"
)

// SpaceRepo provides data access to the parking_spaces table.  The
// engine holds the authoritative in-memory state and writes through
// here after every transition; List is used once at boot to
// rehydrate.
type SpaceRepo struct {
	db *sql.DB
}

// NewSpaceRepo returns a SpaceRepo bound to the provided database.
func NewSpaceRepo(db *sql.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// List returns every space with its persisted state.  Timestamps are
// stored and returned in UTC.
func (r *SpaceRepo) List(ctx context.Context) ([]model.ParkingSpace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, zone_id, status, plate, reserved_at, deadline, occupied_since, payment_hash
		   FROM parking_spaces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spaces []model.ParkingSpace
	for rows.Next() {
		var (
			s             model.ParkingSpace
			status        string
			plate, txHash sql.NullString
			reservedAt    sql.NullTime
			deadline      sql.NullTime
			occupiedSince sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.ZoneID, &status, &plate, &reservedAt, &deadline, &occupiedSince, &txHash); err != nil {
			return nil, err
		}
		s.Status = model.SpaceStatus(status)
		s.Plate = plate.String
		s.PaymentHash = txHash.String
		s.ReservedAt = nullableTime(reservedAt)
		s.Deadline = nullableTime(deadline)
		s.OccupiedSince = nullableTime(occupiedSince)
		spaces = append(spaces, s)
	}
	return spaces, rows.Err()
}

// SaveState writes the full state row for one space.  It returns
// ErrSpaceNotFound when the space id has no row, which indicates the
// engine and the database have diverged.
func (r *SpaceRepo) SaveState(ctx context.Context, s *model.ParkingSpace) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_spaces
		    SET status = ?, plate = ?, reserved_at = ?, deadline = ?, occupied_since = ?, payment_hash = ?
		  WHERE id = ?`,
		string(s.Status), nullString(s.Plate), nullTimeArg(s.ReservedAt), nullTimeArg(s.Deadline),
		nullTimeArg(s.OccupiedSince), nullString(s.PaymentHash), s.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// Zero rows affected is fine when the row already holds the same
	// values (MySQL reports no change); probe existence to tell the
	// two cases apart.
	if n == 0 {
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM parking_spaces WHERE id = ?`, s.ID).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return ErrSpaceNotFound
			}
			return err
		}
	}
	return nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
