package repository

import (
	"context"
	"database/sql"

	"github.com/parkline/tonpark/internal/model"
)

// ZoneRepo reads zone reference data.  Zones are owned by the
// surrounding system and read-only to this service; they are loaded
// once at boot and handed to the engine.
type ZoneRepo struct {
	db *sql.DB
}

// NewZoneRepo returns a ZoneRepo bound to the provided database.
func NewZoneRepo(db *sql.DB) *ZoneRepo { return &ZoneRepo{db: db} }

// List returns all zones.  The is_premium column is normalized into a
// bool exactly here, at the ingestion boundary; no later code
// re-interprets the flag.
func (r *ZoneRepo) List(ctx context.Context) ([]model.Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, is_premium, hourly_rate_nano, max_duration_hours FROM zones ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Premium, &z.HourlyRateNano, &z.MaxDurationHours); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
