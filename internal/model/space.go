package model

import "time"

// SpaceStatus enumerates the lifecycle states of a parking space.
// A space is either free, held by a reservation that has not been
// claimed yet, or physically occupied by the reserving vehicle.
type SpaceStatus string

const (
	StatusVacant   SpaceStatus = "VACANT"   // no occupant, no timestamps
	StatusReserved SpaceStatus = "RESERVED" // held by a plate until the deadline
	StatusOccupied SpaceStatus = "OCCUPIED" // vehicle has arrived; no deadline applies
)

// ParkingSpace is the unit of reservation.  Exactly one plate may
// claim a space at a time.  All mutation happens through the
// reservation engine; nothing else writes these fields.
//
// Invariant: Status == VACANT exactly when Plate, ReservedAt,
// Deadline and OccupiedSince are all empty; Status in
// {RESERVED, OCCUPIED} exactly when Plate is non-empty.
//
// Fields:
//  ID            – opaque space identifier.
//  ZoneID        – zone this space belongs to.
//  Status        – current lifecycle state.
//  Plate         – license plate of the occupant ("" when vacant).
//  ReservedAt    – when the active reservation was granted (nil when vacant).
//  Deadline      – ReservedAt + requested duration (nil when vacant).
//  OccupiedSince – when the vehicle arrived (nil unless occupied).
//  PaymentHash   – ledger transaction that unlocked this reservation
//                  ("" for free zones or when vacant).
type ParkingSpace struct {
	ID            string      // parking_spaces.id
	ZoneID        string      // parking_spaces.zone_id
	Status        SpaceStatus // parking_spaces.status
	Plate         string      // parking_spaces.plate (empty when vacant)
	ReservedAt    *time.Time  // parking_spaces.reserved_at (nullable)
	Deadline      *time.Time  // parking_spaces.deadline (nullable)
	OccupiedSince *time.Time  // parking_spaces.occupied_since (nullable)
	PaymentHash   string      // parking_spaces.payment_hash (empty when unpaid)
}

// Vacant reports whether the space currently has no claimant.
func (s *ParkingSpace) Vacant() bool { return s.Status == StatusVacant }

// ClearOccupancy resets the space to the vacant state, dropping the
// occupant and every reservation timestamp.  Idempotent.
func (s *ParkingSpace) ClearOccupancy() {
	s.Status = StatusVacant
	s.Plate = ""
	s.ReservedAt = nil
	s.Deadline = nil
	s.OccupiedSince = nil
	s.PaymentHash = ""
}
