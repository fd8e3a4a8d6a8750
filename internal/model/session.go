package model

import "time"

// SessionStatus mirrors the subset of space states a client session
// can be in.  A session never outlives its space's claim.
type SessionStatus string

const (
	SessionReserved SessionStatus = "RESERVED" // reservation granted, vehicle not yet arrived
	SessionOccupied SessionStatus = "OCCUPIED" // vehicle parked on the space
)

// ClientSession is the client-visible record of one active
// reservation or occupancy.  At most one session exists per license
// plate at any instant; the session registry enforces this.
//
// Fields:
//  ID         – session identifier (UUID).
//  Plate      – license plate the session belongs to.
//  SpaceID    – space the session claims.
//  Status     – RESERVED or OCCUPIED, mirroring the space.
//  StartedAt  – when the session was admitted by the registry.
//  ReservedAt – reservation timestamp copied from the space.
type ClientSession struct {
	ID         string        // client_sessions.id
	Plate      string        // client_sessions.plate
	SpaceID    string        // client_sessions.space_id
	Status     SessionStatus // client_sessions.status
	StartedAt  time.Time     // client_sessions.started_at
	ReservedAt time.Time     // client_sessions.reserved_at
}
