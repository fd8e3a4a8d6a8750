package model

// Zone is a named group of parking spaces sharing a rate and premium
// policy.  Zones are reference data: they are loaded once at startup
// and never mutated by the reservation core.
//
// Fields:
//  ID               – zone identifier.
//  Name             – display name shown by the UI layer.
//  Premium          – true when a verified ledger payment is required
//                     before a reservation is granted.  The flag is
//                     normalized to a bool exactly once, at the
//                     repository boundary.
//  HourlyRateNano   – price per hour in nanotons.
//  MaxDurationHours – upper bound on the requested reservation length.
type Zone struct {
	ID               string // zones.id
	Name             string // zones.name
	Premium          bool   // zones.is_premium
	HourlyRateNano   int64  // zones.hourly_rate_nano
	MaxDurationHours int    // zones.max_duration_hours
}

// PriceFor returns the expected payment in nanotons for a reservation
// of the given length.
func (z Zone) PriceFor(hours int) int64 {
	return z.HourlyRateNano * int64(hours)
}
