// Package queue defines message payloads exchanged over the message
// broker and the background consumer that audits them.
package queue

// Space lifecycle event names.  One event is published for every
// transition the engine performs; the notification service consumes
// them to push updates to clients.
const (
	EventReserved  = "space.reserved"
	EventOccupied  = "space.occupied"
	EventReleased  = "space.released"
	EventCancelled = "space.cancelled"
	EventExpired   = "space.expired"
)

// SpaceEvent is published whenever a space changes state.  It carries
// enough information for downstream consumers to notify the client or
// log the transition without querying the primary database.
type SpaceEvent struct {
	Event      string `json:"event"`
	SpaceID    string `json:"space_id"`
	ZoneID     string `json:"zone_id"`
	Plate      string `json:"plate"`
	SessionID  string `json:"session_id,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	Deadline   string `json:"deadline,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
