// Package queue defines message payloads exchanged over the message broker.
package queue

// GuestAccessQueue is the durable queue that carries access decisions.
const GuestAccessQueue = "guest.access"

// GuestAccessEvent is published after every committed access decision,
// granted or denied.  It carries enough for downstream consumers to
// audit or notify without querying the primary database.
type GuestAccessEvent struct {
	LogID      uint64 `json:"log_id"`
	GuestID    uint64 `json:"guest_id"`
	GuestName  string `json:"guest_name"`
	SessionID  uint64 `json:"session_id"`
	HospitalID uint64 `json:"hospital_id"`
	ActorID    uint64 `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Action     string `json:"action"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
