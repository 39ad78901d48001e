package model

import "time"

// GuestLog is one access decision for a guest.  Granted check-ins open
// a row (CurrentlyInside=true) that the matching check-out closes;
// denials are written closed with a reason.  At most one row per guest
// is open at a time.
type GuestLog struct {
	ID              uint64     `json:"id"`                      // guest_logs.id
	GuestID         uint64     `json:"guest_id"`                // guest_logs.guest_id
	SessionID       uint64     `json:"session_id"`              // guest_logs.session_id
	HospitalID      uint64     `json:"hospital_id"`             // guest_logs.hospital_id
	ActorID         uint64     `json:"actor_id"`                // guest_logs.actor_id
	ActorRole       string     `json:"actor_role"`              // guest_logs.actor_role
	EntryTime       time.Time  `json:"entry_time"`              // guest_logs.entry_time
	ExitTime        *time.Time `json:"exit_time"`               // guest_logs.exit_time (nullable)
	CurrentlyInside bool       `json:"currently_inside"`        // guest_logs.currently_inside
	AccessGranted   bool       `json:"access_granted"`          // guest_logs.access_granted
	DenialReason    *string    `json:"denial_reason,omitempty"` // guest_logs.denial_reason (nullable)
	Notes           *string    `json:"notes,omitempty"`         // guest_logs.notes (nullable)
}

// GuestLogView joins a log row with the guest and room it refers to.
type GuestLogView struct {
	GuestLog
	GuestName  string `json:"guest_name"`
	RoomNumber string `json:"room_number"`
}

// QrScan is the append-only audit row written for every security scan
// decision.
type QrScan struct {
	ID         uint64    `json:"id"`                  // qr_scans.id
	GuestID    uint64    `json:"guest_id"`            // qr_scans.guest_id
	SessionID  uint64    `json:"session_id"`          // qr_scans.session_id
	HospitalID uint64    `json:"hospital_id"`         // qr_scans.hospital_id
	SecurityID uint64    `json:"security_id"`         // qr_scans.security_id
	QRCode     string    `json:"qr_code"`             // qr_scans.qr_code
	Action     string    `json:"action"`              // qr_scans.action
	Granted    bool      `json:"granted"`             // qr_scans.granted
	Reason     *string   `json:"reason,omitempty"`    // qr_scans.reason (nullable)
	DeviceID   *string   `json:"device_id,omitempty"` // qr_scans.device_id (nullable)
	ScannedAt  time.Time `json:"scanned_at"`          // qr_scans.scanned_at
}
