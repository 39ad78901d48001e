package model

import "time"

// Hospital is the tenant boundary.  Every wing, room, section, staff
// member, session and guest belongs to exactly one hospital.
//
// Fields:
//
//	ID        – primary key identifier.
//	Name      – display name.
//	Address   – optional postal address.
//	Phone     – optional front desk number.
//	IsActive  – whether the hospital accepts logins.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Hospital struct {
	ID        uint64    `json:"id"`         // hospitals.id
	Name      string    `json:"name"`       // hospitals.name
	Address   *string   `json:"address"`    // hospitals.address (nullable)
	Phone     *string   `json:"phone"`      // hospitals.phone (nullable)
	IsActive  bool      `json:"is_active"`  // hospitals.is_active
	CreatedAt time.Time `json:"created_at"` // hospitals.created_at
	UpdatedAt time.Time `json:"updated_at"` // hospitals.updated_at
}

// Wing groups rooms of a hospital.  Security officers are assigned
// to at most one wing.
type Wing struct {
	ID         uint64    `json:"id"`          // wings.id
	HospitalID uint64    `json:"hospital_id"` // wings.hospital_id
	Name       string    `json:"name"`        // wings.name
	Floor      *int32    `json:"floor"`       // wings.floor (nullable)
	CreatedAt  time.Time `json:"created_at"`  // wings.created_at
}

// Room status values.
const (
	RoomAvailable   = "available"
	RoomOccupied    = "occupied"
	RoomMaintenance = "maintenance"
)

// Room is a bed or ward room.  Status flips between available and
// occupied only through session admit/discharge.
type Room struct {
	ID         uint64    `json:"id"`          // rooms.id
	HospitalID uint64    `json:"hospital_id"` // rooms.hospital_id
	WingID     uint64    `json:"wing_id"`     // rooms.wing_id
	RoomNumber string    `json:"room_number"` // rooms.room_number
	Status     string    `json:"status"`      // rooms.status
	CreatedAt  time.Time `json:"created_at"`  // rooms.created_at
}

// NursingSection is a nurse station.  The rooms it serves are stored in
// section_rooms and define which rooms a nurse of the section may act on.
type NursingSection struct {
	ID         uint64    `json:"id"`          // nursing_sections.id
	HospitalID uint64    `json:"hospital_id"` // nursing_sections.hospital_id
	Name       string    `json:"name"`        // nursing_sections.name
	RoomIDs    []uint64  `json:"room_ids"`    // section_rooms.room_id
	CreatedAt  time.Time `json:"created_at"`  // nursing_sections.created_at
}
