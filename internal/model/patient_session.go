package model

import "time"

// Session status values.
const (
	SessionActive     = "active"
	SessionDischarged = "discharged"
)

// PatientSession represents one hospital stay.  A patient has at most
// one active session; the room of an active session is occupied.
//
// Fields:
//
//	ID            – primary key identifier.
//	PatientUserID – the PATIENT user admitted.
//	HospitalID    – tenant.
//	WingID        – wing of the room (denormalized for security scope checks).
//	RoomID        – occupied room.
//	Status        – active or discharged.
//	StartDate     – admission time.
//	EndDate       – discharge time (nil while active).
//	AdmittedBy    – staff user who admitted the patient.
type PatientSession struct {
	ID            uint64     `json:"id"`                    // patient_sessions.id
	PatientUserID uint64     `json:"patient_user_id"`       // patient_sessions.patient_user_id
	HospitalID    uint64     `json:"hospital_id"`           // patient_sessions.hospital_id
	WingID        uint64     `json:"wing_id"`               // patient_sessions.wing_id
	RoomID        uint64     `json:"room_id"`               // patient_sessions.room_id
	Status        string     `json:"status"`                // patient_sessions.status
	StartDate     time.Time  `json:"start_date"`            // patient_sessions.start_date
	EndDate       *time.Time `json:"end_date,omitempty"`    // patient_sessions.end_date (nullable)
	AdmittedBy    *uint64    `json:"admitted_by,omitempty"` // patient_sessions.admitted_by (nullable)
}

// Active reports whether the stay is still running.
func (s PatientSession) Active() bool { return s.Status == SessionActive }
