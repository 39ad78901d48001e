package model

import "time"

// Pass types.
const (
	PassOneTime  = "one_time"
	PassFrequent = "frequent"
)

// Pass lifecycle statuses.
const (
	PassPending  = "pending"
	PassApproved = "approved"
	PassRejected = "rejected"
)

// GuestPass identifies a person allowed to visit the patient of one
// session.  Rows are never deleted; deactivation clears IsActive.
//
// Fields:
//
//	ID                – primary key identifier.
//	SessionID         – owning patient session.
//	HospitalID        – tenant.
//	GuestName         – visitor name.
//	GuestPhone        – visitor phone.
//	Relationship      – relation to the patient (optional).
//	PassType          – one_time or frequent.
//	ValidFrom         – start of the validity window.
//	ValidUntil        – end of the validity window (inclusive).
//	QRCode            – opaque scan token printed in the QR image.
//	QRScanLimit       – check-in quota (nil = unlimited).
//	QRScansUsed       – check-ins consumed so far.
//	Status            – pending, approved or rejected.
//	IsActive          – false once the patient or a discharge revoked it.
//	ApprovedAt        – approval time.
//	ApprovedByAdminID – admin who approved (nil when auto-approved).
type GuestPass struct {
	ID                uint64     `json:"id"`                             // guests.id
	SessionID         uint64     `json:"session_id"`                     // guests.session_id
	HospitalID        uint64     `json:"hospital_id"`                    // guests.hospital_id
	GuestName         string     `json:"guest_name"`                     // guests.guest_name
	GuestPhone        string     `json:"guest_phone"`                    // guests.guest_phone
	Relationship      *string    `json:"relationship,omitempty"`         // guests.relationship (nullable)
	PassType          string     `json:"pass_type"`                      // guests.pass_type
	ValidFrom         time.Time  `json:"valid_from"`                     // guests.valid_from
	ValidUntil        time.Time  `json:"valid_until"`                    // guests.valid_until
	QRCode            string     `json:"qr_code"`                        // guests.qr_code
	QRScanLimit       *uint32    `json:"qr_scan_limit"`                  // guests.qr_scan_limit (nullable)
	QRScansUsed       uint32     `json:"qr_scans_used"`                  // guests.qr_scans_used
	Status            string     `json:"status"`                         // guests.status
	IsActive          bool       `json:"is_active"`                      // guests.is_active
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`          // guests.approved_at (nullable)
	ApprovedByAdminID *uint64    `json:"approved_by_admin_id,omitempty"` // guests.approved_by_admin_id (nullable)
	CreatedAt         time.Time  `json:"created_at"`                     // guests.created_at
}

// QuotaExhausted reports whether a finite check-in quota is used up.
func (g GuestPass) QuotaExhausted() bool {
	return g.QRScanLimit != nil && g.QRScansUsed >= *g.QRScanLimit
}
