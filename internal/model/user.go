package model

import "time"

// Role names stored in users.role and in the JWT "role" claim.
const (
	RoleSuperAdmin    = "SUPER_ADMIN"
	RoleHospitalAdmin = "HOSPITAL_ADMIN"
	RoleNurse         = "NURSE"
	RoleSecurity      = "SECURITY"
	RolePatient       = "PATIENT"
)

// User represents an application user record as stored in the
// `users` table.  Staff accounts log in with email and password;
// patients and bystanders log in with a phone OTP and have no
// password hash.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name.
//	Email        – unique email address (nil for phone-only users).
//	Phone        – unique phone number (nil for email-only users).
//	PasswordHash – bcrypt hashed password (empty for OTP users).
//	Role         – one of the Role* constants.
//	HospitalID   – tenant of the user (nil for super admins).
//	SectionID    – nursing section of a nurse.
//	WingID       – assigned wing of a security officer (nil = whole hospital).
//	IsActive     – whether the account is active.
type User struct {
	ID           uint64    `json:"id"`                    // users.id
	Name         string    `json:"name"`                  // users.name
	Email        *string   `json:"email,omitempty"`       // users.email (nullable)
	Phone        *string   `json:"phone,omitempty"`       // users.phone (nullable)
	PasswordHash string    `json:"-"`                     // users.password_hash
	Role         string    `json:"role"`                  // users.role
	HospitalID   *uint64   `json:"hospital_id,omitempty"` // users.hospital_id (nullable)
	SectionID    *uint64   `json:"section_id,omitempty"`  // users.section_id (nullable)
	WingID       *uint64   `json:"wing_id,omitempty"`     // users.wing_id (nullable)
	IsActive     bool      `json:"is_active"`             // users.is_active
	CreatedAt    time.Time `json:"created_at"`            // users.created_at
	UpdatedAt    time.Time `json:"updated_at"`            // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// DeviceToken is a push token registered by a mobile client.
type DeviceToken struct {
	ID        uint64    `json:"id"`         // device_tokens.id
	UserID    uint64    `json:"user_id"`    // device_tokens.user_id
	Token     string    `json:"token"`      // device_tokens.token
	Platform  string    `json:"platform"`   // device_tokens.platform (android|ios|web)
	CreatedAt time.Time `json:"created_at"` // device_tokens.created_at
}
