package access

import (
	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// Actor is the authenticated caller together with the scope it was
// granted.  It is built once per request from the user row and passed
// explicitly to everything that makes an access decision.
type Actor struct {
	UserID     uint64
	Role       string
	HospitalID uint64
	SectionID  uint64 // nurses only
	WingID     uint64 // security only; zero means every wing of the hospital
}

// ActorFromUser derives the scope of u.  It returns false for users
// that cannot hold an access scope (no hospital, nurse without a
// section).
func ActorFromUser(u model.User) (Actor, bool) {
	a := Actor{UserID: u.ID, Role: u.Role}
	if u.HospitalID != nil {
		a.HospitalID = *u.HospitalID
	}
	if u.SectionID != nil {
		a.SectionID = *u.SectionID
	}
	if u.WingID != nil {
		a.WingID = *u.WingID
	}
	switch u.Role {
	case model.RoleSuperAdmin:
		return a, true
	case model.RoleNurse:
		return a, a.HospitalID != 0 && a.SectionID != 0
	default:
		return a, a.HospitalID != 0
	}
}

// IsNurse reports whether the actor acts through a nursing section.
func (a Actor) IsNurse() bool { return a.Role == model.RoleNurse }

// IsSecurity reports whether the actor is a security officer.
func (a Actor) IsSecurity() bool { return a.Role == model.RoleSecurity }

// CanRecordAccess reports whether the role may check guests in or out.
func (a Actor) CanRecordAccess() bool { return a.IsNurse() || a.IsSecurity() }
