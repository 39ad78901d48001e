package access

import (
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// Request carries everything Evaluate needs.  Session is nil when the
// guest's session row could not be found.  SectionReachesRoom is only
// read for nurses and must say whether section_rooms contains
// (Actor.SectionID, Session.RoomID).  Inside is the guest's present
// state derived from its open log row.
type Request struct {
	Actor              Actor
	Action             Action
	Guest              model.GuestPass
	Session            *model.PatientSession
	SectionReachesRoom bool
	Inside             bool
	Now                time.Time
}

// Decision is the outcome of Evaluate.  A denial is a normal result,
// not an error, and must be logged by the caller.
type Decision struct {
	Granted bool
	Reason  Reason
	Guest   model.GuestPass
	Session *model.PatientSession
}

func deny(r Request, reason Reason) Decision {
	return Decision{Reason: reason, Guest: r.Guest, Session: r.Session}
}

// Evaluate applies the access checks in order and stops at the first
// failure.
func Evaluate(r Request) Decision {
	if r.Session == nil || !r.Session.Active() {
		return deny(r, ReasonSessionNotActive)
	}
	if !InScope(r.Actor, *r.Session, r.SectionReachesRoom) {
		return deny(r, ReasonAccessDenied)
	}
	if r.Guest.Status != model.PassApproved || !r.Guest.IsActive {
		return deny(r, ReasonPassNotApproved)
	}
	if !WithinWindow(r.Guest, r.Now) {
		return deny(r, ReasonPassOutsideWindow)
	}
	switch r.Action {
	case CheckIn:
		if r.Guest.QuotaExhausted() {
			return deny(r, ReasonScanLimitExceeded)
		}
		if r.Inside {
			return deny(r, ReasonAlreadyInside)
		}
	case CheckOut:
		if !r.Inside {
			return deny(r, ReasonNotInside)
		}
	default:
		return deny(r, ReasonAccessDenied)
	}
	return Decision{Granted: true, Guest: r.Guest, Session: r.Session}
}

// InScope reports whether the actor may act on guests of session s.
func InScope(a Actor, s model.PatientSession, sectionReachesRoom bool) bool {
	if a.HospitalID == 0 || a.HospitalID != s.HospitalID {
		return false
	}
	switch {
	case a.IsNurse():
		return a.SectionID != 0 && sectionReachesRoom
	case a.IsSecurity():
		return a.WingID == 0 || a.WingID == s.WingID
	}
	return false
}

// WithinWindow reports whether now lies in [ValidFrom, ValidUntil].
func WithinWindow(g model.GuestPass, now time.Time) bool {
	return !now.Before(g.ValidFrom) && !now.After(g.ValidUntil)
}
