// Package access holds the guest access rules: who may let a guest in
// or out, how a pass window and quota are computed, and the reasons a
// request is turned down.  Nothing in this package touches storage.
package access

// Reason is the machine readable cause of a denied request.  Reasons
// are stored verbatim in guest_logs.denial_reason and qr_scans.reason.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonSessionNotActive  Reason = "SESSION_NOT_ACTIVE"
	ReasonAccessDenied      Reason = "ACCESS_DENIED"
	ReasonPassNotApproved   Reason = "PASS_NOT_APPROVED"
	ReasonPassOutsideWindow Reason = "PASS_EXPIRED_OR_NOT_YET_VALID"
	ReasonScanLimitExceeded Reason = "SCAN_LIMIT_EXCEEDED"
	ReasonAlreadyInside     Reason = "ALREADY_INSIDE"
	ReasonNotInside         Reason = "NOT_INSIDE"
	ReasonNoOpenLog         Reason = "NO_OPEN_LOG"
	ReasonGuestLimitReached Reason = "GUEST_LIMIT_REACHED"
)

var messages = map[Reason]string{
	ReasonSessionNotActive:  "patient session is not active",
	ReasonAccessDenied:      "guest is outside your assigned area",
	ReasonPassNotApproved:   "guest pass is not approved",
	ReasonPassOutsideWindow: "guest pass is expired or not yet valid",
	ReasonScanLimitExceeded: "guest pass scan limit reached",
	ReasonAlreadyInside:     "guest is already inside",
	ReasonNotInside:         "guest is not inside",
	ReasonNoOpenLog:         "no open entry found for guest",
	ReasonGuestLimitReached: "maximum active guests reached for this session",
}

// Message returns a human readable description of r.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return string(r)
}

// Action is what an actor asks to do with a guest.
type Action string

const (
	CheckIn  Action = "check-in"
	CheckOut Action = "check-out"
)

// ParseAction accepts the wire spellings used by scanners and the web UI.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "check-in", "checkin", "check_in", "entry", "in":
		return CheckIn, true
	case "check-out", "checkout", "check_out", "exit", "out":
		return CheckOut, true
	}
	return "", false
}
