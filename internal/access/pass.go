package access

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// OneTimeScanLimit covers one entry and one exit scan.
const OneTimeScanLimit uint32 = 2

var (
	ErrUnknownPassType   = errors.New("unknown pass type")
	ErrVisitDateRequired = errors.New("visit_date is required for one_time passes")
	ErrVisitDateInPast   = errors.New("visit_date is in the past")
	ErrInvalidVisitDate  = errors.New("visit_date must be YYYY-MM-DD")
)

// PassPolicy holds the tunables of pass issuance.
type PassPolicy struct {
	Location     *time.Location // calendar of one_time visit days
	FrequentDays int            // length of a frequent pass
	SessionCap   int            // active+approved passes per session
	AutoApprove  bool           // issue passes already approved
}

// DefaultPassPolicy mirrors the production defaults.
func DefaultPassPolicy() PassPolicy {
	return PassPolicy{Location: time.UTC, FrequentDays: 30, SessionCap: 3, AutoApprove: true}
}

// Window is a pass validity interval, both ends inclusive.
type Window struct {
	From  time.Time
	Until time.Time
}

// ParseVisitDate parses a YYYY-MM-DD day in loc.
func ParseVisitDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, ErrInvalidVisitDate
	}
	return d, nil
}

// ComputeWindow returns the validity window and scan quota for a new
// pass.  visitDate is only read for one_time passes.
func (p PassPolicy) ComputeWindow(passType string, visitDate *time.Time, now time.Time) (Window, *uint32, error) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	switch passType {
	case model.PassOneTime:
		if visitDate == nil {
			return Window{}, nil, ErrVisitDateRequired
		}
		d := visitDate.In(loc)
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
		if end.Before(now) {
			return Window{}, nil, ErrVisitDateInPast
		}
		limit := OneTimeScanLimit
		return Window{From: start, Until: end}, &limit, nil
	case model.PassFrequent:
		days := p.FrequentDays
		if days <= 0 {
			days = 30
		}
		return Window{From: now, Until: now.AddDate(0, 0, days)}, nil, nil
	}
	return Window{}, nil, fmt.Errorf("%w: %q", ErrUnknownPassType, passType)
}

// NewScanToken returns an unguessable pass token: a nanosecond
// timestamp followed by 128 random bits.
func NewScanToken(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("GP%x%s", now.UnixNano(), strings.ToUpper(random))
}

// InitialStatus returns the status and approval time of a new pass.
func (p PassPolicy) InitialStatus(now time.Time) (string, *time.Time) {
	if p.AutoApprove {
		t := now
		return model.PassApproved, &t
	}
	return model.PassPending, nil
}
