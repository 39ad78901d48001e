// Package service holds the transactional use cases of guest access:
// recording check-ins and check-outs, and issuing and approving guest
// passes.  Storage is reached through the AccessStore and PassStore
// interfaces; SQLStore implements both on MySQL.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/queue"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

var (
	ErrGuestNotFound = errors.New("guest not found")
	ErrNotPermitted  = errors.New("role may not record guest access")
	ErrInvalidTarget = errors.New("guest id or qr code is required")
	ErrInvalidAction = errors.New("action must be check-in or check-out")
)

// Target names the guest of an access request.  Exactly one of the
// fields is set: nurses act on a guest id, scanners send the QR token.
type Target struct {
	GuestID uint64
	QRCode  string
}

// ScanMeta is optional request metadata stored with the decision.
type ScanMeta struct {
	DeviceID *string
	Notes    *string
}

// Result is the outcome of RequestAccess.  LogID points at the
// guest_logs row that recorded it, granted or not.
type Result struct {
	Granted   bool
	Reason    access.Reason
	LogID     uint64
	Timestamp time.Time
	Guest     model.GuestPass
}

// AccessService records guest entries and exits.
type AccessService struct {
	store   AccessStore
	events  EventPublisher
	log     logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// NewAccessService builds the service.  events may be nil.
func NewAccessService(store AccessStore, events EventPublisher, log logrus.FieldLogger, timeout time.Duration) *AccessService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccessService{store: store, events: events, log: log, timeout: timeout, now: time.Now}
}

// guardError carries the reason of a write guard that lost a race.
type guardError struct{ reason access.Reason }

func (e guardError) Error() string { return e.reason.Message() }

func guardReason(err error) (access.Reason, bool) {
	switch {
	case errors.Is(err, repository.ErrAlreadyInside):
		return access.ReasonAlreadyInside, true
	case errors.Is(err, repository.ErrScanLimit):
		return access.ReasonScanLimitExceeded, true
	case errors.Is(err, repository.ErrNoOpenLog):
		return access.ReasonNoOpenLog, true
	}
	return access.ReasonNone, false
}

// RequestAccess decides a check-in or check-out and records the
// decision.  A denial is a Result, not an error; errors mean nothing was
// recorded (unknown guest, bad input, storage failure).
func (s *AccessService) RequestAccess(ctx context.Context, actor access.Actor, target Target, action access.Action, meta ScanMeta) (Result, error) {
	if !actor.CanRecordAccess() {
		return Result{}, ErrNotPermitted
	}
	if action != access.CheckIn && action != access.CheckOut {
		return Result{}, ErrInvalidAction
	}
	target.QRCode = strings.TrimSpace(target.QRCode)
	if target.GuestID == 0 && target.QRCode == "" {
		return Result{}, ErrInvalidTarget
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res     Result
		dec     access.Decision
		guest   model.GuestPass
		session *model.PatientSession
	)
	now := s.now().UTC()
	err := s.store.InTx(ctx, func(tx AccessTx) error {
		var err error
		if target.QRCode != "" {
			guest, err = tx.LockGuestByQR(ctx, target.QRCode)
		} else {
			guest, err = tx.LockGuestByID(ctx, target.GuestID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGuestNotFound
		}
		if err != nil {
			return err
		}
		// Guests of other hospitals do not exist for this caller.
		if guest.HospitalID != actor.HospitalID {
			return ErrGuestNotFound
		}
		if session, err = tx.Session(ctx, guest.SessionID); err != nil {
			return err
		}
		reach := false
		if actor.IsNurse() && session != nil && actor.SectionID != 0 {
			if reach, err = tx.SectionReachesRoom(ctx, actor.SectionID, session.RoomID); err != nil {
				return err
			}
		}
		inside, err := tx.IsInside(ctx, guest.ID)
		if err != nil {
			return err
		}
		dec = access.Evaluate(access.Request{
			Actor: actor, Action: action, Guest: guest, Session: session,
			SectionReachesRoom: reach, Inside: inside, Now: now,
		})
		if !dec.Granted {
			res, err = s.recordDenial(ctx, tx, actor, action, guest, dec.Reason, meta, now)
			return err
		}
		res, err = s.recordGrant(ctx, tx, actor, action, guest, meta, now)
		if reason, ok := guardReason(err); ok {
			return guardError{reason}
		}
		return err
	})

	var ge guardError
	if errors.As(err, &ge) {
		// A concurrent request won; record the loser's denial on its own.
		err = s.store.InTx(ctx, func(tx AccessTx) error {
			var err error
			res, err = s.recordDenial(ctx, tx, actor, action, guest, ge.reason, meta, now)
			return err
		})
	}
	if err != nil {
		if !errors.Is(err, ErrGuestNotFound) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"actor_id": actor.UserID, "guest_id": target.GuestID, "action": action,
			}).Error("access: request failed")
		}
		return Result{}, err
	}

	res.Guest = guest
	s.log.WithFields(logrus.Fields{
		"actor_id":   actor.UserID,
		"actor_role": actor.Role,
		"guest_id":   guest.ID,
		"action":     action,
		"granted":    res.Granted,
		"reason":     res.Reason,
		"log_id":     res.LogID,
	}).Info("access decision")
	s.publish(actor, action, guest, res, meta)
	return res, nil
}

func (s *AccessService) recordGrant(ctx context.Context, tx AccessTx, actor access.Actor, action access.Action, g model.GuestPass, meta ScanMeta, now time.Time) (Result, error) {
	res := Result{Granted: true, Timestamp: now}
	switch action {
	case access.CheckIn:
		if err := tx.ConsumeScan(ctx, g.ID); err != nil {
			return res, err
		}
		l := &model.GuestLog{
			GuestID: g.ID, SessionID: g.SessionID, HospitalID: g.HospitalID,
			ActorID: actor.UserID, ActorRole: actor.Role, EntryTime: now,
			CurrentlyInside: true, AccessGranted: true, Notes: meta.Notes,
		}
		if err := tx.InsertLog(ctx, l); err != nil {
			return res, err
		}
		res.LogID = l.ID
	case access.CheckOut:
		id, err := tx.CloseOpenLog(ctx, g.ID, now, meta.Notes)
		if err != nil {
			return res, err
		}
		res.LogID = id
	}
	return res, s.recordScan(ctx, tx, actor, action, g, true, access.ReasonNone, meta, now)
}

func (s *AccessService) recordDenial(ctx context.Context, tx AccessTx, actor access.Actor, action access.Action, g model.GuestPass, reason access.Reason, meta ScanMeta, now time.Time) (Result, error) {
	r := string(reason)
	exit := now
	l := &model.GuestLog{
		GuestID: g.ID, SessionID: g.SessionID, HospitalID: g.HospitalID,
		ActorID: actor.UserID, ActorRole: actor.Role, EntryTime: now, ExitTime: &exit,
		DenialReason: &r, Notes: meta.Notes,
	}
	if err := tx.InsertLog(ctx, l); err != nil {
		return Result{}, err
	}
	res := Result{Reason: reason, LogID: l.ID, Timestamp: now}
	return res, s.recordScan(ctx, tx, actor, action, g, false, reason, meta, now)
}

// recordScan appends the qr_scans audit row; only security scans have one.
func (s *AccessService) recordScan(ctx context.Context, tx AccessTx, actor access.Actor, action access.Action, g model.GuestPass, granted bool, reason access.Reason, meta ScanMeta, now time.Time) error {
	if !actor.IsSecurity() {
		return nil
	}
	sc := &model.QrScan{
		GuestID: g.ID, SessionID: g.SessionID, HospitalID: g.HospitalID, SecurityID: actor.UserID,
		QRCode: g.QRCode, Action: string(action), Granted: granted, DeviceID: meta.DeviceID, ScannedAt: now,
	}
	if reason != access.ReasonNone {
		r := string(reason)
		sc.Reason = &r
	}
	return tx.InsertScan(ctx, sc)
}

func (s *AccessService) publish(actor access.Actor, action access.Action, g model.GuestPass, res Result, meta ScanMeta) {
	if s.events == nil {
		return
	}
	ev := queue.GuestAccessEvent{
		LogID: res.LogID, GuestID: g.ID, GuestName: g.GuestName, SessionID: g.SessionID,
		HospitalID: g.HospitalID, ActorID: actor.UserID, ActorRole: actor.Role, Action: string(action),
		Granted: res.Granted, Reason: string(res.Reason), OccurredAt: res.Timestamp.Format(time.RFC3339Nano),
	}
	if meta.DeviceID != nil {
		ev.DeviceID = *meta.DeviceID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.events.PublishGuestAccess(ctx, ev)
	}()
}
