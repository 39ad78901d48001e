package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

var (
	ErrSessionNotFound   = errors.New("patient session not found")
	ErrSessionNotActive  = errors.New("patient session is not active")
	ErrGuestLimitReached = errors.New("maximum active guests reached for this session")
	ErrPassNotPending    = errors.New("guest pass is not pending")
	ErrOtherHospital     = errors.New("guest pass belongs to another hospital")
)

// tokenAttempts bounds retries when a generated scan token collides.
const tokenAttempts = 3

// IssueRequest describes a pass to issue.
type IssueRequest struct {
	SessionID    uint64
	GuestName    string
	GuestPhone   string
	Relationship *string
	PassType     string
	VisitDate    *time.Time
}

// PassService issues guest passes and records admin decisions on them.
type PassService struct {
	store  PassStore
	policy access.PassPolicy
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewPassService builds the service.
func NewPassService(store PassStore, policy access.PassPolicy, log logrus.FieldLogger) *PassService {
	return &PassService{store: store, policy: policy, log: log, now: time.Now}
}

// Policy returns the issuance policy in effect.
func (s *PassService) Policy() access.PassPolicy { return s.policy }

// IssueGuestPass creates a pass for the session.  The session row is
// locked so concurrent issuance cannot exceed the per-session cap.
func (s *PassService) IssueGuestPass(ctx context.Context, in IssueRequest) (model.GuestPass, error) {
	now := s.now().UTC()
	window, limit, err := s.policy.ComputeWindow(in.PassType, in.VisitDate, now)
	if err != nil {
		return model.GuestPass{}, err
	}
	status, approvedAt := s.policy.InitialStatus(now)

	var g model.GuestPass
	err = s.store.InTx(ctx, func(tx PassTx) error {
		session, err := tx.LockSession(ctx, in.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if !session.Active() {
			return ErrSessionNotActive
		}
		if status == model.PassApproved {
			if err := s.checkCap(ctx, tx, session.ID, now); err != nil {
				return err
			}
		}
		g = model.GuestPass{
			SessionID:    session.ID,
			HospitalID:   session.HospitalID,
			GuestName:    strings.TrimSpace(in.GuestName),
			GuestPhone:   strings.TrimSpace(in.GuestPhone),
			Relationship: in.Relationship,
			PassType:     in.PassType,
			ValidFrom:    window.From,
			ValidUntil:   window.Until,
			QRScanLimit:  limit,
			Status:       status,
			IsActive:     true,
			ApprovedAt:   approvedAt,
			CreatedAt:    now,
		}
		for i := 0; i < tokenAttempts; i++ {
			g.QRCode = access.NewScanToken(now)
			err = tx.CreateGuest(ctx, &g)
			if !errors.Is(err, repository.ErrDuplicate) {
				break
			}
		}
		return err
	})
	if err != nil {
		return model.GuestPass{}, err
	}
	s.log.WithFields(logrus.Fields{
		"guest_id": g.ID, "session_id": g.SessionID, "pass_type": g.PassType, "status": g.Status,
	}).Info("guest pass issued")
	return g, nil
}

func (s *PassService) checkCap(ctx context.Context, tx PassTx, sessionID uint64, now time.Time) error {
	n, err := tx.CountActiveApproved(ctx, sessionID, now)
	if err != nil {
		return err
	}
	if s.policy.SessionCap > 0 && n >= s.policy.SessionCap {
		return ErrGuestLimitReached
	}
	return nil
}

// Approve marks a pending pass approved.  The cap is checked again
// because other passes may have been approved since issuance.
func (s *PassService) Approve(ctx context.Context, hospitalID, guestID, adminID uint64) (model.GuestPass, error) {
	return s.decide(ctx, hospitalID, guestID, adminID, model.PassApproved)
}

// Reject marks a pending pass rejected.
func (s *PassService) Reject(ctx context.Context, hospitalID, guestID, adminID uint64) (model.GuestPass, error) {
	return s.decide(ctx, hospitalID, guestID, adminID, model.PassRejected)
}

func (s *PassService) decide(ctx context.Context, hospitalID, guestID, adminID uint64, status string) (model.GuestPass, error) {
	now := s.now().UTC()
	var g model.GuestPass
	err := s.store.InTx(ctx, func(tx PassTx) error {
		// Session before guest, the order discharge locks them in.
		peek, err := tx.GetGuest(ctx, guestID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGuestNotFound
		}
		if err != nil {
			return err
		}
		if peek.HospitalID != hospitalID {
			return ErrOtherHospital
		}
		session, err := tx.LockSession(ctx, peek.SessionID)
		if err != nil {
			return err
		}
		if g, err = tx.LockGuest(ctx, guestID); err != nil {
			return err
		}
		if g.Status != model.PassPending || !g.IsActive {
			return ErrPassNotPending
		}
		if status == model.PassApproved {
			if !session.Active() {
				return ErrSessionNotActive
			}
			if err := s.checkCap(ctx, tx, session.ID, now); err != nil {
				return err
			}
		}
		if err := tx.SetGuestStatus(ctx, g.ID, status, adminID, now); err != nil {
			return err
		}
		g.Status = status
		g.ApprovedByAdminID = &adminID
		if status == model.PassApproved {
			g.ApprovedAt = &now
		}
		return nil
	})
	if err != nil {
		return model.GuestPass{}, err
	}
	s.log.WithFields(logrus.Fields{"guest_id": g.ID, "admin_id": adminID, "status": status}).Info("guest pass decided")
	return g, nil
}
