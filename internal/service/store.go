package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// AccessTx is the transactional view RequestAccess works through.  The
// guest row stays locked from Lock* until the transaction ends.
type AccessTx interface {
	LockGuestByID(ctx context.Context, id uint64) (model.GuestPass, error)
	LockGuestByQR(ctx context.Context, qrCode string) (model.GuestPass, error)
	// Session returns nil when the session row does not exist.
	Session(ctx context.Context, id uint64) (*model.PatientSession, error)
	SectionReachesRoom(ctx context.Context, sectionID, roomID uint64) (bool, error)
	IsInside(ctx context.Context, guestID uint64) (bool, error)
	ConsumeScan(ctx context.Context, guestID uint64) error
	InsertLog(ctx context.Context, l *model.GuestLog) error
	CloseOpenLog(ctx context.Context, guestID uint64, exit time.Time, notes *string) (uint64, error)
	InsertScan(ctx context.Context, s *model.QrScan) error
}

// AccessStore runs fn in a transaction that commits when fn returns nil
// and rolls back otherwise.
type AccessStore interface {
	InTx(ctx context.Context, fn func(AccessTx) error) error
}

// PassTx is the transactional view of pass issuance and approval.
type PassTx interface {
	LockSession(ctx context.Context, id uint64) (model.PatientSession, error)
	GetGuest(ctx context.Context, id uint64) (model.GuestPass, error)
	LockGuest(ctx context.Context, id uint64) (model.GuestPass, error)
	CountActiveApproved(ctx context.Context, sessionID uint64, at time.Time) (int, error)
	CreateGuest(ctx context.Context, g *model.GuestPass) error
	SetGuestStatus(ctx context.Context, id uint64, status string, adminID uint64, at time.Time) error
}

// PassStore is the PassTx counterpart of AccessStore.
type PassStore interface {
	InTx(ctx context.Context, fn func(PassTx) error) error
}

// SQLStore implements AccessStore and PassStore on MySQL.
type SQLStore struct {
	db     *sql.DB
	guests *repository.GuestRepo
	logs   *repository.GuestLogRepo
	scans  *repository.QrScanRepo
}

// NewSQLStore wires the repositories used by the access write path.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:     db,
		guests: repository.NewGuestRepo(db),
		logs:   repository.NewGuestLogRepo(db),
		scans:  repository.NewQrScanRepo(db),
	}
}

// Access adapts s to AccessStore.
func (s *SQLStore) Access() AccessStore { return sqlAccessStore{s} }

// Passes adapts s to PassStore.
func (s *SQLStore) Passes() PassStore { return sqlPassStore{s} }

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sqlAccessStore struct{ s *SQLStore }

func (a sqlAccessStore) InTx(ctx context.Context, fn func(AccessTx) error) error {
	return a.s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlAccessTx{s: a.s, tx: tx})
	})
}

type sqlAccessTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlAccessTx) LockGuestByID(ctx context.Context, id uint64) (model.GuestPass, error) {
	return t.s.guests.LockByIDTx(ctx, t.tx, id)
}

func (t *sqlAccessTx) LockGuestByQR(ctx context.Context, qrCode string) (model.GuestPass, error) {
	return t.s.guests.LockByQRTx(ctx, t.tx, qrCode)
}

func (t *sqlAccessTx) Session(ctx context.Context, id uint64) (*model.PatientSession, error) {
	ps, err := repository.GetSession(ctx, t.tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

func (t *sqlAccessTx) SectionReachesRoom(ctx context.Context, sectionID, roomID uint64) (bool, error) {
	return repository.SectionReachesRoom(ctx, t.tx, sectionID, roomID)
}

func (t *sqlAccessTx) IsInside(ctx context.Context, guestID uint64) (bool, error) {
	id, err := t.s.logs.OpenLogIDTx(ctx, t.tx, guestID)
	return id != 0, err
}

func (t *sqlAccessTx) ConsumeScan(ctx context.Context, guestID uint64) error {
	return t.s.guests.ConsumeScanTx(ctx, t.tx, guestID)
}

func (t *sqlAccessTx) InsertLog(ctx context.Context, l *model.GuestLog) error {
	return t.s.logs.InsertTx(ctx, t.tx, l)
}

func (t *sqlAccessTx) CloseOpenLog(ctx context.Context, guestID uint64, exit time.Time, notes *string) (uint64, error) {
	return t.s.logs.CloseOpenTx(ctx, t.tx, guestID, exit, notes)
}

func (t *sqlAccessTx) InsertScan(ctx context.Context, sc *model.QrScan) error {
	return t.s.scans.InsertTx(ctx, t.tx, sc)
}

type sqlPassStore struct{ s *SQLStore }

func (p sqlPassStore) InTx(ctx context.Context, fn func(PassTx) error) error {
	return p.s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlPassTx{s: p.s, tx: tx})
	})
}

type sqlPassTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlPassTx) LockSession(ctx context.Context, id uint64) (model.PatientSession, error) {
	return repository.LockSessionTx(ctx, t.tx, id)
}

func (t *sqlPassTx) GetGuest(ctx context.Context, id uint64) (model.GuestPass, error) {
	return t.s.guests.GetByIDTx(ctx, t.tx, id)
}

func (t *sqlPassTx) LockGuest(ctx context.Context, id uint64) (model.GuestPass, error) {
	return t.s.guests.LockByIDTx(ctx, t.tx, id)
}

func (t *sqlPassTx) CountActiveApproved(ctx context.Context, sessionID uint64, at time.Time) (int, error) {
	return t.s.guests.CountActiveApprovedTx(ctx, t.tx, sessionID, at)
}

func (t *sqlPassTx) CreateGuest(ctx context.Context, g *model.GuestPass) error {
	return t.s.guests.CreateTx(ctx, t.tx, g)
}

func (t *sqlPassTx) SetGuestStatus(ctx context.Context, id uint64, status string, adminID uint64, at time.Time) error {
	return t.s.guests.SetStatusTx(ctx, t.tx, id, status, adminID, at)
}
