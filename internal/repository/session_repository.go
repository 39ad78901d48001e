package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// SessionRepo persists patient stays.  Admission and discharge also
// move the room between available and occupied in the same
// transaction.
type SessionRepo struct {
	db    *sql.DB
	rooms *HospitalRepo
	users *UserRepo
}

// NewSessionRepo returns a SessionRepo bound to db.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db, rooms: NewHospitalRepo(db), users: NewUserRepo(db)}
}

const sessionColumns = "id, patient_user_id, hospital_id, wing_id, room_id, status, start_date, end_date, admitted_by"

func scanSession(s scanner) (model.PatientSession, error) {
	var (
		ps         model.PatientSession
		end        sql.NullTime
		admittedBy sql.NullInt64
	)
	err := s.Scan(&ps.ID, &ps.PatientUserID, &ps.HospitalID, &ps.WingID, &ps.RoomID,
		&ps.Status, &ps.StartDate, &end, &admittedBy)
	if err != nil {
		return ps, err
	}
	ps.EndDate = timePtr(end)
	ps.AdmittedBy = uintPtr(admittedBy)
	return ps, nil
}

// Admission describes a patient to admit.
type Admission struct {
	HospitalID   uint64
	RoomID       uint64
	PatientName  string
	PatientPhone string
	AdmittedBy   uint64
	StartDate    time.Time
}

// Admit creates the patient user if needed, opens a session and marks
// the room occupied.  The room must be available and belong to the
// hospital; the patient must not have another active session.
func (r *SessionRepo) Admit(ctx context.Context, a Admission) (model.PatientSession, error) {
	var ps model.PatientSession
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ps, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	room, err := r.rooms.LockRoomTx(ctx, tx, a.RoomID)
	if err != nil {
		return ps, err
	}
	if room.HospitalID != a.HospitalID {
		return ps, ErrForbidden
	}
	if room.Status != model.RoomAvailable {
		return ps, ErrRoomNotAvailable
	}
	patientID, err := r.users.EnsurePatientTx(ctx, tx, a.PatientName, a.PatientPhone, a.HospitalID)
	if err != nil {
		return ps, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO patient_sessions (patient_user_id, hospital_id, wing_id, room_id, status, start_date, admitted_by)
		 VALUES (?,?,?,?,?,?,?)`,
		patientID, a.HospitalID, room.WingID, room.ID, model.SessionActive, a.StartDate, nullUint(&a.AdmittedBy))
	if err != nil {
		if isDuplicate(err) {
			return ps, ErrActiveSessionExists
		}
		return ps, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ps, err
	}
	if err := r.rooms.SetRoomStatusTx(ctx, tx, room.ID, model.RoomOccupied); err != nil {
		return ps, err
	}
	if err := tx.Commit(); err != nil {
		return ps, err
	}
	committed = true
	by := a.AdmittedBy
	return model.PatientSession{
		ID: uint64(id), PatientUserID: patientID, HospitalID: a.HospitalID,
		WingID: room.WingID, RoomID: room.ID, Status: model.SessionActive,
		StartDate: a.StartDate, AdmittedBy: &by,
	}, nil
}

// Discharge closes an active session, frees its room and deactivates
// the session's guest passes.  It fails with ErrGuestsInside while a
// guest of the session has an open log, since only a check-out may
// close it.
func (r *SessionRepo) Discharge(ctx context.Context, hospitalID, sessionID uint64, at time.Time) (model.PatientSession, error) {
	var ps model.PatientSession
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ps, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	ps, err = LockSessionTx(ctx, tx, sessionID)
	if err != nil {
		return ps, err
	}
	if ps.HospitalID != hospitalID {
		return ps, ErrForbidden
	}
	if !ps.Active() {
		return ps, ErrConflict
	}
	// Taking the guest rows waits out check-ins already in flight; later
	// ones see the passes inactive.
	if _, err := tx.ExecContext(ctx,
		"UPDATE guests SET is_active=0 WHERE session_id=?", ps.ID); err != nil {
		return ps, err
	}
	var inside int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM guest_logs WHERE session_id=? AND currently_inside=1 FOR UPDATE",
		ps.ID).Scan(&inside); err != nil {
		return ps, err
	}
	if inside > 0 {
		return ps, ErrGuestsInside
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE patient_sessions SET status=?, end_date=? WHERE id=?",
		model.SessionDischarged, at, ps.ID); err != nil {
		return ps, err
	}
	if err := r.rooms.SetRoomStatusTx(ctx, tx, ps.RoomID, model.RoomAvailable); err != nil {
		return ps, err
	}
	if err := tx.Commit(); err != nil {
		return ps, err
	}
	committed = true
	ps.Status = model.SessionDischarged
	ps.EndDate = &at
	return ps, nil
}

// LockSessionTx loads a session FOR UPDATE.
func LockSessionTx(ctx context.Context, tx *sql.Tx, id uint64) (model.PatientSession, error) {
	ps, err := scanSession(tx.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM patient_sessions WHERE id=? FOR UPDATE", id))
	return ps, notFound(err)
}

// GetSession loads a session with q, which may be a transaction.
func GetSession(ctx context.Context, q querier, id uint64) (model.PatientSession, error) {
	ps, err := scanSession(q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM patient_sessions WHERE id=?", id))
	return ps, notFound(err)
}

// GetByID loads a session.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.PatientSession, error) {
	return GetSession(ctx, r.db, id)
}

// ActiveForPatient returns the running session of a patient user.
func (r *SessionRepo) ActiveForPatient(ctx context.Context, patientUserID uint64) (model.PatientSession, error) {
	ps, err := scanSession(r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM patient_sessions WHERE patient_user_id=? AND status='active' LIMIT 1",
		patientUserID))
	return ps, notFound(err)
}

// List returns sessions of a hospital, newest first.  An empty status
// returns every session.
func (r *SessionRepo) List(ctx context.Context, hospitalID uint64, status string) ([]model.PatientSession, error) {
	q := "SELECT " + sessionColumns + " FROM patient_sessions WHERE hospital_id=?"
	args := []any{hospitalID}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	q += " ORDER BY start_date DESC, id DESC LIMIT 500"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PatientSession{}
	for rows.Next() {
		ps, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
