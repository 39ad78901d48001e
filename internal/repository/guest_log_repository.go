package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// GuestLogRepo records access decisions.  The open row of a guest (the
// one with currently_inside=1) is the only row that is ever updated,
// and the open_guest_id unique key keeps it unique.
type GuestLogRepo struct {
	db *sql.DB
}

// NewGuestLogRepo returns a GuestLogRepo bound to db.
func NewGuestLogRepo(db *sql.DB) *GuestLogRepo { return &GuestLogRepo{db: db} }

// InsertTx appends l and fills its ID.  Inserting a second open row
// for the same guest fails with ErrAlreadyInside.
func (r *GuestLogRepo) InsertTx(ctx context.Context, tx *sql.Tx, l *model.GuestLog) error {
	var exit sql.NullTime
	if l.ExitTime != nil {
		exit = sql.NullTime{Time: l.ExitTime.UTC(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO guest_logs (guest_id, session_id, hospital_id, actor_id, actor_role, entry_time, exit_time,
		   currently_inside, access_granted, denial_reason, notes)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.GuestID, l.SessionID, l.HospitalID, l.ActorID, l.ActorRole, l.EntryTime.UTC(), exit,
		l.CurrentlyInside, l.AccessGranted, nullString(l.DenialReason), nullString(l.Notes))
	if err != nil {
		if l.CurrentlyInside && isDuplicate(err) {
			return ErrAlreadyInside
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// OpenLogIDTx returns the id of the guest's open row, or 0 when the
// guest is outside.
func (r *GuestLogRepo) OpenLogIDTx(ctx context.Context, tx *sql.Tx, guestID uint64) (uint64, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM guest_logs WHERE guest_id=? AND currently_inside=1 LIMIT 1", guestID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// CloseOpenTx stamps exit on the guest's open row and clears its inside
// flag.  The update only matches an open row, so of two concurrent
// check-outs one gets ErrNoOpenLog.
func (r *GuestLogRepo) CloseOpenTx(ctx context.Context, tx *sql.Tx, guestID uint64, exit time.Time, notes *string) (uint64, error) {
	id, err := r.OpenLogIDTx(ctx, tx, guestID)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrNoOpenLog
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE guest_logs SET exit_time=?, currently_inside=0, notes=COALESCE(?, notes)
		 WHERE id=? AND currently_inside=1`,
		exit.UTC(), nullString(notes), id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNoOpenLog
	}
	return id, nil
}

// LogFilter narrows List.  Zero values mean "any".
type LogFilter struct {
	HospitalID uint64
	GuestID    uint64
	SectionID  uint64 // restrict to rooms served by the section
	WingID     uint64
	InsideOnly bool
	Granted    *bool
	Since      *time.Time
	Limit      int
}

// List returns log rows joined with guest name and room number, newest
// first.
func (r *GuestLogRepo) List(ctx context.Context, f LogFilter) ([]model.GuestLogView, error) {
	q := `SELECT l.id, l.guest_id, l.session_id, l.hospital_id, l.actor_id, l.actor_role, l.entry_time, l.exit_time,
	             l.currently_inside, l.access_granted, l.denial_reason, l.notes, g.guest_name, rm.room_number
	      FROM guest_logs l
	      JOIN guests g ON g.id = l.guest_id
	      JOIN patient_sessions s ON s.id = l.session_id
	      JOIN rooms rm ON rm.id = s.room_id
	      WHERE l.hospital_id = ?`
	args := []any{f.HospitalID}
	if f.GuestID != 0 {
		q += " AND l.guest_id = ?"
		args = append(args, f.GuestID)
	}
	if f.SectionID != 0 {
		q += " AND s.room_id IN (SELECT room_id FROM section_rooms WHERE section_id = ?)"
		args = append(args, f.SectionID)
	}
	if f.WingID != 0 {
		q += " AND s.wing_id = ?"
		args = append(args, f.WingID)
	}
	if f.InsideOnly {
		q += " AND l.currently_inside = 1"
	}
	if f.Granted != nil {
		q += " AND l.access_granted = ?"
		args = append(args, *f.Granted)
	}
	if f.Since != nil {
		q += " AND l.entry_time >= ?"
		args = append(args, f.Since.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += " ORDER BY l.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GuestLogView{}
	for rows.Next() {
		var (
			v             model.GuestLogView
			exit          sql.NullTime
			reason, notes sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.GuestID, &v.SessionID, &v.HospitalID, &v.ActorID, &v.ActorRole,
			&v.EntryTime, &exit, &v.CurrentlyInside, &v.AccessGranted, &reason, &notes,
			&v.GuestName, &v.RoomNumber); err != nil {
			return nil, err
		}
		v.ExitTime = timePtr(exit)
		v.DenialReason, v.Notes = strPtr(reason), strPtr(notes)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Dashboard holds the counters shown to hospital admins.
type Dashboard struct {
	ActiveSessions int `json:"active_sessions"`
	OccupiedRooms  int `json:"occupied_rooms"`
	AvailableRooms int `json:"available_rooms"`
	GuestsInside   int `json:"guests_inside"`
	EntriesToday   int `json:"entries_today"`
	DenialsToday   int `json:"denials_today"`
	PendingPasses  int `json:"pending_passes"`
}

// Dashboard computes the counters of a hospital.  dayStart is the
// beginning of "today" in the hospital time zone.
func (r *GuestLogRepo) Dashboard(ctx context.Context, hospitalID uint64, dayStart time.Time) (Dashboard, error) {
	var d Dashboard
	const counts = `SELECT
	  (SELECT COUNT(*) FROM patient_sessions WHERE hospital_id=? AND status='active'),
	  (SELECT COUNT(*) FROM rooms WHERE hospital_id=? AND status='occupied' AND deleted_at IS NULL),
	  (SELECT COUNT(*) FROM rooms WHERE hospital_id=? AND status='available' AND deleted_at IS NULL),
	  (SELECT COUNT(*) FROM guest_logs WHERE hospital_id=? AND currently_inside=1),
	  (SELECT COUNT(*) FROM guest_logs WHERE hospital_id=? AND access_granted=1 AND entry_time>=?),
	  (SELECT COUNT(*) FROM guest_logs WHERE hospital_id=? AND access_granted=0 AND entry_time>=?),
	  (SELECT COUNT(*) FROM guests WHERE hospital_id=? AND status='pending' AND is_active=1)`
	day := dayStart.UTC()
	err := r.db.QueryRowContext(ctx, counts,
		hospitalID, hospitalID, hospitalID, hospitalID, hospitalID, day, hospitalID, day, hospitalID,
	).Scan(&d.ActiveSessions, &d.OccupiedRooms, &d.AvailableRooms, &d.GuestsInside,
		&d.EntriesToday, &d.DenialsToday, &d.PendingPasses)
	return d, err
}
