package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// HospitalRepo covers the tenant tree: hospitals, wings, rooms and
// nursing sections with their room mapping.
type HospitalRepo struct {
	db *sql.DB
}

// NewHospitalRepo returns a HospitalRepo bound to db.
func NewHospitalRepo(db *sql.DB) *HospitalRepo { return &HospitalRepo{db: db} }

// DB exposes the handle so callers can open transactions.
func (r *HospitalRepo) DB() *sql.DB { return r.db }

// CreateHospital inserts h and fills its ID.
func (r *HospitalRepo) CreateHospital(ctx context.Context, h *model.Hospital) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO hospitals (name, address, phone) VALUES (?,?,?)",
		strings.TrimSpace(h.Name), nullString(h.Address), nullString(h.Phone))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	h.IsActive = true
	return nil
}

// ListHospitals returns all hospitals that are not soft-deleted.
func (r *HospitalRepo) ListHospitals(ctx context.Context) ([]model.Hospital, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, address, phone, is_active, created_at, updated_at FROM hospitals WHERE deleted_at IS NULL ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Hospital{}
	for rows.Next() {
		var h model.Hospital
		var addr, phone sql.NullString
		if err := rows.Scan(&h.ID, &h.Name, &addr, &phone, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Address, h.Phone = strPtr(addr), strPtr(phone)
		out = append(out, h)
	}
	return out, rows.Err()
}

// HospitalExists reports whether an active hospital with id exists.
func (r *HospitalRepo) HospitalExists(ctx context.Context, id uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hospitals WHERE id=? AND deleted_at IS NULL", id).Scan(&n)
	return n > 0, err
}

// CreateWing inserts w.  A duplicate name within the hospital yields ErrDuplicate.
func (r *HospitalRepo) CreateWing(ctx context.Context, w *model.Wing) error {
	var floor sql.NullInt32
	if w.Floor != nil {
		floor = sql.NullInt32{Int32: *w.Floor, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO wings (hospital_id, name, floor) VALUES (?,?,?)",
		w.HospitalID, strings.TrimSpace(w.Name), floor)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	return nil
}

// GetWing loads a wing and checks it belongs to hospitalID.
func (r *HospitalRepo) GetWing(ctx context.Context, hospitalID, wingID uint64) (model.Wing, error) {
	var w model.Wing
	var floor sql.NullInt32
	err := r.db.QueryRowContext(ctx,
		"SELECT id, hospital_id, name, floor, created_at FROM wings WHERE id=? AND deleted_at IS NULL",
		wingID).Scan(&w.ID, &w.HospitalID, &w.Name, &floor, &w.CreatedAt)
	if err != nil {
		return w, notFound(err)
	}
	if w.HospitalID != hospitalID {
		return w, ErrForbidden
	}
	if floor.Valid {
		f := floor.Int32
		w.Floor = &f
	}
	return w, nil
}

// ListWings returns the wings of a hospital.
func (r *HospitalRepo) ListWings(ctx context.Context, hospitalID uint64) ([]model.Wing, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, hospital_id, name, floor, created_at FROM wings WHERE hospital_id=? AND deleted_at IS NULL ORDER BY name",
		hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Wing{}
	for rows.Next() {
		var w model.Wing
		var floor sql.NullInt32
		if err := rows.Scan(&w.ID, &w.HospitalID, &w.Name, &floor, &w.CreatedAt); err != nil {
			return nil, err
		}
		if floor.Valid {
			f := floor.Int32
			w.Floor = &f
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateRooms inserts rooms for one wing, skipping numbers that already
// exist.  It returns the numbers actually created.
func (r *HospitalRepo) CreateRooms(ctx context.Context, hospitalID, wingID uint64, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return []string{}, nil
	}
	query := "INSERT IGNORE INTO rooms (hospital_id, wing_id, room_number) VALUES "
	args := make([]any, 0, len(numbers)*3)
	for i, n := range numbers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, hospitalID, wingID, n)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	existing, err := roomNumbersTx(ctx, tx, wingID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	created := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if !existing[n] {
			created = append(created, n)
			existing[n] = true
		}
	}
	return created, nil
}

func roomNumbersTx(ctx context.Context, tx *sql.Tx, wingID uint64) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT room_number FROM rooms WHERE wing_id=? FOR UPDATE", wingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, rows.Err()
}

// BulkRoomNumbers expands prefix+from..to into room numbers, e.g.
// ("A-", 101, 103) -> A-101, A-102, A-103.
func BulkRoomNumbers(prefix string, from, to int) []string {
	if to < from {
		return nil
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

const roomColumns = "id, hospital_id, wing_id, room_number, status, created_at"

func scanRoom(s scanner) (model.Room, error) {
	var rm model.Room
	err := s.Scan(&rm.ID, &rm.HospitalID, &rm.WingID, &rm.RoomNumber, &rm.Status, &rm.CreatedAt)
	return rm, err
}

// ListRooms returns rooms of a hospital filtered by wing and status
// when those are non-zero.
func (r *HospitalRepo) ListRooms(ctx context.Context, hospitalID, wingID uint64, status string) ([]model.Room, error) {
	q := "SELECT " + roomColumns + " FROM rooms WHERE hospital_id=? AND deleted_at IS NULL"
	args := []any{hospitalID}
	if wingID != 0 {
		q += " AND wing_id=?"
		args = append(args, wingID)
	}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	q += " ORDER BY wing_id, room_number"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// LockRoomTx loads a room FOR UPDATE.
func (r *HospitalRepo) LockRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64) (model.Room, error) {
	rm, err := scanRoom(tx.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id=? AND deleted_at IS NULL FOR UPDATE", roomID))
	return rm, notFound(err)
}

// SetRoomStatusTx updates the occupancy flag of a room.
func (r *HospitalRepo) SetRoomStatusTx(ctx context.Context, tx *sql.Tx, roomID uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE rooms SET status=? WHERE id=?", status, roomID)
	return err
}

// CreateSection inserts a nursing section.
func (r *HospitalRepo) CreateSection(ctx context.Context, s *model.NursingSection) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO nursing_sections (hospital_id, name) VALUES (?,?)",
		s.HospitalID, strings.TrimSpace(s.Name))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.RoomIDs = []uint64{}
	return nil
}

// GetSection loads a section and checks it belongs to hospitalID.
func (r *HospitalRepo) GetSection(ctx context.Context, hospitalID, sectionID uint64) (model.NursingSection, error) {
	var s model.NursingSection
	err := r.db.QueryRowContext(ctx,
		"SELECT id, hospital_id, name, created_at FROM nursing_sections WHERE id=? AND deleted_at IS NULL",
		sectionID).Scan(&s.ID, &s.HospitalID, &s.Name, &s.CreatedAt)
	if err != nil {
		return s, notFound(err)
	}
	if s.HospitalID != hospitalID {
		return s, ErrForbidden
	}
	s.RoomIDs, err = r.SectionRoomIDs(ctx, s.ID)
	return s, err
}

// SectionRoomIDs lists the rooms served by a section.
func (r *HospitalRepo) SectionRoomIDs(ctx context.Context, sectionID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id FROM section_rooms WHERE section_id=? ORDER BY room_id", sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceSectionRooms swaps the room mapping of a section.  Every room
// must belong to hospitalID or ErrForbidden is returned.
func (r *HospitalRepo) ReplaceSectionRooms(ctx context.Context, hospitalID, sectionID uint64, roomIDs []uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if len(roomIDs) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(roomIDs)), ",")
		args := make([]any, 0, len(roomIDs)+1)
		args = append(args, hospitalID)
		for _, id := range roomIDs {
			args = append(args, id)
		}
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM rooms WHERE hospital_id=? AND deleted_at IS NULL AND id IN ("+ph+")",
			args...).Scan(&n); err != nil {
			return err
		}
		if n != len(roomIDs) {
			return ErrForbidden
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM section_rooms WHERE section_id=?", sectionID); err != nil {
		return err
	}
	if len(roomIDs) > 0 {
		q := "INSERT INTO section_rooms (section_id, room_id) VALUES "
		args := make([]any, 0, len(roomIDs)*2)
		for i, id := range roomIDs {
			if i > 0 {
				q += ","
			}
			q += "(?, ?)"
			args = append(args, sectionID, id)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SectionReachesRoom reports whether section_rooms maps sectionID to roomID.
func SectionReachesRoom(ctx context.Context, q querier, sectionID, roomID uint64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM section_rooms WHERE section_id=? AND room_id=?",
		sectionID, roomID).Scan(&n)
	return n > 0, err
}
