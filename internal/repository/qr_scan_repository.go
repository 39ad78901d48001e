package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// QrScanRepo appends and reads the security scan audit trail.
type QrScanRepo struct {
	db *sql.DB
}

// NewQrScanRepo returns a QrScanRepo bound to db.
func NewQrScanRepo(db *sql.DB) *QrScanRepo { return &QrScanRepo{db: db} }

// InsertTx appends s and fills its ID.
func (r *QrScanRepo) InsertTx(ctx context.Context, tx *sql.Tx, s *model.QrScan) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO qr_scans (guest_id, session_id, hospital_id, security_id, qr_code, action, granted, reason, device_id, scanned_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.GuestID, s.SessionID, s.HospitalID, s.SecurityID, s.QRCode, s.Action, s.Granted,
		nullString(s.Reason), nullString(s.DeviceID), s.ScannedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// ScanFilter narrows List.  Zero values mean "any".
type ScanFilter struct {
	HospitalID uint64
	GuestID    uint64
	SecurityID uint64
	Since      *time.Time
	Limit      int
}

// List returns scans newest first.
func (r *QrScanRepo) List(ctx context.Context, f ScanFilter) ([]model.QrScan, error) {
	q := `SELECT id, guest_id, session_id, hospital_id, security_id, qr_code, action, granted, reason, device_id, scanned_at
	      FROM qr_scans WHERE hospital_id = ?`
	args := []any{f.HospitalID}
	if f.GuestID != 0 {
		q += " AND guest_id = ?"
		args = append(args, f.GuestID)
	}
	if f.SecurityID != 0 {
		q += " AND security_id = ?"
		args = append(args, f.SecurityID)
	}
	if f.Since != nil {
		q += " AND scanned_at >= ?"
		args = append(args, f.Since.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.QrScan{}
	for rows.Next() {
		var (
			s              model.QrScan
			reason, device sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.GuestID, &s.SessionID, &s.HospitalID, &s.SecurityID, &s.QRCode,
			&s.Action, &s.Granted, &reason, &device, &s.ScannedAt); err != nil {
			return nil, err
		}
		s.Reason, s.DeviceID = strPtr(reason), strPtr(device)
		out = append(out, s)
	}
	return out, rows.Err()
}
