package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// GuestRepo persists guest passes.  Passes are never deleted: status
// and is_active carry their lifecycle.
type GuestRepo struct {
	db *sql.DB
}

// NewGuestRepo returns a GuestRepo bound to db.
func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

// DB exposes the handle so services can open transactions.
func (r *GuestRepo) DB() *sql.DB { return r.db }

const guestColumns = `id, session_id, hospital_id, guest_name, guest_phone, relationship, pass_type,
	valid_from, valid_until, qr_code, qr_scan_limit, qr_scans_used, status, is_active,
	approved_at, approved_by_admin_id, created_at`

func scanGuest(s scanner) (model.GuestPass, error) {
	var (
		g            model.GuestPass
		relationship sql.NullString
		limit        sql.NullInt64
		approvedAt   sql.NullTime
		approvedBy   sql.NullInt64
	)
	err := s.Scan(&g.ID, &g.SessionID, &g.HospitalID, &g.GuestName, &g.GuestPhone, &relationship,
		&g.PassType, &g.ValidFrom, &g.ValidUntil, &g.QRCode, &limit, &g.QRScansUsed, &g.Status,
		&g.IsActive, &approvedAt, &approvedBy, &g.CreatedAt)
	if err != nil {
		return g, err
	}
	g.Relationship = strPtr(relationship)
	if limit.Valid {
		l := uint32(limit.Int64)
		g.QRScanLimit = &l
	}
	g.ApprovedAt = timePtr(approvedAt)
	g.ApprovedByAdminID = uintPtr(approvedBy)
	return g, nil
}

// CreateTx inserts g and fills its ID.
func (r *GuestRepo) CreateTx(ctx context.Context, tx *sql.Tx, g *model.GuestPass) error {
	var limit sql.NullInt64
	if g.QRScanLimit != nil {
		limit = sql.NullInt64{Int64: int64(*g.QRScanLimit), Valid: true}
	}
	var approvedAt sql.NullTime
	if g.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *g.ApprovedAt, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO guests (session_id, hospital_id, guest_name, guest_phone, relationship, pass_type,
		   valid_from, valid_until, qr_code, qr_scan_limit, qr_scans_used, status, is_active, approved_at, approved_by_admin_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.SessionID, g.HospitalID, g.GuestName, g.GuestPhone, nullString(g.Relationship), g.PassType,
		g.ValidFrom.UTC(), g.ValidUntil.UTC(), g.QRCode, limit, g.QRScansUsed, g.Status, g.IsActive,
		approvedAt, nullUint(g.ApprovedByAdminID))
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
	g.ID = uint64(id)
	return nil
}

// CountActiveApprovedTx counts the passes of a session that are
// approved, active and not yet expired at at.  Callers lock the session
// row first so the count cannot change before their insert commits.
func (r *GuestRepo) CountActiveApprovedTx(ctx context.Context, tx *sql.Tx, sessionID uint64, at time.Time) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM guests WHERE session_id=? AND status='approved' AND is_active=1 AND valid_until>=?",
		sessionID, at).Scan(&n)
	return n, err
}

// GetByIDTx loads a pass inside tx without locking it.
func (r *GuestRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.GuestPass, error) {
	g, err := scanGuest(tx.QueryRowContext(ctx, "SELECT "+guestColumns+" FROM guests WHERE id=?", id))
	return g, notFound(err)
}

// LockByIDTx loads a pass FOR UPDATE.
func (r *GuestRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.GuestPass, error) {
	g, err := scanGuest(tx.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE id=? FOR UPDATE", id))
	return g, notFound(err)
}

// LockByQRTx loads the pass owning a scan token FOR UPDATE.
func (r *GuestRepo) LockByQRTx(ctx context.Context, tx *sql.Tx, qrCode string) (model.GuestPass, error) {
	g, err := scanGuest(tx.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE qr_code=? FOR UPDATE", qrCode))
	return g, notFound(err)
}

// ConsumeScanTx increments the scan counter of a pass with a finite
// quota.  The update is conditional so the counter can never pass the
// limit; ErrScanLimit means the quota was already used up.  Passes
// without a limit are left untouched.
func (r *GuestRepo) ConsumeScanTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE guests SET qr_scans_used = qr_scans_used + 1
		 WHERE id=? AND qr_scan_limit IS NOT NULL AND qr_scans_used < qr_scan_limit`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var limit sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT qr_scan_limit FROM guests WHERE id=?", id).Scan(&limit); err != nil {
		return notFound(err)
	}
	if !limit.Valid {
		return nil
	}
	return ErrScanLimit
}

// GetByID loads a pass.
func (r *GuestRepo) GetByID(ctx context.Context, id uint64) (model.GuestPass, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx, "SELECT "+guestColumns+" FROM guests WHERE id=?", id))
	return g, notFound(err)
}

// ListBySession returns every pass of a session, newest first.
func (r *GuestRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.GuestPass, error) {
	return r.list(ctx, "SELECT "+guestColumns+" FROM guests WHERE session_id=? ORDER BY id DESC", sessionID)
}

// ListPending returns passes of a hospital waiting for approval.
func (r *GuestRepo) ListPending(ctx context.Context, hospitalID uint64) ([]model.GuestPass, error) {
	return r.list(ctx, "SELECT "+guestColumns+" FROM guests WHERE hospital_id=? AND status='pending' AND is_active=1 ORDER BY id", hospitalID)
}

func (r *GuestRepo) list(ctx context.Context, q string, args ...any) ([]model.GuestPass, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GuestPass{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Deactivate clears is_active on a pass of sessionID.
func (r *GuestRepo) Deactivate(ctx context.Context, sessionID, guestID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE guests SET is_active=0 WHERE id=? AND session_id=?", guestID, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM guests WHERE id=? AND session_id=?", guestID, sessionID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// SetStatusTx records an admin decision on a pending pass.
func (r *GuestRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, adminID uint64, at time.Time) error {
	var approvedAt sql.NullTime
	if status == model.PassApproved {
		approvedAt = sql.NullTime{Time: at, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE guests SET status=?, approved_at=?, approved_by_admin_id=? WHERE id=?",
		status, approvedAt, adminID, id)
	return err
}
