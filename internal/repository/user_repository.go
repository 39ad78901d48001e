package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email or phone already exists")

const userColumns = "id,name,email,phone,COALESCE(password_hash,''),role,hospital_id,section_id,wing_id,is_active,created_at,updated_at"

func scanUser(s scanner) (model.User, error) {
	var (
		u                       model.User
		email, phone            sql.NullString
		hospital, section, wing sql.NullInt64
	)
	err := s.Scan(&u.ID, &u.Name, &email, &phone, &u.PasswordHash, &u.Role,
		&hospital, &section, &wing, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.Email, u.Phone = strPtr(email), strPtr(phone)
	u.HospitalID, u.SectionID, u.WingID = uintPtr(hospital), uintPtr(section), uintPtr(wing)
	return u, nil
}

// NewStaff describes a staff account to create.
type NewStaff struct {
	Name       string
	Email      string
	Phone      *string
	Password   string
	Role       string
	HospitalID *uint64
	SectionID  *uint64
	WingID     *uint64
}

// CreateStaff hashes the password and inserts a staff user.
func (r *UserRepo) CreateStaff(ctx context.Context, s NewStaff, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(s.Email))
	hash, err := utils.HashPassword(s.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, role, hospital_id, section_id, wing_id)
		 VALUES (?,?,?,?,?,?,?,?)`,
		strings.TrimSpace(s.Name), email, nullString(s.Phone), hash, s.Role,
		nullUint(s.HospitalID), nullUint(s.SectionID), nullUint(s.WingID))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// EnsureSuperAdmin creates the bootstrap super admin when no user owns
// email.  It reports whether an account was created.
func (r *UserRepo) EnsureSuperAdmin(ctx context.Context, email, password string, cost int) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := r.CreateStaff(ctx, NewStaff{
		Name: "Super Admin", Email: email, Password: password, Role: model.RoleSuperAdmin,
	}, cost); err != nil {
		return false, err
	}
	return true, nil
}

// EnsurePatientTx returns the PATIENT user owning phone, creating it
// when missing.  A phone that belongs to a staff account is a conflict.
func (r *UserRepo) EnsurePatientTx(ctx context.Context, tx *sql.Tx, name, phone string, hospitalID uint64) (uint64, error) {
	phone = strings.TrimSpace(phone)
	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? AND deleted_at IS NULL LIMIT 1 FOR UPDATE", phone))
	switch {
	case err == nil:
		if u.Role != model.RolePatient {
			return 0, ErrConflict
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET hospital_id=?, is_active=1 WHERE id=?", hospitalID, u.ID); err != nil {
			return 0, err
		}
		return u.ID, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, phone, role, hospital_id) VALUES (?,?,?,?)",
		strings.TrimSpace(name), phone, model.RolePatient, hospitalID)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND deleted_at IS NULL LIMIT 1", email))
	return u, notFound(err)
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? AND deleted_at IS NULL LIMIT 1", strings.TrimSpace(phone)))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND deleted_at IS NULL LIMIT 1", id))
	return u, notFound(err)
}

// ListStaff returns the staff of a hospital, optionally filtered by role.
func (r *UserRepo) ListStaff(ctx context.Context, hospitalID uint64, role string) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE hospital_id=? AND role IN ('HOSPITAL_ADMIN','NURSE','SECURITY') AND deleted_at IS NULL"
	args := []any{hospitalID}
	if role != "" {
		q += " AND role=?"
		args = append(args, role)
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
