package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hospital-guest-access/internal/model"
)

var ts = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func TestConsumeScanIncrementsWithinQuota(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec("UPDATE guests SET qr_scans_used").WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewGuestRepo(db).ConsumeScanTx(context.Background(), tx, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeScanRefusesPastLimit(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec("UPDATE guests SET qr_scans_used").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT qr_scan_limit FROM guests").
		WillReturnRows(sqlmock.NewRows([]string{"qr_scan_limit"}).AddRow(2))

	err := NewGuestRepo(db).ConsumeScanTx(context.Background(), tx, 3)
	assert.ErrorIs(t, err, ErrScanLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeScanIgnoresUnlimitedPass(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec("UPDATE guests SET qr_scans_used").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT qr_scan_limit FROM guests").
		WillReturnRows(sqlmock.NewRows([]string{"qr_scan_limit"}).AddRow(nil))

	assert.NoError(t, NewGuestRepo(db).ConsumeScanTx(context.Background(), tx, 3))
}

func TestCapCountsOnlyUnexpiredPasses(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery("status='approved' AND is_active=1 AND valid_until>=\\?").WithArgs(uint64(9), ts).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))

	n, err := NewGuestRepo(db).CountActiveApprovedTx(context.Background(), tx, 9, ts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateUnknownPass(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE guests SET is_active=0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	err := NewGuestRepo(db).Deactivate(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertOpenLogTwiceIsAlreadyInside(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec("INSERT INTO guest_logs").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_one_open_log'"})

	l := &model.GuestLog{GuestID: 4, SessionID: 1, HospitalID: 1, ActorID: 2, ActorRole: model.RoleNurse,
		EntryTime: ts, CurrentlyInside: true, AccessGranted: true}
	err := NewGuestLogRepo(db).InsertTx(context.Background(), tx, l)
	assert.ErrorIs(t, err, ErrAlreadyInside)
}

func TestInsertDenialFillsID(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec("INSERT INTO guest_logs").WillReturnResult(sqlmock.NewResult(42, 1))

	reason := "NOT_INSIDE"
	l := &model.GuestLog{GuestID: 4, SessionID: 1, HospitalID: 1, ActorID: 2, ActorRole: model.RoleSecurity,
		EntryTime: ts, ExitTime: &ts, DenialReason: &reason}
	require.NoError(t, NewGuestLogRepo(db).InsertTx(context.Background(), tx, l))
	assert.Equal(t, uint64(42), l.ID)
}

func TestCloseOpenLogWithoutOpenRow(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery("SELECT id FROM guest_logs").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGuestLogRepo(db).CloseOpenTx(context.Background(), tx, 4, ts, nil)
	assert.ErrorIs(t, err, ErrNoOpenLog)
}

func TestCloseOpenLogLosesRace(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery("SELECT id FROM guest_logs").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("UPDATE guest_logs SET exit_time").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewGuestLogRepo(db).CloseOpenTx(context.Background(), tx, 4, ts, nil)
	assert.ErrorIs(t, err, ErrNoOpenLog)
}

func TestCloseOpenLogReturnsClosedRow(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery("SELECT id FROM guest_logs").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("UPDATE guest_logs SET exit_time").WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := NewGuestLogRepo(db).CloseOpenTx(context.Background(), tx, 4, ts, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

var roomCols = []string{"id", "hospital_id", "wing_id", "room_number", "status", "created_at"}

func TestAdmitOccupiedRoom(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms WHERE id=").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(10, 1, 2, "101", model.RoomOccupied, ts))
	mock.ExpectRollback()

	_, err := NewSessionRepo(db).Admit(context.Background(), Admission{HospitalID: 1, RoomID: 10, PatientPhone: "0912"})
	assert.ErrorIs(t, err, ErrRoomNotAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitRoomOfAnotherHospital(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms WHERE id=").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(10, 2, 2, "101", model.RoomAvailable, ts))
	mock.ExpectRollback()

	_, err := NewSessionRepo(db).Admit(context.Background(), Admission{HospitalID: 1, RoomID: 10})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdmitCreatesPatientAndOccupiesRoom(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms WHERE id=").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(10, 1, 2, "101", model.RoomAvailable, ts))
	mock.ExpectQuery("FROM users WHERE phone=").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO patient_sessions").WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("UPDATE rooms SET status").WithArgs(model.RoomOccupied, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ps, err := NewSessionRepo(db).Admit(context.Background(), Admission{
		HospitalID: 1, RoomID: 10, PatientName: "Sara", PatientPhone: "0912", AdmittedBy: 3, StartDate: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), ps.ID)
	assert.Equal(t, uint64(5), ps.PatientUserID)
	assert.Equal(t, uint64(2), ps.WingID)
	assert.True(t, ps.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitPatientWithActiveSession(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms WHERE id=").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(10, 1, 2, "101", model.RoomAvailable, ts))
	mock.ExpectQuery("FROM users WHERE phone=").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO patient_sessions").WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	_, err := NewSessionRepo(db).Admit(context.Background(), Admission{HospitalID: 1, RoomID: 10, PatientPhone: "0912"})
	assert.ErrorIs(t, err, ErrActiveSessionExists)
}

var sessionCols = []string{"id", "patient_user_id", "hospital_id", "wing_id", "room_id", "status", "start_date", "end_date", "admitted_by"}

func TestDischargeFreesRoomAndRevokesPasses(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM patient_sessions WHERE id=").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(9, 5, 1, 2, 10, model.SessionActive, ts, nil, 3))
	mock.ExpectExec("UPDATE guests SET is_active=0").WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("FROM guest_logs WHERE session_id=\\? AND currently_inside=1 FOR UPDATE").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("UPDATE patient_sessions SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE rooms SET status").WithArgs(model.RoomAvailable, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ps, err := NewSessionRepo(db).Discharge(context.Background(), 1, 9, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.SessionDischarged, ps.Status)
	require.NotNil(t, ps.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDischargeWithGuestInsideIsRefused(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM patient_sessions WHERE id=").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(9, 5, 1, 2, 10, model.SessionActive, ts, nil, 3))
	mock.ExpectExec("UPDATE guests SET is_active=0").WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM guest_logs WHERE session_id").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err := NewSessionRepo(db).Discharge(context.Background(), 1, 9, ts.Add(time.Hour))
	assert.ErrorIs(t, err, ErrGuestsInside)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDischargeTwiceIsConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM patient_sessions WHERE id=").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(9, 5, 1, 2, 10, model.SessionDischarged, ts, ts, 3))
	mock.ExpectRollback()

	_, err := NewSessionRepo(db).Discharge(context.Background(), 1, 9, ts)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBulkRoomNumbers(t *testing.T) {
	assert.Equal(t, []string{"A1", "A2", "A3"}, BulkRoomNumbers("A", 1, 3))
	assert.Empty(t, BulkRoomNumbers("A", 3, 1))
}
