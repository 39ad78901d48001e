package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/service"
	"github.com/iliyamo/hospital-guest-access/internal/validation"
)

var (
	nurse    = access.Actor{UserID: 5, Role: model.RoleNurse, HospitalID: 1, SectionID: 9}
	officer  = access.Actor{UserID: 6, Role: model.RoleSecurity, HospitalID: 1, WingID: 3}
	admin    = access.Actor{UserID: 7, Role: model.RoleHospitalAdmin, HospitalID: 1}
	patient  = access.Actor{UserID: 40, Role: model.RolePatient, HospitalID: 1}
	stranger = access.Actor{UserID: 8, Role: model.RoleHospitalAdmin, HospitalID: 2}
)

// newEcho returns an Echo whose requests carry actor as if JWTAuth and
// LoadActor had run.
func newEcho(actor access.Actor) *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", actor.UserID)
			c.Set("role", actor.Role)
			c.Set("actor", actor)
			return next(c)
		}
	})
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// ----- access -----

type accessCall struct {
	actor  access.Actor
	target service.Target
	action access.Action
	meta   service.ScanMeta
}

type stubAccess struct {
	res   service.Result
	err   error
	calls []accessCall
}

func (s *stubAccess) RequestAccess(_ context.Context, a access.Actor, t service.Target, act access.Action, m service.ScanMeta) (service.Result, error) {
	s.calls = append(s.calls, accessCall{a, t, act, m})
	return s.res, s.err
}

func accessRoutes(actor access.Actor, s *stubAccess) *echo.Echo {
	e := newEcho(actor)
	h := NewAccessHandler(s)
	e.POST("/v1/access/guests/:id/check-in", h.CheckIn)
	e.POST("/v1/access/guests/:id/check-out", h.CheckOut)
	e.POST("/v1/access/scan", h.Scan)
	return e
}

func TestCheckInGranted(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &stubAccess{res: service.Result{Granted: true, LogID: 31, Timestamp: at,
		Guest: model.GuestPass{ID: 12, GuestName: "Sara", PassType: model.PassFrequent}}}
	e := accessRoutes(nurse, s)

	rec := do(e, http.MethodPost, "/v1/access/guests/12/check-in", `{"notes":"flowers"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["granted"])
	assert.EqualValues(t, 31, body["log_id"])
	assert.NotContains(t, body, "reason")
	guest, isMap := body["guest"].(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "Sara", guest["name"])

	require.Len(t, s.calls, 1)
	assert.Equal(t, uint64(12), s.calls[0].target.GuestID)
	assert.Equal(t, access.CheckIn, s.calls[0].action)
	assert.Equal(t, nurse, s.calls[0].actor)
	require.NotNil(t, s.calls[0].meta.Notes)
	assert.Equal(t, "flowers", *s.calls[0].meta.Notes)
}

func TestCheckOutWithoutBody(t *testing.T) {
	s := &stubAccess{res: service.Result{Granted: true, LogID: 2}}
	e := accessRoutes(nurse, s)

	rec := do(e, http.MethodPost, "/v1/access/guests/12/check-out", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.calls, 1)
	assert.Equal(t, access.CheckOut, s.calls[0].action)
}

func TestDenialStatuses(t *testing.T) {
	cases := []struct {
		reason access.Reason
		status int
	}{
		{access.ReasonAccessDenied, http.StatusForbidden},
		{access.ReasonPassOutsideWindow, http.StatusUnprocessableEntity},
		{access.ReasonSessionNotActive, http.StatusConflict},
		{access.ReasonPassNotApproved, http.StatusConflict},
		{access.ReasonScanLimitExceeded, http.StatusConflict},
		{access.ReasonAlreadyInside, http.StatusConflict},
		{access.ReasonNotInside, http.StatusConflict},
		{access.ReasonNoOpenLog, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			s := &stubAccess{res: service.Result{Reason: tc.reason, LogID: 4}}
			rec := do(accessRoutes(nurse, s), http.MethodPost, "/v1/access/guests/1/check-in", "")
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, string(tc.reason), body["reason"])
			assert.Equal(t, tc.reason.Message(), body["error"])
			assert.EqualValues(t, 4, body["log_id"])
		})
	}
}

func TestAccessDeniedHidesGuest(t *testing.T) {
	s := &stubAccess{res: service.Result{Reason: access.ReasonAccessDenied, LogID: 5,
		Guest: model.GuestPass{ID: 12, GuestName: "Sara", SessionID: 100}}}
	rec := do(accessRoutes(nurse, s), http.MethodPost, "/v1/access/guests/12/check-in", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, decode(t, rec), "guest")
	assert.NotContains(t, rec.Body.String(), "Sara")

	s.res.Reason = access.ReasonNotInside
	rec = do(accessRoutes(nurse, s), http.MethodPost, "/v1/access/guests/12/check-out", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec), "guest")
}

func TestAccessErrors(t *testing.T) {
	rec := do(accessRoutes(nurse, &stubAccess{err: service.ErrGuestNotFound}),
		http.MethodPost, "/v1/access/guests/99/check-in", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(accessRoutes(patient, &stubAccess{err: service.ErrNotPermitted}),
		http.MethodPost, "/v1/access/guests/1/check-in", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s := &stubAccess{}
	rec = do(accessRoutes(nurse, s), http.MethodPost, "/v1/access/guests/abc/check-in", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.calls)

	rec = do(accessRoutes(nurse, &stubAccess{err: context.DeadlineExceeded}),
		http.MethodPost, "/v1/access/guests/1/check-in", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScan(t *testing.T) {
	s := &stubAccess{res: service.Result{Granted: true, LogID: 8}}
	e := accessRoutes(officer, s)

	rec := do(e, http.MethodPost, "/v1/access/scan", `{"qr_code":"abc123","action":"exit","device_id":"gate-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.calls, 1)
	assert.Equal(t, "abc123", s.calls[0].target.QRCode)
	assert.Equal(t, access.CheckOut, s.calls[0].action)
	require.NotNil(t, s.calls[0].meta.DeviceID)
	assert.Equal(t, "gate-2", *s.calls[0].meta.DeviceID)
}

func TestScanValidation(t *testing.T) {
	s := &stubAccess{}
	e := accessRoutes(officer, s)

	rec := do(e, http.MethodPost, "/v1/access/scan", `{"qr_code":"abc","action":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "action")

	rec = do(e, http.MethodPost, "/v1/access/scan", `{"action":"in"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/access/scan", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.calls)
}

// ----- guest passes -----

type stubPasses struct {
	policy   access.PassPolicy
	issued   []service.IssueRequest
	issueErr error
	decided  []string
	pass     model.GuestPass
	err      error
}

func (s *stubPasses) Policy() access.PassPolicy { return s.policy }

func (s *stubPasses) IssueGuestPass(_ context.Context, in service.IssueRequest) (model.GuestPass, error) {
	s.issued = append(s.issued, in)
	if s.issueErr != nil {
		return model.GuestPass{}, s.issueErr
	}
	return model.GuestPass{ID: 77, SessionID: in.SessionID, GuestName: in.GuestName, PassType: in.PassType}, nil
}

func (s *stubPasses) Approve(_ context.Context, hid, gid, aid uint64) (model.GuestPass, error) {
	s.decided = append(s.decided, "approve")
	if hid != 1 {
		return model.GuestPass{}, service.ErrOtherHospital
	}
	return s.pass, s.err
}

func (s *stubPasses) Reject(_ context.Context, hid, gid, aid uint64) (model.GuestPass, error) {
	s.decided = append(s.decided, "reject")
	return s.pass, s.err
}

type stubSessions map[uint64]model.PatientSession

func (s stubSessions) ActiveForPatient(_ context.Context, uid uint64) (model.PatientSession, error) {
	if ps, found := s[uid]; found {
		return ps, nil
	}
	return model.PatientSession{}, repository.ErrNotFound
}

type stubGuests struct {
	byID        map[uint64]model.GuestPass
	deactivated []uint64
}

func (s *stubGuests) GetByID(_ context.Context, id uint64) (model.GuestPass, error) {
	if g, found := s.byID[id]; found {
		return g, nil
	}
	return model.GuestPass{}, repository.ErrNotFound
}

func (s *stubGuests) ListBySession(_ context.Context, sessionID uint64) ([]model.GuestPass, error) {
	out := []model.GuestPass{}
	for _, g := range s.byID {
		if g.SessionID == sessionID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubGuests) ListPending(context.Context, uint64) ([]model.GuestPass, error) {
	return []model.GuestPass{}, nil
}

func (s *stubGuests) Deactivate(_ context.Context, sessionID, guestID uint64) error {
	g, found := s.byID[guestID]
	if !found || g.SessionID != sessionID {
		return repository.ErrNotFound
	}
	s.deactivated = append(s.deactivated, guestID)
	return nil
}

func passRoutes(actor access.Actor, p *stubPasses, g *stubGuests) *echo.Echo {
	e := newEcho(actor)
	h := NewGuestPassHandler(p, stubSessions{40: {ID: 500, PatientUserID: 40, HospitalID: 1, Status: model.SessionActive}}, g)
	e.POST("/v1/patient/guests", h.Issue)
	e.GET("/v1/patient/guests", h.List)
	e.DELETE("/v1/patient/guests/:id", h.Deactivate)
	e.GET("/v1/patient/guests/:id/qr", h.QR)
	e.POST("/v1/hospital/guests/:id/approve", h.Approve)
	e.POST("/v1/hospital/guests/:id/reject", h.Reject)
	return e
}

func TestIssueUsesCallersSession(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	p := &stubPasses{policy: access.PassPolicy{Location: tehran}}
	e := passRoutes(patient, p, &stubGuests{})

	rec := do(e, http.MethodPost, "/v1/patient/guests",
		`{"guest_name":"Ali","guest_phone":"+989121234567","pass_type":"one_time","visit_date":"2026-11-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, p.issued, 1)
	in := p.issued[0]
	assert.Equal(t, uint64(500), in.SessionID)
	require.NotNil(t, in.VisitDate)
	assert.True(t, in.VisitDate.Equal(time.Date(2026, 11, 2, 0, 0, 0, 0, tehran)))
}

func TestIssueErrors(t *testing.T) {
	body := `{"guest_name":"Ali","guest_phone":"09121234567","pass_type":"frequent"}`

	p := &stubPasses{issueErr: service.ErrGuestLimitReached}
	rec := do(passRoutes(patient, p, &stubGuests{}), http.MethodPost, "/v1/patient/guests", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(access.ReasonGuestLimitReached), decode(t, rec)["reason"])

	p = &stubPasses{issueErr: access.ErrVisitDateRequired}
	rec = do(passRoutes(patient, p, &stubGuests{}), http.MethodPost, "/v1/patient/guests",
		`{"guest_name":"Ali","guest_phone":"09121234567","pass_type":"one_time"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p = &stubPasses{}
	rec = do(passRoutes(patient, p, &stubGuests{}), http.MethodPost, "/v1/patient/guests",
		`{"guest_name":"Ali","guest_phone":"09121234567","pass_type":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.issued)

	// a patient without a running stay
	lonely := access.Actor{UserID: 41, Role: model.RolePatient, HospitalID: 1}
	rec = do(passRoutes(lonely, p, &stubGuests{}), http.MethodPost, "/v1/patient/guests", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, p.issued)
}

func TestDeactivateOnlyOwnPasses(t *testing.T) {
	g := &stubGuests{byID: map[uint64]model.GuestPass{
		1: {ID: 1, SessionID: 500},
		2: {ID: 2, SessionID: 600},
	}}
	e := passRoutes(patient, &stubPasses{}, g)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/v1/patient/guests/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/v1/patient/guests/2", "").Code)
	assert.Equal(t, []uint64{1}, g.deactivated)

	rec := do(e, http.MethodGet, "/v1/patient/guests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)
}

func TestQRImage(t *testing.T) {
	g := &stubGuests{byID: map[uint64]model.GuestPass{
		1: {ID: 1, SessionID: 500, Status: model.PassApproved, IsActive: true, QRCode: "18a0c-5f1e2d3c"},
		2: {ID: 2, SessionID: 500, Status: model.PassPending, IsActive: true, QRCode: "18a0d-00aa"},
		3: {ID: 3, SessionID: 600, Status: model.PassApproved, IsActive: true, QRCode: "18a0e-11bb"},
	}}
	e := passRoutes(patient, &stubPasses{}, g)

	rec := do(e, http.MethodGet, "/v1/patient/guests/1/qr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = do(e, http.MethodGet, "/v1/patient/guests/2/qr", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(access.ReasonPassNotApproved), decode(t, rec)["reason"])

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/patient/guests/3/qr", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/patient/guests/9/qr", "").Code)
}

func TestApproveReject(t *testing.T) {
	p := &stubPasses{pass: model.GuestPass{ID: 3, Status: model.PassApproved}}
	rec := do(passRoutes(admin, p, &stubGuests{}), http.MethodPost, "/v1/hospital/guests/3/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["data"].(map[string]any)["status"])

	rec = do(passRoutes(stranger, p, &stubGuests{}), http.MethodPost, "/v1/hospital/guests/3/approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	p = &stubPasses{err: service.ErrPassNotPending}
	rec = do(passRoutes(admin, p, &stubGuests{}), http.MethodPost, "/v1/hospital/guests/3/reject", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"reject"}, p.decided)

	p = &stubPasses{err: service.ErrGuestLimitReached}
	rec = do(passRoutes(admin, p, &stubGuests{}), http.MethodPost, "/v1/hospital/guests/3/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(access.ReasonGuestLimitReached), decode(t, rec)["reason"])
}

// ----- audit -----

type stubLogs struct {
	filters  []repository.LogFilter
	dayStart time.Time
}

func (s *stubLogs) List(_ context.Context, f repository.LogFilter) ([]model.GuestLogView, error) {
	s.filters = append(s.filters, f)
	return []model.GuestLogView{}, nil
}

func (s *stubLogs) Dashboard(_ context.Context, hid uint64, dayStart time.Time) (repository.Dashboard, error) {
	s.dayStart = dayStart
	return repository.Dashboard{ActiveSessions: 4, GuestsInside: 2}, nil
}

type stubScans struct{ filters []repository.ScanFilter }

func (s *stubScans) List(_ context.Context, f repository.ScanFilter) ([]model.QrScan, error) {
	s.filters = append(s.filters, f)
	return []model.QrScan{}, nil
}

func auditRoutes(actor access.Actor, h *AuditHandler) *echo.Echo {
	e := newEcho(actor)
	e.GET("/v1/guest-logs", h.GuestLogs)
	e.GET("/v1/guest-logs/inside", h.Inside)
	e.GET("/v1/qr-scans", h.QrScans)
	e.GET("/v1/hospital/dashboard", h.Dashboard)
	return e
}

func TestGuestLogsAreScopedToCaller(t *testing.T) {
	logs := &stubLogs{}
	h := NewAuditHandler(logs, &stubScans{}, nil)

	rec := do(auditRoutes(nurse, h), http.MethodGet, "/v1/guest-logs?guest_id=12&granted=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(auditRoutes(officer, h), http.MethodGet, "/v1/guest-logs/inside", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(auditRoutes(admin, h), http.MethodGet, "/v1/guest-logs?inside=true&limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, logs.filters, 3)
	f := logs.filters[0]
	assert.Equal(t, uint64(1), f.HospitalID)
	assert.Equal(t, uint64(9), f.SectionID)
	assert.Equal(t, uint64(12), f.GuestID)
	require.NotNil(t, f.Granted)
	assert.False(t, *f.Granted)

	f = logs.filters[1]
	assert.Equal(t, uint64(3), f.WingID)
	assert.True(t, f.InsideOnly)

	f = logs.filters[2]
	assert.Zero(t, f.SectionID)
	assert.Zero(t, f.WingID)
	assert.True(t, f.InsideOnly)
	assert.Equal(t, 20, f.Limit)

	rec = do(auditRoutes(admin, h), http.MethodGet, "/v1/guest-logs?inside=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQrScansForOfficerAreOwn(t *testing.T) {
	scans := &stubScans{}
	h := NewAuditHandler(&stubLogs{}, scans, nil)

	require.Equal(t, http.StatusOK, do(auditRoutes(officer, h), http.MethodGet, "/v1/qr-scans", "").Code)
	require.Equal(t, http.StatusOK, do(auditRoutes(admin, h), http.MethodGet, "/v1/qr-scans?guest_id=4", "").Code)
	require.Len(t, scans.filters, 2)
	assert.Equal(t, uint64(6), scans.filters[0].SecurityID)
	assert.Zero(t, scans.filters[1].SecurityID)
	assert.Equal(t, uint64(4), scans.filters[1].GuestID)
}

func TestDashboardUsesHospitalDay(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	logs := &stubLogs{}
	h := NewAuditHandler(logs, &stubScans{}, tehran)
	// 22:00 UTC on Mar 1 is already Mar 2 in Tehran.
	h.now = func() time.Time { return time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC) }

	rec := do(auditRoutes(admin, h), http.MethodGet, "/v1/hospital/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, logs.dayStart.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, tehran)))
	data := decode(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 4, data["active_sessions"])
	assert.EqualValues(t, 2, data["guests_inside"])
}

// ----- devices -----

type stubDevices struct{ tokens map[string]uint64 }

func (s *stubDevices) UpsertDevice(_ context.Context, uid uint64, token, _ string) error {
	s.tokens[token] = uid
	return nil
}

func (s *stubDevices) DeleteDevice(_ context.Context, uid uint64, token string) error {
	if s.tokens[token] != uid {
		return repository.ErrNotFound
	}
	delete(s.tokens, token)
	return nil
}

func TestDevices(t *testing.T) {
	d := &stubDevices{tokens: map[string]uint64{"other": 99}}
	e := newEcho(patient)
	h := NewDeviceHandler(d)
	e.POST("/v1/devices", h.Register)
	e.DELETE("/v1/devices/:token", h.Delete)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/devices", `{"token":"fcm-1","platform":"android"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/devices", `{"token":"fcm-2","platform":"symbian"}`).Code)
	assert.Equal(t, uint64(40), d.tokens["fcm-1"])

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/v1/devices/other", "").Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/v1/devices/fcm-1", "").Code)
}

// ----- sessions -----

func TestDischargeWithGuestsInsideIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM patient_sessions WHERE id=").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_user_id", "hospital_id", "wing_id", "room_id", "status", "start_date", "end_date", "admitted_by"}).
			AddRow(9, 40, 1, 2, 10, model.SessionActive, start, nil, 7))
	mock.ExpectExec("UPDATE guests SET is_active=0").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM guest_logs WHERE session_id").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	e := newEcho(admin)
	e.POST("/v1/sessions/:id/discharge", NewSessionHandler(repository.NewSessionRepo(db)).Discharge)
	rec := do(e, http.MethodPost, "/v1/sessions/9/discharge", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, repository.ErrGuestsInside.Error(), decode(t, rec)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
