package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// maxBulkRooms caps one bulk room request.
const maxBulkRooms = 500

// HospitalHandler serves the structure of one hospital (wings, rooms,
// nursing sections and staff) to its admins.  Every call is scoped to
// the caller's hospital.
type HospitalHandler struct {
	Cfg       config.Config
	Hospitals *repository.HospitalRepo
	Users     *repository.UserRepo
}

// NewHospitalHandler panics when a repository is missing.
func NewHospitalHandler(cfg config.Config, hospitals *repository.HospitalRepo, users *repository.UserRepo) *HospitalHandler {
	if hospitals == nil || users == nil {
		panic("nil repository passed to NewHospitalHandler")
	}
	return &HospitalHandler{Cfg: cfg, Hospitals: hospitals, Users: users}
}

type createWingReq struct {
	Name  string `json:"name" validate:"required,max=100"`
	Floor *int32 `json:"floor"`
}

type createRoomsReq struct {
	RoomNumbers []string `json:"room_numbers" validate:"required,min=1,max=500,dive,required,max=20"`
}

type bulkRoomsReq struct {
	Prefix string `json:"prefix" validate:"max=10"`
	From   int    `json:"from" validate:"min=0"`
	To     int    `json:"to" validate:"gtefield=From"`
}

type createSectionReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

type sectionRoomsReq struct {
	RoomIDs []uint64 `json:"room_ids" validate:"max=1000,dive,gt=0"`
}

type createStaffReq struct {
	Name      string  `json:"name" validate:"required,max=120"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Role      string  `json:"role" validate:"required,staffrole"`
	SectionID *uint64 `json:"section_id" validate:"required_if=Role NURSE"`
	WingID    *uint64 `json:"wing_id"`
}

// hospitalOf returns the hospital of the caller.
func hospitalOf(c echo.Context) (uint64, bool) {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return 0, false
	}
	return a.HospitalID, true
}

// CreateWing handles POST /v1/hospital/wings.
func (h *HospitalHandler) CreateWing(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	var req createWingReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	w := model.Wing{HospitalID: hid, Name: req.Name, Floor: req.Floor}
	if err := h.Hospitals.CreateWing(ctx, &w); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, w)
}

// ListWings handles GET /v1/hospital/wings.
func (h *HospitalHandler) ListWings(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	wings, err := h.Hospitals.ListWings(ctx, hid)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, wings)
}

// CreateRooms handles POST /v1/hospital/wings/:id/rooms.
func (h *HospitalHandler) CreateRooms(c echo.Context) error {
	var req createRoomsReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	numbers := make([]string, 0, len(req.RoomNumbers))
	for _, n := range req.RoomNumbers {
		if n = strings.TrimSpace(n); n != "" {
			numbers = append(numbers, n)
		}
	}
	return h.addRooms(c, numbers)
}

// BulkRooms handles POST /v1/hospital/wings/:id/rooms/bulk.  Numbers
// that already exist in the wing are skipped.
func (h *HospitalHandler) BulkRooms(c echo.Context) error {
	var req bulkRoomsReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	if req.To-req.From+1 > maxBulkRooms {
		return fail(c, http.StatusBadRequest, "at most 500 rooms per request")
	}
	return h.addRooms(c, repository.BulkRoomNumbers(strings.TrimSpace(req.Prefix), req.From, req.To))
}

func (h *HospitalHandler) addRooms(c echo.Context, numbers []string) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	wingID, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid wing id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Hospitals.GetWing(ctx, hid, wingID); err != nil {
		return failErr(c, err)
	}
	created, err := h.Hospitals.CreateRooms(ctx, hid, wingID, numbers)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"created": created,
		"skipped": len(numbers) - len(created),
	})
}

// ListRooms handles GET /v1/hospital/rooms?status=&wing_id=.
func (h *HospitalHandler) ListRooms(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	status := c.QueryParam("status")
	switch status {
	case "", model.RoomAvailable, model.RoomOccupied, model.RoomMaintenance:
	default:
		return fail(c, http.StatusBadRequest, "status must be available, occupied or maintenance")
	}
	wingID, valid := queryID(c, "wing_id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid wing_id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rooms, err := h.Hospitals.ListRooms(ctx, hid, wingID, status)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rooms)
}

// CreateSection handles POST /v1/hospital/sections.
func (h *HospitalHandler) CreateSection(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	var req createSectionReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s := model.NursingSection{HospitalID: hid, Name: req.Name}
	if err := h.Hospitals.CreateSection(ctx, &s); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, s)
}

// ReplaceSectionRooms handles PUT /v1/hospital/sections/:id/rooms.
func (h *HospitalHandler) ReplaceSectionRooms(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	sectionID, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid section id")
	}
	var req sectionRoomsReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	seen := make(map[uint64]bool, len(req.RoomIDs))
	ids := make([]uint64, 0, len(req.RoomIDs))
	for _, id := range req.RoomIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Hospitals.GetSection(ctx, hid, sectionID)
	if err != nil {
		return failErr(c, err)
	}
	if err := h.Hospitals.ReplaceSectionRooms(ctx, hid, sectionID, ids); err != nil {
		return failErr(c, err)
	}
	s.RoomIDs = ids
	return ok(c, http.StatusOK, s)
}

// CreateStaff handles POST /v1/hospital/staff.  Nurses need a section
// of the hospital; security officers may be pinned to one wing.
func (h *HospitalHandler) CreateStaff(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	var req createStaffReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	staff := repository.NewStaff{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Role:       req.Role,
		HospitalID: &hid,
	}
	switch req.Role {
	case model.RoleNurse:
		if _, err := h.Hospitals.GetSection(ctx, hid, *req.SectionID); err != nil {
			return failErr(c, err)
		}
		staff.SectionID = req.SectionID
	case model.RoleSecurity:
		if req.WingID != nil && *req.WingID != 0 {
			if _, err := h.Hospitals.GetWing(ctx, hid, *req.WingID); err != nil {
				return failErr(c, err)
			}
			staff.WingID = req.WingID
		}
	}
	id, err := h.Users.CreateStaff(ctx, staff, h.Cfg.BcryptCost)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"id":          id,
		"role":        req.Role,
		"hospital_id": hid,
		"section_id":  staff.SectionID,
		"wing_id":     staff.WingID,
	})
}

// ListStaff handles GET /v1/hospital/staff?role=.
func (h *HospitalHandler) ListStaff(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	role := strings.ToUpper(c.QueryParam("role"))
	switch role {
	case "", model.RoleHospitalAdmin, model.RoleNurse, model.RoleSecurity:
	default:
		return fail(c, http.StatusBadRequest, "role must be HOSPITAL_ADMIN, NURSE or SECURITY")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	staff, err := h.Users.ListStaff(ctx, hid, role)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, staff)
}
