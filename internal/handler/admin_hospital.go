package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// AdminHandler serves the super admin endpoints that create tenants.
type AdminHandler struct {
	Cfg       config.Config
	Hospitals *repository.HospitalRepo
	Users     *repository.UserRepo
}

// NewAdminHandler panics when a repository is missing.
func NewAdminHandler(cfg config.Config, hospitals *repository.HospitalRepo, users *repository.UserRepo) *AdminHandler {
	if hospitals == nil || users == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Cfg: cfg, Hospitals: hospitals, Users: users}
}

type createHospitalReq struct {
	Name    string  `json:"name" validate:"required,min=2,max=150"`
	Address *string `json:"address" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,phone"`
}

type createAdminReq struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
}

// CreateHospital handles POST /v1/admin/hospitals.
func (h *AdminHandler) CreateHospital(c echo.Context) error {
	var req createHospitalReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	hosp := model.Hospital{Name: req.Name, Address: req.Address, Phone: req.Phone}
	if err := h.Hospitals.CreateHospital(ctx, &hosp); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, hosp)
}

// ListHospitals handles GET /v1/admin/hospitals.
func (h *AdminHandler) ListHospitals(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Hospitals.ListHospitals(ctx)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, list)
}

// CreateHospitalAdmin handles POST /v1/admin/hospitals/:id/admins.
func (h *AdminHandler) CreateHospitalAdmin(c echo.Context) error {
	hospitalID, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid hospital id")
	}
	var req createAdminReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	exists, err := h.Hospitals.HospitalExists(ctx, hospitalID)
	if err != nil {
		return failErr(c, err)
	}
	if !exists {
		return fail(c, http.StatusNotFound, "hospital not found")
	}
	id, err := h.Users.CreateStaff(ctx, repository.NewStaff{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Role:       model.RoleHospitalAdmin,
		HospitalID: &hospitalID,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"id": id, "hospital_id": hospitalID, "role": model.RoleHospitalAdmin})
}
