package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegle-his/aegle/internal/platform/httpx"
)

// Handler wires HTTP endpoints for suppliers and wards.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the reference data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.handleListSuppliers)
	r.Get("/suppliers/{id}", h.handleGetSupplier)
	r.Post("/suppliers", h.handleCreateSupplier)
	r.Get("/wards", h.handleListWards)
	r.Get("/wards/{code}", h.handleGetWard)
	r.Post("/wards", h.handleCreateWard)
}

type supplierRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

type wardRequest struct {
	Code string `json:"code" validate:"required,max=3"`
	Name string `json:"name" validate:"required"`
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "supplier id must be numeric")
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSupplierNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), Supplier{Name: req.Name, Phone: req.Phone, Email: req.Email})
	if err != nil {
		h.logger.Error("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) handleListWards(w http.ResponseWriter, r *http.Request) {
	wards, err := h.service.ListWards(r.Context())
	if err != nil {
		h.logger.Error("list wards", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wards)
}

func (h *Handler) handleGetWard(w http.ResponseWriter, r *http.Request) {
	ward, err := h.service.GetWard(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrWardNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ward)
}

func (h *Handler) handleCreateWard(w http.ResponseWriter, r *http.Request) {
	var req wardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ward, err := h.service.CreateWard(r.Context(), Ward{Code: req.Code, Name: req.Name})
	if err != nil {
		h.logger.Error("create ward", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ward)
}
