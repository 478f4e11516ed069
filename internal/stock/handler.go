package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/aegle-his/aegle/internal/masterdata"
	"github.com/aegle-his/aegle/internal/medicals"
	"github.com/aegle-his/aegle/internal/platform/httpx"
)

// Metrics receives stock counters from the handler.
type Metrics interface {
	ObserveMovements(kind string, count int)
	ObserveInsufficientStock()
}

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	catalog  MedicalPort
	metrics  Metrics
	validate *validator.Validate
	lotGroup singleflight.Group
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service, catalog MedicalPort, metrics Metrics) *Handler {
	return &Handler{logger: logger, service: service, catalog: catalog, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/charges", h.handleCharges)
	r.Post("/stock/discharges", h.handleDischarges)
	r.Get("/stock/lots", h.handleLotsByMedical)
	r.Get("/stock/lots/{code}", h.handleGetLot)
	r.Put("/stock/lots", h.handleUpdateLots)
	r.Delete("/stock/lots/{code}", h.handleDeleteLot)
	r.Get("/stock/lots/{code}/medicals", h.handleLotMedicals)
	r.Get("/stock/last-movement", h.handleLastMovement)
	r.Get("/stock/critical", h.handleCritical)
}

type batchRequest struct {
	ReferenceNo string            `json:"reference_no"`
	Movements   []movementRequest `json:"movements" validate:"required,min=1,dive"`
}

// movementRequest carries one candidate movement. Under automatic lot
// selection the lot object is still required, with its fields left empty.
type movementRequest struct {
	TypeCode    string      `json:"type_code"`
	MedicalCode int         `json:"medical_code"`
	Date        time.Time   `json:"date" validate:"required"`
	Quantity    int         `json:"quantity"`
	RefNo       string      `json:"refno"`
	SupplierID  int64       `json:"supplier_id"`
	WardCode    string      `json:"ward_code"`
	Lot         *lotRequest `json:"lot"`
}

type lotRequest struct {
	Code            string           `json:"code"`
	PreparationDate time.Time        `json:"preparation_date"`
	DueDate         time.Time        `json:"due_date"`
	Cost            *decimal.Decimal `json:"cost"`
}

type lotResponse struct {
	Code            string           `json:"code"`
	MedicalCode     int              `json:"medical_code"`
	PreparationDate time.Time        `json:"preparation_date"`
	DueDate         time.Time        `json:"due_date"`
	Cost            *decimal.Decimal `json:"cost,omitempty"`
	Quantity        int              `json:"quantity"`
}

type movementResponse struct {
	ID          int64        `json:"id"`
	TypeCode    string       `json:"type_code"`
	MedicalCode int          `json:"medical_code"`
	Lot         *lotResponse `json:"lot,omitempty"`
	Date        time.Time    `json:"date"`
	Quantity    int          `json:"quantity"`
	RefNo       string       `json:"refno"`
	SupplierID  int64        `json:"supplier_id,omitempty"`
	WardCode    string       `json:"ward_code,omitempty"`
}

func (h *Handler) handleCharges(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, "charge", "+", h.service.InsertChargingMovements)
}

func (h *Handler) handleDischarges(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, "discharge", "-", h.service.InsertDischargingMovements)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, kind, operation string, insert func(context.Context, []Movement, string) ([]Movement, error)) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movs := make([]Movement, len(req.Movements))
	for i, item := range req.Movements {
		mov, err := h.toMovement(r.Context(), item, kind, operation)
		if err != nil {
			h.respondStockError(w, err)
			return
		}
		movs[i] = mov
	}
	inserted, err := insert(r.Context(), movs, req.ReferenceNo)
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveMovements(kind, len(inserted))
	}
	out := make([]movementResponse, len(inserted))
	for i, mov := range inserted {
		out[i] = toMovementResponse(mov)
	}
	httpx.JSON(w, http.StatusCreated, out)
}

// toMovement maps a request item to a candidate movement. Unknown medicals
// map to a nil reference so the validation engine reports them alongside any
// other problems instead of failing the request one field at a time.
func (h *Handler) toMovement(ctx context.Context, req movementRequest, kind, operation string) (Movement, error) {
	mov := Movement{Date: req.Date, Quantity: req.Quantity, RefNo: req.RefNo}
	typeCode := req.TypeCode
	if typeCode == "" {
		typeCode = kind
	}
	mov.Type = &MovementType{Code: typeCode, Operation: operation}
	if req.MedicalCode > 0 {
		med, err := h.catalog.GetByCode(ctx, req.MedicalCode)
		if err != nil && !errors.Is(err, medicals.ErrMedicalNotFound) {
			return Movement{}, err
		}
		if err == nil {
			mov.Medical = &med
		}
	}
	if req.SupplierID > 0 {
		mov.Supplier = &masterdata.Supplier{ID: req.SupplierID}
	}
	if req.WardCode != "" {
		mov.Ward = &masterdata.Ward{Code: req.WardCode}
	}
	if req.Lot != nil {
		mov.Lot = &Lot{
			Code:            req.Lot.Code,
			PreparationDate: req.Lot.PreparationDate,
			DueDate:         req.Lot.DueDate,
			Cost:            req.Lot.Cost,
		}
	}
	return mov, nil
}

func (h *Handler) handleLotsByMedical(w http.ResponseWriter, r *http.Request) {
	medicalCode, err := strconv.Atoi(r.URL.Query().Get("medical"))
	if err != nil || medicalCode <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "medical query parameter must be a positive integer")
		return
	}
	excludeEmpty := r.URL.Query().Get("exclude_empty") == "true"

	// Collapse concurrent identical reads: lot pickers poll this endpoint.
	key := fmt.Sprintf("lots:%d:%t", medicalCode, excludeEmpty)
	result, err, _ := h.lotGroup.Do(key, func() (any, error) {
		return h.service.LotsByMedical(r.Context(), medicalCode, excludeEmpty)
	})
	if err != nil {
		h.logger.Error("lots by medical", slog.Int("medical", medicalCode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	lots := result.([]Lot)
	out := make([]lotResponse, len(lots))
	for i, lot := range lots {
		out[i] = toLotResponse(lot)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.service.GetLot(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLotResponse(lot))
}

func (h *Handler) handleUpdateLots(w http.ResponseWriter, r *http.Request) {
	var req []struct {
		lotRequest
		MedicalCode int `json:"medical_code" validate:"required"`
		Quantity    int `json:"quantity" validate:"min=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	lots := make([]Lot, len(req))
	for i, item := range req {
		if err := h.validate.Struct(item); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		lots[i] = Lot{
			Code:            item.Code,
			MedicalCode:     item.MedicalCode,
			PreparationDate: item.PreparationDate,
			DueDate:         item.DueDate,
			Cost:            item.Cost,
			Quantity:        item.Quantity,
		}
	}
	updated, err := h.service.UpdateLots(r.Context(), lots)
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	out := make([]lotResponse, len(updated))
	for i, lot := range updated {
		out[i] = toLotResponse(lot)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteLot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLot(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondStockError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLotMedicals(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.MedicalCodesForLot(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, codes)
}

func (h *Handler) handleLastMovement(w http.ResponseWriter, r *http.Request) {
	last, err := h.service.LastMovementDate(r.Context())
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	var payload struct {
		LastMovementDate *time.Time `json:"last_movement_date"`
	}
	if !last.IsZero() {
		payload.LastMovementDate = &last
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleCritical(w http.ResponseWriter, r *http.Request) {
	medicalCode, err := strconv.Atoi(r.URL.Query().Get("medical"))
	if err != nil || medicalCode <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "medical query parameter must be a positive integer")
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "quantity query parameter must be a non-negative integer")
		return
	}
	critical, err := h.service.AlertCriticalQuantity(r.Context(), medicalCode, quantity)
	if err != nil {
		if errors.Is(err, medicals.ErrMedicalNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"critical": critical})
}

func (h *Handler) respondStockError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.ValidationProblem(w, verrs.Messages())
	case errors.Is(err, ErrInsufficientStock):
		if h.metrics != nil {
			h.metrics.ObserveInsufficientStock()
		}
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrDuplicateRefNo):
		httpx.Problem(w, http.StatusConflict, "Duplicate Reference Number", err.Error())
	case errors.Is(err, ErrLotInUse):
		httpx.Problem(w, http.StatusConflict, "Lot In Use", err.Error())
	case errors.Is(err, ErrLotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("stock request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toLotResponse(lot Lot) lotResponse {
	return lotResponse{
		Code:            lot.Code,
		MedicalCode:     lot.MedicalCode,
		PreparationDate: lot.PreparationDate,
		DueDate:         lot.DueDate,
		Cost:            lot.Cost,
		Quantity:        lot.Quantity,
	}
}

func toMovementResponse(mov Movement) movementResponse {
	resp := movementResponse{
		ID:       mov.ID,
		Date:     mov.Date,
		Quantity: mov.Quantity,
		RefNo:    mov.RefNo,
	}
	if mov.Type != nil {
		resp.TypeCode = mov.Type.Code
	}
	if mov.Medical != nil {
		resp.MedicalCode = mov.Medical.Code
	}
	if mov.Lot != nil {
		lot := toLotResponse(*mov.Lot)
		resp.Lot = &lot
	}
	if mov.Supplier != nil {
		resp.SupplierID = mov.Supplier.ID
	}
	if mov.Ward != nil {
		resp.WardCode = mov.Ward.Code
	}
	return resp
}
