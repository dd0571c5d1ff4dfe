package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/cmlabs-hris/hris-retropay/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type RetroPayHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	GetStats(w http.ResponseWriter, r *http.Request)
	GetByID(w http.ResponseWriter, r *http.Request)
	ListByEmployee(w http.ResponseWriter, r *http.Request)

	// Groups
	ListByGroup(w http.ResponseWriter, r *http.Request)
	ApproveGroup(w http.ResponseWriter, r *http.Request)
	CancelGroup(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	Approve(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	PayPeriod(w http.ResponseWriter, r *http.Request)
}

type retroPayHandlerImpl struct {
	retroPayService retropay.RetroPayService
}

func NewRetroPayHandler(retroPayService retropay.RetroPayService) RetroPayHandler {
	return &retroPayHandlerImpl{retroPayService: retroPayService}
}

// ========== READS ==========

func (h *retroPayHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var errs validator.ValidationErrors
	filter := retropay.RetroPayFilter{}
	query := r.URL.Query()

	if status := strings.TrimSpace(query.Get("status")); status != "" {
		s := retropay.Status(strings.ToUpper(status))
		filter.Status = &s
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
		if !validator.IsValidID(employeeID) {
			errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
		}
	}
	if groupID := query.Get("group_id"); groupID != "" {
		filter.GroupID = &groupID
		if !validator.IsValidID(groupID) {
			errs = append(errs, validator.ValidationError{Field: "group_id", Message: "must be a valid UUID"})
		}
	}
	if monthStr := query.Get("payment_month"); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil {
			errs = append(errs, validator.ValidationError{Field: "payment_month", Message: "must be a number"})
		} else {
			filter.PaymentMonth = &month
		}
	}
	if yearStr := query.Get("payment_year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			errs = append(errs, validator.ValidationError{Field: "payment_year", Message: "must be a number"})
		} else {
			filter.PaymentYear = &year
		}
	}
	if len(errs) > 0 {
		response.HandleError(w, errs)
		return
	}

	result, err := h.retroPayService.FindAll(r.Context(), claims.CompanyID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *retroPayHandlerImpl) GetStats(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var year *int
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			response.HandleError(w, validator.ValidationErrors{{Field: "year", Message: "must be a number"}})
			return
		}
		year = &y
	}

	result, err := h.retroPayService.GetStats(r.Context(), claims.CompanyID, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *retroPayHandlerImpl) GetByID(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id, ok := idParam(w, r, "id", "Retro pay ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.FindByID(r.Context(), claims.CompanyID, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *retroPayHandlerImpl) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	employeeID, ok := idParam(w, r, "employeeId", "Employee ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.FindByEmployee(r.Context(), claims.CompanyID, employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *retroPayHandlerImpl) ListByGroup(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	groupID, ok := idParam(w, r, "groupId", "Group ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.FindByGroup(r.Context(), claims.CompanyID, groupID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== CREATE ==========

func (h *retroPayHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req retropay.CreateRetroPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Create retro pay decode error", "error", err)
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.retroPayService.Create(r.Context(), claims.CompanyID, claims.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Retro pay created successfully", result)
}

// ========== LIFECYCLE ==========

func (h *retroPayHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id, ok := idParam(w, r, "id", "Retro pay ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.Approve(r.Context(), claims.CompanyID, id, claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Retro pay approved successfully", result)
}

func (h *retroPayHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id, ok := idParam(w, r, "id", "Retro pay ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.MarkPaid(r.Context(), claims.CompanyID, id, claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Retro pay marked as paid", result)
}

func (h *retroPayHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id, ok := idParam(w, r, "id", "Retro pay ID")
	if !ok {
		return
	}

	req, ok := decodeCancelRequest(w, r)
	if !ok {
		return
	}

	result, err := h.retroPayService.Cancel(r.Context(), claims.CompanyID, id, claims.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Retro pay cancelled successfully", result)
}

func (h *retroPayHandlerImpl) ApproveGroup(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	groupID, ok := idParam(w, r, "groupId", "Group ID")
	if !ok {
		return
	}

	result, err := h.retroPayService.ApproveGroup(r.Context(), claims.CompanyID, groupID, claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Retro pay group approved", result)
}

func (h *retroPayHandlerImpl) CancelGroup(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	groupID, ok := idParam(w, r, "groupId", "Group ID")
	if !ok {
		return
	}

	req, ok := decodeCancelRequest(w, r)
	if !ok {
		return
	}

	result, err := h.retroPayService.CancelGroup(r.Context(), claims.CompanyID, groupID, claims.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Retro pay group cancelled", result)
}

func (h *retroPayHandlerImpl) PayPeriod(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req retropay.PayPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.retroPayService.PayPeriod(r.Context(), claims.CompanyID, claims.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Approved retro pay for the period marked as paid", result)
}

// idParam reads a UUID path parameter, writing a 400 when it is missing or malformed.
func idParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	id := chi.URLParam(r, name)
	if id == "" {
		response.BadRequest(w, label+" is required", nil)
		return "", false
	}
	if !validator.IsValidID(id) {
		response.BadRequest(w, "Invalid "+label, nil)
		return "", false
	}
	return id, true
}

// The cancel body is optional.
func decodeCancelRequest(w http.ResponseWriter, r *http.Request) (retropay.CancelRetroPayRequest, bool) {
	var req retropay.CancelRetroPayRequest
	if r.Body == nil {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return req, false
	}
	return req, true
}
