package giftcard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripline/tripline-api/internal/middleware"
	"github.com/tripline/tripline-api/internal/pkg/response"
	"github.com/tripline/tripline-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createApplicationRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reason    string          `json:"reason" validate:"required,max=512"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty"`
}

type redeemRequest struct {
	Code      string          `json:"code" validate:"required,giftcard_code"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty"`
}

type processRequest struct {
	Notes string `json:"notes" validate:"max=512"`
}

func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	id, err := h.svc.CreateApplication(r.Context(), userID, req.Amount, req.Reason, req.BookingID, SourceUser)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]string{"application_id": id.String()})
}

func (h *Handler) ListOwnApplications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	apps, err := h.svc.ListApplicationsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, apps)
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Redeem(r.Context(), userID, req.Code, req.Amount, req.BookingID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	card, err := h.svc.GetCard(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, card)
}

// --- Admin endpoints ---

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	status := ApplicationStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	apps, err := h.svc.ListApplications(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, apps)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())

	appID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid application id")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	result, err := h.svc.Approve(r.Context(), appID, adminID, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())

	appID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid application id")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if err := h.svc.Reject(r.Context(), appID, adminID, req.Notes); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) CancelCard(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())

	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "code"), adminID); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) ExpireDue(w http.ResponseWriter, r *http.Request) {
	expired, err := h.svc.ExpireDue(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]int{"expired": expired})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, ErrGiftCardNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrInsufficientCardBalance),
		errors.Is(err, ErrNotCardOwner):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrCodeGenerationExhausted):
		response.ServiceUnavailable(w, "could not allocate a gift card code, retry")
	default:
		response.InternalError(w)
	}
}

// Routes are the user-facing gift card endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/applications", h.CreateApplication)
	r.Get("/applications", h.ListOwnApplications)
	r.Post("/redeem", h.Redeem)
	r.Get("/{code}", h.GetCard)
	return r
}

// AdminRoutes are the admin-only application and card endpoints.
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Get("/applications", h.ListApplications)
	r.Post("/applications/{id}/approve", h.Approve)
	r.Post("/applications/{id}/reject", h.Reject)
	r.Post("/giftcards/{code}/cancel", h.CancelCard)
	r.Post("/giftcards/expire", h.ExpireDue)
	return r
}
