package refund

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripline/tripline-api/internal/middleware"
	"github.com/tripline/tripline-api/internal/pkg/response"
	"github.com/tripline/tripline-api/internal/pkg/validator"
)

type Handler struct {
	engine *Engine
	bonus  *BonusCalculator
}

func NewHandler(engine *Engine, bonus *BonusCalculator) *Handler {
	return &Handler{engine: engine, bonus: bonus}
}

type cancelRequest struct {
	RefundChoice string `json:"refund_choice" validate:"required,refund_choice"`
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.engine.ProcessCancellation(r.Context(), bookingID, userID, Choice(req.RefundChoice))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidChoice):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrBookingNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotBookingOwner):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrAlreadyCancelled):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

func (h *Handler) LoyaltyBonus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	bonus, err := h.bonus.Calculate(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, bonus)
}

// Routes mounts the cancellation endpoint under /bookings.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/{id}/cancel", h.CancelBooking)
	return r
}

// LoyaltyRoutes exposes the bonus preview.
func (h *Handler) LoyaltyRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/bonus", h.LoyaltyBonus)
	return r
}
