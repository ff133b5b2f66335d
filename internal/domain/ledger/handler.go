package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/middleware"
	"github.com/estimax/estimax-api/internal/pkg/response"
	"github.com/estimax/estimax-api/internal/pkg/validator"
)

// Handler handles ledger HTTP requests
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// InitUser handles POST /ledger/init
func (h *Handler) InitUser(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	status, err := h.svc.InitUser(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, status)
}

// GetStatus handles GET /ledger/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	status, err := h.svc.GetStatus(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, status)
}

// Reserve handles POST /ledger/reserve
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	var req ReserveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	res, err := h.svc.Reserve(r.Context(), deviceID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, res)
}

// Finalize handles POST /ledger/finalize. Called by the estimation
// gateway integration after the upstream call succeeds.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.Finalize(r.Context(), deviceID, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]bool{"ok": true})
}

// Rollback handles POST /ledger/rollback. Called when the upstream
// estimate fails; refunds the held credit.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.Rollback(r.Context(), deviceID, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]bool{"ok": true})
}

// Transactions handles GET /ledger/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.svc.Transactions(r.Context(), deviceID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}

// writeError classifies a service error into the response contract.
// Raw store errors never reach the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		response.InsufficientCredits(w)
	case errors.Is(err, ErrDailyLimitReached):
		response.DailyLimitReached(w)
	case errors.Is(err, ErrServiceUnavailable):
		response.ServiceUnavailable(w, "AI estimates are temporarily unavailable")
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, ErrReservationNotFound):
		response.BadRequest(w, "unknown or already settled request id")
	case errors.Is(err, ErrForeignReservation):
		log.Warn().
			Str("path", r.URL.Path).
			Str("device_id", middleware.GetDeviceID(r.Context())).
			Msg("reservation ownership mismatch")
		response.Error(w, http.StatusBadRequest, response.CodeForeignReservation, "request id not owned by caller")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("ledger request failed")
		response.InternalError(w)
	}
}
