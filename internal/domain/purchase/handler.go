package purchase

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/middleware"
	"github.com/estimax/estimax-api/internal/pkg/response"
	"github.com/estimax/estimax-api/internal/pkg/revenuecat"
)

// Handler handles purchase webhook and restore requests
type Handler struct {
	svc *Service
	rc  *revenuecat.Client
}

func NewHandler(svc *Service, rc *revenuecat.Client) *Handler {
	return &Handler{svc: svc, rc: rc}
}

// Webhook handles POST /webhooks/revenuecat. RevenueCat retries
// deliveries on non-2xx, so transient failures return 500 and
// permanently bad payloads return 200 to stop the retry loop.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.rc.VerifyWebhookAuth(r.Header.Get("Authorization")) {
		response.Unauthorized(w, "invalid webhook authorization")
		return
	}

	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("unparseable webhook payload")
		response.OK(w, map[string]bool{"received": true})
		return
	}

	if err := h.svc.HandleEvent(r.Context(), payload.Event); err != nil {
		log.Error().Err(err).
			Str("event_id", payload.Event.ID).
			Str("event_type", payload.Event.Type).
			Msg("webhook event processing failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]bool{"received": true})
}

// Restore handles POST /ledger/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())

	res, err := h.svc.Restore(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		log.Error().Err(err).Msg("restore failed")
		response.InternalError(w)
		return
	}

	response.OK(w, res)
}
