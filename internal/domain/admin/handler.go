package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/pkg/jwt"
	"github.com/estimax/estimax-api/internal/pkg/response"
	"github.com/estimax/estimax-api/internal/pkg/validator"
)

// Handler handles admin HTTP requests
type Handler struct {
	svc    *Service
	tokens *jwt.Service
}

func NewHandler(svc *Service, tokens *jwt.Service) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// Login handles POST /admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Unauthorized(w, "invalid email or password")
		case errors.Is(err, ErrAdminInactive):
			response.Forbidden(w, "account is inactive")
		default:
			log.Error().Err(err).Msg("admin login failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, res)
}

// GetConfig handles GET /admin/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetConfig(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read system config")
		response.InternalError(w)
		return
	}
	response.OK(w, cfg)
}

// UpdateConfig handles PUT /admin/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	cfg, err := h.svc.UpdateConfig(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("failed to update system config")
		response.InternalError(w)
		return
	}

	response.OK(w, cfg)
}

// Routes mounts the admin API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.tokens))
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)
	})

	return r
}
