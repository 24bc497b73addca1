package handler

import (
	"net"
	"net/http"

	"taskboard/internal/app/service"
	"taskboard/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService   *service.AuthService
	authenticator func(http.Handler) http.Handler
}

func NewAuthHandler(authService *service.AuthService, authenticator func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{authService: authService, authenticator: authenticator}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)

	r.Group(func(private chi.Router) {
		private.Use(h.authenticator)
		private.Get("/profile", h.getProfile)
		private.Put("/profile", h.updateProfile)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ClientIP = clientIP(r)

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	user, err := h.authService.Profile(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req service.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(r.Context(), c.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware has
// already replaced with the forwarded address when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
