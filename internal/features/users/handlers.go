// Package users: handlers.go обрабатывает HTTP-запросы /api/auth.
package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы аутентификации и профиля.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PublicRoutes монтирует маршруты без аутентификации в /api/auth.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/token/refresh", h.Refresh)
	r.Post("/google-signup", h.social(ProviderGoogle))
	r.Post("/apple-signup", h.social(ProviderApple))
	r.Post("/otp/send", h.SendOTP)
	r.Post("/otp/verify", h.VerifyOTP)
	r.Post("/user/reset-password", h.ResetPassword)
}

// PrivateRoutes монтирует маршруты профиля в /api/auth (под аутентификацией).
func (h *Handler) PrivateRoutes(r chi.Router) {
	r.Get("/user/me", h.Me)
	r.Patch("/user/edit-profile", h.EditProfile)
}

// Signup: POST /signup {email, name, password} → 201 {user, access, refresh}
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.Signup(r.Context(), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, resp)
}

// Login: POST /login {email, password}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, resp)
}

// Refresh: POST /token/refresh {refresh} → {access, refresh}
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	pair, err := h.service.Refresh(req.Refresh)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, pair)
}

func (h *Handler) social(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SocialRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.RespondError(w, r, err)
			return
		}
		resp, err := h.service.Social(r.Context(), provider, req.AccessToken)
		if err != nil {
			server.RespondError(w, r, err)
			return
		}
		server.RespondJSON(w, http.StatusOK, resp)
	}
}

// SendOTP: POST /otp/send {email}
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPSendRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.SendOTP(r.Context(), req.Email)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, resp)
}

// VerifyOTP: POST /otp/verify {email, otp}
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPVerifyRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.VerifyOTP(r.Context(), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, resp)
}

// ResetPassword: POST /user/reset-password {email, otp, password}
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, resp)
}

// Me: GET /user/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, p)
}

// EditProfile: PATCH /user/edit-profile
func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	var req EditProfileRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	p, err := h.service.EditProfile(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, p)
}
