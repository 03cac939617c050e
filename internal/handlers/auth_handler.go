package handlers

import (
	"net/http"

	"ru-ticket/internal/services"
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
)

type AuthHandler struct {
	auth *services.AuthService
	resp *Responder
}

func NewAuthHandler(auth *services.AuthService, resp *Responder) *AuthHandler {
	return &AuthHandler{auth: auth, resp: resp}
}

// Register - POST /api/auth/register
func (h *AuthHandler) Register(e *core.RequestEvent) error {
	var in services.RegisterInput
	if err := bindJSON(e, &in); err != nil {
		return h.resp.Error(e, err)
	}

	usuario, err := h.auth.Register(e.Request.Context(), in)
	if err != nil {
		return h.resp.Error(e, err)
	}

	// registering signs the new account in
	_, token, err := h.auth.Login(e.Request.Context(), in.Email, in.Senha)
	if err != nil {
		return h.resp.Error(e, err)
	}
	http.SetCookie(e.Response, h.auth.Sessions().Cookie(token))

	return e.JSON(http.StatusCreated, map[string]any{"usuario": usuario})
}

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// Login - POST /api/auth/login
func (h *AuthHandler) Login(e *core.RequestEvent) error {
	var req loginRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	usuario, token, err := h.auth.Login(e.Request.Context(), req.Email, req.Senha)
	if err != nil {
		return h.resp.Error(e, err)
	}

	http.SetCookie(e.Response, h.auth.Sessions().Cookie(token))
	return e.JSON(http.StatusOK, map[string]any{
		"usuario": usuario,
		"token":   token,
	})
}

// Logout - POST /api/auth/logout
func (h *AuthHandler) Logout(e *core.RequestEvent) error {
	http.SetCookie(e.Response, h.auth.Sessions().ClearCookie())
	return e.JSON(http.StatusOK, map[string]any{"sucesso": true})
}

// Session - GET /api/session
func (h *AuthHandler) Session(e *core.RequestEvent) error {
	if !isUsuario(e.Auth) {
		return e.JSON(http.StatusOK, map[string]any{"autenticado": false})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"autenticado": true,
		"usuario":     models.UsuarioFromRecord(e.Auth),
	})
}

// CreateQRLogin - POST /api/auth/qr-login/token
func (h *AuthHandler) CreateQRLogin(e *core.RequestEvent) error {
	token, err := h.auth.CreateQRLogin(e.Request.Context(), e.Auth)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusCreated, map[string]any{"token": token})
}

type qrLoginRequest struct {
	Token string `json:"token"`
}

// RedeemQRLogin - POST /api/auth/qr-login
func (h *AuthHandler) RedeemQRLogin(e *core.RequestEvent) error {
	var req qrLoginRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	usuario, token, err := h.auth.RedeemQRLogin(e.Request.Context(), req.Token)
	if err != nil {
		return h.resp.Error(e, err)
	}

	http.SetCookie(e.Response, h.auth.Sessions().Cookie(token))
	return e.JSON(http.StatusOK, map[string]any{"usuario": usuario})
}
