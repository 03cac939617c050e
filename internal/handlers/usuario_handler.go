package handlers

import (
	"fmt"
	"net/http"
	"os"

	"ru-ticket/internal/services"
	"ru-ticket/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

const avatarFormField = "avatar"

type UsuarioHandler struct {
	usuarios  *services.UsuarioService
	resp      *Responder
	maxUpload int64
}

func NewUsuarioHandler(usuarios *services.UsuarioService, resp *Responder, maxAvatar int64) *UsuarioHandler {
	return &UsuarioHandler{
		usuarios: usuarios,
		resp:     resp,
		// multipart framing overhead on top of the file itself
		maxUpload: maxAvatar + 64<<10,
	}
}

// UpdateProfile - PATCH /api/usuarios/me
func (h *UsuarioHandler) UpdateProfile(e *core.RequestEvent) error {
	var in services.UpdateProfileInput
	if err := bindJSON(e, &in); err != nil {
		return h.resp.Error(e, err)
	}

	usuario, err := h.usuarios.UpdateProfile(e.Request.Context(), e.Auth, in)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"usuario": usuario})
}

// ChangePassword - PATCH /api/usuarios/me/senha
func (h *UsuarioHandler) ChangePassword(e *core.RequestEvent) error {
	var in services.ChangePasswordInput
	if err := bindJSON(e, &in); err != nil {
		return h.resp.Error(e, err)
	}

	if err := h.usuarios.ChangePassword(e.Request.Context(), e.Auth, in); err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"sucesso": true})
}

// UploadAvatar - POST /api/usuarios/me/avatar (multipart field "avatar")
func (h *UsuarioHandler) UploadAvatar(e *core.RequestEvent) error {
	e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, h.maxUpload)

	file, _, err := e.Request.FormFile(avatarFormField)
	if err != nil {
		return h.resp.Error(e, fmt.Errorf("%w: %v", status.Invalid("Envie a imagem no campo \"avatar\""), err))
	}
	defer file.Close()

	usuario, err := h.usuarios.SaveAvatar(e.Request.Context(), e.Auth, file)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"usuario": usuario})
}

// ServeUpload - GET /uploads/{path...}
func (h *UsuarioHandler) ServeUpload(e *core.RequestEvent) error {
	path, err := h.usuarios.UploadPath(e.Request.PathValue("path"))
	if err != nil {
		return h.resp.Error(e, err)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return h.resp.Error(e, status.ErrFileNotFound)
	}

	e.Response.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(e.Response, e.Request, path)
	return nil
}
