package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ru-ticket/internal/services"
	"ru-ticket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func multipartAvatar(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, "foto.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUsuarioHandler_UploadAndServeAvatar(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()
	h := NewUsuarioHandler(services.NewUsuarioService(app, dir, 4096), NewResponder(false), 4096)
	aluno := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)

	body, contentType := multipartAvatar(t, "avatar", pngBytes)
	e, rec := newEvent(app, http.MethodPost, "/api/usuarios/me/avatar", body, aluno)
	e.Request.Header.Set("Content-Type", contentType)
	require.NoError(t, h.UploadAvatar(e))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	avatar := decode(t, rec)["usuario"].(map[string]any)["avatar"].(string)
	require.True(t, strings.HasPrefix(avatar, "/uploads/avatar_"+aluno.Id+"_"))
	assert.True(t, strings.HasSuffix(avatar, ".png"))

	rel := strings.TrimPrefix(avatar, "/uploads/")
	_, err := os.Stat(filepath.Join(dir, rel))
	require.NoError(t, err)

	e, rec = newEvent(app, http.MethodGet, avatar, nil, nil)
	e.Request.SetPathValue("path", rel)
	require.NoError(t, h.ServeUpload(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestUsuarioHandler_UploadAvatar_Rejects(t *testing.T) {
	app := newTestApp(t)
	h := NewUsuarioHandler(services.NewUsuarioService(app, t.TempDir(), 4096), NewResponder(false), 4096)
	aluno := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)

	for _, tt := range []struct {
		name  string
		field string
		data  []byte
	}{
		{"wrong field", "arquivo", pngBytes},
		{"not an image", "avatar", []byte("GIF? no, plain text")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartAvatar(t, tt.field, tt.data)
			e, rec := newEvent(app, http.MethodPost, "/api/usuarios/me/avatar", body, aluno)
			e.Request.Header.Set("Content-Type", contentType)
			require.NoError(t, h.UploadAvatar(e))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUsuarioHandler_ServeUpload_Traversal(t *testing.T) {
	app := newTestApp(t)
	h := NewUsuarioHandler(services.NewUsuarioService(app, t.TempDir(), 4096), NewResponder(false), 4096)

	for _, tt := range []struct {
		path string
		code int
	}{
		{"../../etc/passwd", http.StatusForbidden},
		{"avatars/../../secret", http.StatusForbidden},
		{"missing.png", http.StatusNotFound},
	} {
		e, rec := newEvent(app, http.MethodGet, "/uploads/x", nil, nil)
		e.Request.SetPathValue("path", tt.path)
		require.NoError(t, h.ServeUpload(e))
		assert.Equal(t, tt.code, rec.Code, tt.path)
	}
}

func TestUsuarioHandler_ProfileAndPassword(t *testing.T) {
	app := newTestApp(t)
	h := NewUsuarioHandler(services.NewUsuarioService(app, t.TempDir(), 4096), NewResponder(false), 4096)
	aluno := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)

	e, rec := newEvent(app, http.MethodPatch, "/api/usuarios/me", jsonBody(t, map[string]string{"nome": "Nome Novo"}), aluno)
	require.NoError(t, h.UpdateProfile(e))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Nome Novo", decode(t, rec)["usuario"].(map[string]any)["nome"])

	e, rec = newEvent(app, http.MethodPatch, "/api/usuarios/me/senha",
		jsonBody(t, map[string]string{"senha_atual": "errada", "nova_senha": "novasenha1"}), aluno)
	require.NoError(t, h.ChangePassword(e))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e, rec = newEvent(app, http.MethodPatch, "/api/usuarios/me/senha",
		jsonBody(t, map[string]string{"senha_atual": testPassword, "nova_senha": "novasenha1"}), aluno)
	require.NoError(t, h.ChangePassword(e))
	assert.Equal(t, http.StatusOK, rec.Code)
}
