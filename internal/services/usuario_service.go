package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/gabriel-vasile/mimetype"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"
)

// UploadsURLPrefix is the public path uploaded files are served under.
const UploadsURLPrefix = "/uploads/"

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type UsuarioService struct {
	app        core.App
	logger     *slog.Logger
	uploadsDir string
	maxAvatar  int64
	now        func() time.Time
}

func NewUsuarioService(app core.App, uploadsDir string, maxAvatar int64) *UsuarioService {
	return &UsuarioService{
		app:        app,
		logger:     app.Logger().With("service", "usuarios"),
		uploadsDir: uploadsDir,
		maxAvatar:  maxAvatar,
		now:        time.Now,
	}
}

type UpdateProfileInput struct {
	Nome string `json:"nome"`
}

func (s *UsuarioService) UpdateProfile(ctx context.Context, usuario *core.Record, in UpdateProfileInput) (*models.Usuario, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Nome, validation.Required, validation.Length(2, 120)),
	); err != nil {
		return nil, status.Invalid(err.Error())
	}

	usuario.Set("nome", in.Nome)
	if err := s.app.SaveWithContext(ctx, usuario); err != nil {
		return nil, fmt.Errorf("save usuario: %w", err)
	}
	return models.UsuarioFromRecord(usuario), nil
}

type ChangePasswordInput struct {
	SenhaAtual string `json:"senha_atual"`
	NovaSenha  string `json:"nova_senha"`
}

func (s *UsuarioService) ChangePassword(ctx context.Context, usuario *core.Record, in ChangePasswordInput) error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.SenhaAtual, validation.Required),
		validation.Field(&in.NovaSenha, validation.Required, validation.Length(minPasswordLength, 72)),
	); err != nil {
		return status.Invalid(err.Error())
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usuario.GetString("senha_hash")), []byte(in.SenhaAtual)); err != nil {
		return status.Invalid("Senha atual incorreta")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NovaSenha), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt: %w", err)
	}

	usuario.Set("senha_hash", string(hash))
	if err := s.app.SaveWithContext(ctx, usuario); err != nil {
		return fmt.Errorf("save usuario: %w", err)
	}

	s.logger.Info("Password changed", "usuarioID", usuario.Id)
	return nil
}

// SaveAvatar stores an uploaded image as the usuario's avatar. The content
// type is sniffed from the bytes; the client-supplied one is ignored.
func (s *UsuarioService) SaveAvatar(ctx context.Context, usuario *core.Record, r io.Reader) (*models.Usuario, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxAvatar+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return nil, status.Invalid("Arquivo vazio")
	}
	if int64(len(data)) > s.maxAvatar {
		return nil, status.Invalid(fmt.Sprintf("Arquivo excede o limite de %d bytes", s.maxAvatar))
	}

	mtype := mimetype.Detect(data)
	ext, ok := avatarExtensions[mtype.String()]
	if !ok {
		return nil, status.Invalid("Formato de imagem não suportado (use PNG, JPEG ou WebP)")
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	name := fmt.Sprintf("avatar_%s_%d%s", usuario.Id, s.now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(s.uploadsDir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write avatar: %w", err)
	}

	previous := usuario.GetString("avatar")
	usuario.Set("avatar", UploadsURLPrefix+name)
	if err := s.app.SaveWithContext(ctx, usuario); err != nil {
		os.Remove(filepath.Join(s.uploadsDir, name))
		return nil, fmt.Errorf("save usuario: %w", err)
	}

	s.removeOldAvatar(usuario.Id, previous)

	s.logger.Info("Avatar updated", "usuarioID", usuario.Id, "file", name, "mime", mtype.String())
	return models.UsuarioFromRecord(usuario), nil
}

func (s *UsuarioService) removeOldAvatar(usuarioID, previous string) {
	old := strings.TrimPrefix(previous, UploadsURLPrefix)
	if old == "" || old == previous || !strings.HasPrefix(old, "avatar_"+usuarioID+"_") {
		return
	}
	path, err := ResolveUploadPath(s.uploadsDir, old)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove old avatar", "file", old, "error", err)
	}
}

// UploadPath resolves a request path under the uploads directory.
func (s *UsuarioService) UploadPath(rel string) (string, error) {
	return ResolveUploadPath(s.uploadsDir, rel)
}

// ResolveUploadPath joins rel onto root and rejects anything that would
// escape root: parent segments, absolute paths and NUL bytes.
func ResolveUploadPath(root, rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", status.ErrFileNotFound
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", status.ErrForbidden
	}
	for _, seg := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", status.ErrForbidden
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve uploads dir: %w", err)
	}
	full := filepath.Join(absRoot, filepath.Clean(rel))
	if !strings.HasPrefix(full, absRoot+string(os.PathSeparator)) {
		return "", status.ErrForbidden
	}
	return full, nil
}
