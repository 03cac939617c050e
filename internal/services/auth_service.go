package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ru-ticket/internal/session"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type AuthService struct {
	app      core.App
	logger   *slog.Logger
	sessions *session.Manager
}

func NewAuthService(app core.App, sessions *session.Manager) *AuthService {
	return &AuthService{
		app:      app,
		logger:   app.Logger().With("service", "auth"),
		sessions: sessions,
	}
}

func (s *AuthService) Sessions() *session.Manager { return s.sessions }

type RegisterInput struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Senha string `json:"senha"`
}

func (in RegisterInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Nome, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Senha, validation.Required, validation.Length(minPasswordLength, 72)),
	)
	if err != nil {
		return status.Invalid(err.Error())
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular usuario account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Usuario, error) {
	return s.CreateUsuario(ctx, in, models.RoleUsuario)
}

func (s *AuthService) CreateUsuario(ctx context.Context, in RegisterInput, role models.Role) (*models.Usuario, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, status.Invalid("role: must be a valid value.")
	}

	if _, err := s.findByEmail(in.Email); err == nil {
		return nil, status.ErrEmailTaken
	} else if !errors.Is(err, status.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	collection, err := s.app.FindCollectionByNameOrId(models.CollectionUsuarios)
	if err != nil {
		return nil, fmt.Errorf("find usuarios collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("nome", in.Nome)
	record.Set("email", in.Email)
	record.Set("senha_hash", string(hash))
	record.Set("role", string(role))

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("save usuario: %w", err)
	}

	s.logger.Info("Usuario created", "usuarioID", record.Id, "role", role)
	return models.UsuarioFromRecord(record), nil
}

// EnsureAdmin creates an admin account or promotes and re-keys an existing one.
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.Usuario, error) {
	record, err := s.findByEmail(normalizeEmail(in.Email))
	if errors.Is(err, status.ErrUserNotFound) {
		return s.CreateUsuario(ctx, in, models.RoleAdmin)
	}
	if err != nil {
		return nil, err
	}

	if err := validation.Validate(in.Senha, validation.Required, validation.Length(minPasswordLength, 72)); err != nil {
		return nil, status.Invalid("senha: " + err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	record.Set("role", string(models.RoleAdmin))
	record.Set("senha_hash", string(hash))
	if strings.TrimSpace(in.Nome) != "" {
		record.Set("nome", strings.TrimSpace(in.Nome))
	}
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("save usuario: %w", err)
	}

	s.logger.Info("Usuario promoted to admin", "usuarioID", record.Id)
	return models.UsuarioFromRecord(record), nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, senha string) (*models.Usuario, string, error) {
	record, err := s.findByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, status.ErrUserNotFound) {
			return nil, "", status.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.GetString("senha_hash")), []byte(senha)); err != nil {
		s.logger.Info("Failed login attempt", "usuarioID", record.Id)
		return nil, "", status.ErrInvalidCredentials
	}

	token, err := s.issue(record)
	if err != nil {
		return nil, "", err
	}
	return models.UsuarioFromRecord(record), token, nil
}

func (s *AuthService) issue(record *core.Record) (string, error) {
	token, err := s.sessions.Issue(record.Id, record.GetString("email"), record.GetString("role"))
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return token, nil
}

// SessionUser resolves a session token to its usuario record.
func (s *AuthService) SessionUser(ctx context.Context, token string) (*core.Record, error) {
	if token == "" {
		return nil, status.ErrUnauthenticated
	}

	claims, err := s.sessions.Verify(token)
	if err != nil {
		return nil, err
	}

	record, err := s.app.FindRecordById(models.CollectionUsuarios, claims.UserID)
	if err != nil {
		return nil, status.ErrUnauthenticated
	}
	return record, nil
}

// CreateQRLogin issues a single-use login token for the given usuario.
func (s *AuthService) CreateQRLogin(ctx context.Context, usuario *core.Record) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId(models.CollectionQRLoginTokens)
	if err != nil {
		return "", fmt.Errorf("find qr login collection: %w", err)
	}

	jti := uuid.NewString()
	record := core.NewRecord(collection)
	record.Set("usuario", usuario.Id)
	record.Set("jti", jti)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return "", fmt.Errorf("save qr login token: %w", err)
	}

	token, err := s.sessions.IssueQRLogin(usuario.Id, usuario.GetString("email"), usuario.GetString("role"), jti)
	if err != nil {
		return "", fmt.Errorf("issue qr login: %w", err)
	}
	return token, nil
}

// RedeemQRLogin consumes a QR login token and issues a regular session.
// A token can be redeemed once; the consume step is a conditional update.
func (s *AuthService) RedeemQRLogin(ctx context.Context, token string) (*models.Usuario, string, error) {
	claims, err := s.sessions.VerifyQRLogin(token)
	if err != nil {
		return nil, "", err
	}

	row, err := s.app.FindFirstRecordByData(models.CollectionQRLoginTokens, "jti", claims.ID)
	if err != nil {
		return nil, "", status.ErrUnauthenticated
	}
	if row.GetString("usuario") != claims.UserID {
		return nil, "", status.ErrUnauthenticated
	}

	res, err := s.app.NonconcurrentDB().NewQuery(
		"UPDATE qr_login_tokens SET used_at = {:now} WHERE id = {:id} AND (used_at = '' OR used_at IS NULL)",
	).Bind(dbx.Params{
		"now": types.NowDateTime().String(),
		"id":  row.Id,
	}).Execute()
	if err != nil {
		return nil, "", fmt.Errorf("consume qr login token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("QR login token replayed", "usuarioID", claims.UserID)
		return nil, "", status.ErrQRTokenUsed
	}

	record, err := s.app.FindRecordById(models.CollectionUsuarios, claims.UserID)
	if err != nil {
		return nil, "", status.ErrUnauthenticated
	}

	sessionToken, err := s.issue(record)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("QR login redeemed", "usuarioID", record.Id)
	return models.UsuarioFromRecord(record), sessionToken, nil
}

func (s *AuthService) findByEmail(email string) (*core.Record, error) {
	record, err := s.app.FindFirstRecordByData(models.CollectionUsuarios, "email", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrUserNotFound
		}
		return nil, fmt.Errorf("find usuario by email: %w", err)
	}
	return record, nil
}
