package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ru-ticket/internal/session"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *session.Manager) {
	t.Helper()
	app := newTestApp(t)
	sessions := session.NewManager("test-secret", 7*24*time.Hour, false)
	return NewAuthService(app, sessions), sessions
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, sessions := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Nome: "Ana", Email: " Ana@UFX.br ", Senha: "segredo123"})
	require.NoError(t, err)
	assert.Equal(t, "ana@ufx.br", user.Email)
	assert.Equal(t, models.RoleUsuario, user.Role)

	_, err = svc.Register(ctx, RegisterInput{Nome: "Ana 2", Email: "ana@ufx.br", Senha: "outrasenha"})
	assert.ErrorIs(t, err, status.ErrEmailTaken)

	logged, token, err := svc.Login(ctx, "ANA@ufx.br", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := sessions.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "usuario", claims.Role)

	record, err := svc.SessionUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.Id)

	_, _, err = svc.Login(ctx, "ana@ufx.br", "errada")
	assert.ErrorIs(t, err, status.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "ninguem@ufx.br", "segredo123")
	assert.ErrorIs(t, err, status.ErrInvalidCredentials)
}

func TestAuthService_Register_Invalid(t *testing.T) {
	svc, _ := newAuthService(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"no name", RegisterInput{Email: "a@ufx.br", Senha: "segredo123"}},
		{"bad email", RegisterInput{Nome: "Ana", Email: "ana-at-ufx", Senha: "segredo123"}},
		{"short password", RegisterInput{Nome: "Ana", Email: "a@ufx.br", Senha: "123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, 400, status.Resolve(err).Code)
		})
	}
}

func TestAuthService_SessionUser_Rejects(t *testing.T) {
	svc, sessions := newAuthService(t)

	_, err := svc.SessionUser(context.Background(), "")
	assert.ErrorIs(t, err, status.ErrUnauthenticated)

	_, err = svc.SessionUser(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, status.ErrUnauthenticated)

	token, err := sessions.Issue("deletedusr00000", "x@ufx.br", "usuario")
	require.NoError(t, err)
	_, err = svc.SessionUser(context.Background(), token)
	assert.ErrorIs(t, err, status.ErrUnauthenticated)
}

func TestAuthService_QRLogin_SingleUse(t *testing.T) {
	svc, sessions := newAuthService(t)
	ctx := context.Background()

	user := createUsuario(t, svc.app, "caixa@ufx.br", models.RoleCaixa)

	qrToken, err := svc.CreateQRLogin(ctx, user)
	require.NoError(t, err)

	// a QR token is not a session
	_, err = svc.SessionUser(ctx, qrToken)
	assert.ErrorIs(t, err, status.ErrUnauthenticated)

	logged, sessionToken, err := svc.RedeemQRLogin(ctx, qrToken)
	require.NoError(t, err)
	assert.Equal(t, user.Id, logged.ID)

	claims, err := sessions.Verify(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.Id, claims.UserID)

	_, _, err = svc.RedeemQRLogin(ctx, qrToken)
	assert.ErrorIs(t, err, status.ErrQRTokenUsed)
}

func TestAuthService_QRLogin_ConcurrentRedeem(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	user := createUsuario(t, svc.app, "aluno@ufx.br", models.RoleUsuario)

	qrToken, err := svc.CreateQRLogin(ctx, user)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.RedeemQRLogin(ctx, qrToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestAuthService_QRLogin_RejectsSessionToken(t *testing.T) {
	svc, sessions := newAuthService(t)
	user := createUsuario(t, svc.app, "aluno@ufx.br", models.RoleUsuario)

	token, err := sessions.Issue(user.Id, "aluno@ufx.br", "usuario")
	require.NoError(t, err)

	_, _, err = svc.RedeemQRLogin(context.Background(), token)
	assert.ErrorIs(t, err, status.ErrUnauthenticated)

	// signed but never persisted
	forged, err := sessions.IssueQRLogin(user.Id, "aluno@ufx.br", "usuario", "unknown-jti")
	require.NoError(t, err)
	_, _, err = svc.RedeemQRLogin(context.Background(), forged)
	assert.ErrorIs(t, err, status.ErrUnauthenticated)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, RegisterInput{Nome: "Admin", Email: "admin@ufx.br", Senha: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, created.Role)

	existing, err := svc.Register(ctx, RegisterInput{Nome: "Bia", Email: "bia@ufx.br", Senha: "segredo123"})
	require.NoError(t, err)

	promoted, err := svc.EnsureAdmin(ctx, RegisterInput{Email: "bia@ufx.br", Senha: "novasenha1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, promoted.ID)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
	assert.Equal(t, "Bia", promoted.Nome)

	_, _, err = svc.Login(ctx, "bia@ufx.br", "novasenha1")
	assert.NoError(t, err)
}
