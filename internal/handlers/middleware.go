package handlers

import (
	"slices"

	"ru-ticket/internal/services"
	"ru-ticket/internal/session"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
)

type AuthMiddleware struct {
	auth *services.AuthService
	resp *Responder
}

func NewAuthMiddleware(auth *services.AuthService, resp *Responder) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, resp: resp}
}

// LoadSession resolves the session cookie or bearer token and sets e.Auth to
// the usuario record. Requests without a valid session pass through
// anonymously.
func (m *AuthMiddleware) LoadSession(e *core.RequestEvent) error {
	token := session.TokenFromRequest(e.Request)
	if token == "" {
		return e.Next()
	}

	record, err := m.auth.SessionUser(e.Request.Context(), token)
	if err == nil {
		e.Auth = record
	}
	return e.Next()
}

func (m *AuthMiddleware) RequireAuth(e *core.RequestEvent) error {
	if !isUsuario(e.Auth) {
		return m.resp.Error(e, status.ErrUnauthenticated)
	}
	return e.Next()
}

// RequireRole allows only sessions whose role is one of roles.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if !isUsuario(e.Auth) {
			return m.resp.Error(e, status.ErrUnauthenticated)
		}
		if !slices.Contains(roles, models.RoleOf(e.Auth)) {
			return m.resp.Error(e, status.ErrForbidden)
		}
		return e.Next()
	}
}

func isUsuario(r *core.Record) bool {
	return r != nil && r.Collection().Name == models.CollectionUsuarios
}
