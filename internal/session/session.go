package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ru-ticket/internal/status"
)

const (
	CookieName = "token"

	TypeSession = "session"
	TypeQRLogin = "qr_login"
)

// Claims is the payload of every token issued by the Manager.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens. It holds no server-side state;
// single-use QR login rows are owned by the auth service.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secureCookies bool) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secureCookies,
		now:    time.Now,
	}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a standard session token expiring after the configured TTL.
func (m *Manager) Issue(userID, email, role string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   TypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return m.sign(claims)
}

// IssueQRLogin signs a token without expiry; its validity is bound to the
// persisted row identified by jti.
func (m *Manager) IssueQRLogin(userID, email, role, jti string) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   TypeQRLogin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(m.now()),
		},
	}
	return m.sign(claims)
}

func (m *Manager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry of a standard session token.
// Every failure is reported as status.ErrUnauthenticated.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeSession {
		return nil, fmt.Errorf("session: unexpected token type %q: %w", claims.Type, status.ErrUnauthenticated)
	}
	return claims, nil
}

// VerifyQRLogin checks the signature of a QR login token.
func (m *Manager) VerifyQRLogin(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeQRLogin || claims.ID == "" {
		return nil, fmt.Errorf("session: not a qr login token: %w", status.ErrUnauthenticated)
	}
	return claims, nil
}

func (m *Manager) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, status.ErrUnauthenticated
	}

	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || token == nil || !token.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, fmt.Errorf("session: %v: %w", err, status.ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("session: token without user id: %w", status.ErrUnauthenticated)
	}
	return claims, nil
}

// Cookie builds the session cookie for a freshly issued token.
func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			return strings.TrimSpace(authHeader[7:])
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
