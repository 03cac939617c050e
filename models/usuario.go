package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUsuario Role = "usuario"
	RoleCaixa   Role = "caixa"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUsuario, RoleCaixa:
		return true
	}
	return false
}

// IsStaff reports whether the role may redeem tickets at the point of service.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleCaixa
}

var Roles = []string{string(RoleAdmin), string(RoleUsuario), string(RoleCaixa)}

type Usuario struct {
	ID        string    `json:"id"`
	Nome      string    `json:"nome"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created"`
}

func UsuarioFromRecord(r *core.Record) *Usuario {
	return &Usuario{
		ID:        r.Id,
		Nome:      r.GetString("nome"),
		Email:     r.GetString("email"),
		Role:      Role(r.GetString("role")),
		Avatar:    r.GetString("avatar"),
		CreatedAt: r.GetDateTime("created").Time(),
	}
}

// RoleOf returns the role stored on a usuarios record, or "" for nil.
func RoleOf(r *core.Record) Role {
	if r == nil {
		return ""
	}
	return Role(r.GetString("role"))
}
