// Package user holds the account entity every credential ultimately resolves
// to: role, plan, and organization membership live here, not on the token.
package user

import (
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Role is the authorization tier assigned to a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a registered account. It is the local, authoritative source of
// Role and Plan: an IdP claim only seeds these fields on first creation,
// it never overwrites a value the account already has.
type User struct {
	ID             kernel.UserID         `db:"id" json:"id"`
	OrganizationID kernel.OrganizationID `db:"organization_id" json:"organization_id,omitempty"`
	Email          string                `db:"email" json:"email"`
	Name           string                `db:"name" json:"name"`
	Role           Role                  `db:"role" json:"role"`
	Plan           string                `db:"plan" json:"plan,omitempty"`
	IsActive       bool                  `db:"is_active" json:"is_active"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "user not found")
	CodeInactive      = ErrRegistry.Register("INACTIVE", errx.TypeAuthorization, http.StatusForbidden, "user account is inactive")
	CodeAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "user already exists")
)

func ErrNotFound() *errx.Error      { return ErrRegistry.New(CodeNotFound) }
func ErrInactive() *errx.Error      { return ErrRegistry.New(CodeInactive) }
func ErrAlreadyExists() *errx.Error { return ErrRegistry.New(CodeAlreadyExists) }
