// Package session carries the resolved caller identity through a request.
// An Identity is built once after authentication and never mutated.
package session

import (
	"context"
	"strings"
)

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID   uint
	Username string
	Email    string
	roles    []string
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{}

func NewIdentity(userID uint, username, email string, roles ...string) Identity {
	return Identity{
		UserID:   userID,
		Username: username,
		Email:    email,
		roles:    append([]string(nil), roles...),
	}
}

// Roles returns a copy of the role names.
func (i Identity) Roles() []string { return append([]string(nil), i.roles...) }

func (i Identity) HasRole(name string) bool {
	for _, r := range i.roles {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

func (i Identity) Authenticated() bool { return i.UserID != 0 }

// IsAdmin reports membership in the Admin role.
func (i Identity) IsAdmin() bool { return i.HasRole("Admin") }

// CanModify reports whether the caller may edit or delete a record owned
// by ownerID.
func (i Identity) CanModify(ownerID uint) bool {
	return i.Authenticated() && (i.UserID == ownerID || i.IsAdmin())
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
