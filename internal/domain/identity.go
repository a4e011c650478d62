package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Role is the capability an authenticated user holds on the platform
type Role string

const (
	RoleInvestor     Role = "investor"
	RoleProjectOwner Role = "project_owner"
	RoleAdmin        Role = "admin"
)

// ParseRole maps a stored role claim onto the closed Role set.
// The legacy values "owner" and "creator" are accepted as project owners.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "investor":
		return RoleInvestor, nil
	case "project_owner", "owner", "creator":
		return RoleProjectOwner, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", NewError(CodeNotAuthorized, "domain.ParseRole", "unknown role "+strings.TrimSpace(raw))
	}
}

// Identity is the authenticated caller of a use case
type Identity struct {
	UserID uuid.UUID
	Role   Role
	Email  string
}

// Require checks that the identity is present and holds one of roles
func (i *Identity) Require(op string, roles ...Role) error {
	if i == nil || i.UserID == uuid.Nil {
		return NewError(CodeNotAuthenticated, op, "authentication required")
	}
	for _, r := range roles {
		if i.Role == r {
			return nil
		}
	}
	return NewError(CodeNotAuthorized, op, "role "+string(i.Role)+" may not perform this action")
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, or nil
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
