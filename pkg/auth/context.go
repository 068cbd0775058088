package auth

import (
	"context"
	"errors"
)

// UserContext is the authenticated caller of a request
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type contextKey string

// UserContextKey stores the UserContext on a request context
const UserContextKey contextKey = "user"

// ErrNoUser is returned when a context carries no authenticated user
var ErrNoUser = errors.New("user not found in context")

// GetUserFromContext extracts user from context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, ErrNoUser
	}
	return user, nil
}

// SetUserInContext adds user to context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// HasRole reports whether the user carries role
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
