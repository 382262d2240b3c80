package custody

import (
	"context"

	"github.com/goliatone/go-router"
)

// LocalsUserKey is the request Locals key holding the resolved *User
const LocalsUserKey = "custody.user"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// SetRequestUser stores the identity for the rest of the handler chain
func SetRequestUser(c router.Context, user *User) {
	c.Locals(LocalsUserKey, user)
	c.SetContext(WithContext(c.Context(), user))
}

// RequestUser returns the identity resolved for the request
func RequestUser(c router.Context) (*User, bool) {
	raw, ok := c.Locals(LocalsUserKey).(*User)
	if ok && raw != nil {
		return raw, true
	}
	return FromContext(c.Context())
}
