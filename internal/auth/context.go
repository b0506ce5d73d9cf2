package auth

import (
	"context"

	"github.com/arxiv-daily/internal/models"
)

type userKey struct{}

// WithUser stores the signed-in user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the signed-in user, or nil
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}
