package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/service"
)

// UserHeader carries the caller's email. It stands in for real authentication.
const UserHeader = "X-User-Email"

type ctxKey struct{}

func withUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user set by Authenticate.
func UserFrom(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(model.User)
	return u, ok
}

// Authenticate resolves UserHeader to an active user or stops the request with 401/403.
func Authenticate(users *service.UserService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := users.Authenticate(r.Context(), r.Header.Get(UserHeader))
			if err != nil {
				handleErrors(logger, w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
		})
	}
}
