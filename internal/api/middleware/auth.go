package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"taskboard/internal/common"
	"taskboard/internal/common/security"
	"taskboard/internal/domain/model"
	"taskboard/internal/domain/repository"
	"taskboard/internal/domain/scope"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"
)

// NewAuthenticator requires a token verified by jwtauth.Verifier and resolves
// its subject against the user store. Deleted and deactivated accounts are
// rejected, and the stored role, not the token's, is put in the context.
func NewAuthenticator(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				if errors.Is(err, jwtauth.ErrNoTokenFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Access token required")
				} else {
					common.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				}
				return
			}
			if token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			userID, err := security.GetUserIDFromClaims(claims)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, common.ErrNotFound) {
					slog.ErrorContext(r.Context(), "authenticator user lookup failed", "error", err, "user_id", userID)
					common.RespondWithError(w, http.StatusInternalServerError, "Server error")
					return
				}
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if !user.IsActive {
				common.RespondWithError(w, http.StatusUnauthorized, "Account is deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, user.ID)
			ctx = context.WithValue(ctx, UserRoleCtxKey, user.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleCtxKey).(string)
		if !ok || role != model.RoleAdmin {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

// Helper to get user role from context
func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}

// GetCaller bundles the authenticated identity for the service layer.
func GetCaller(ctx context.Context) (scope.Caller, bool) {
	id, ok := GetUserIDFromContext(ctx)
	if !ok {
		return scope.Caller{}, false
	}
	role, _ := GetUserRoleFromContext(ctx)
	return scope.Caller{ID: id, Role: role}, true
}
