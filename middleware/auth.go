package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"hrms-service/config"
	"hrms-service/models"
	"hrms-service/store"
	"hrms-service/utils"
)

type contextKey string

const userClaimsKey contextKey = "userClaims"

// AuthMiddleware resolves the caller from the bearer token. When revocations
// is non-nil, tokens issued before the user's last revocation are rejected.
func AuthMiddleware(cfg config.AuthConfig, revocations store.TokenRevocations) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			claims, err := utils.ParseToken(token, cfg.TokenSecret)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					WriteError(w, http.StatusUnauthorized, "Token expired")
					return
				}
				WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if revocations != nil {
				revoked, err := tokenRevoked(r.Context(), revocations, claims)
				if err != nil {
					log.Printf("revocation lookup failed: user_id=%s err=%v", claims.UserID, err)
					WriteError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if revoked {
					WriteError(w, http.StatusUnauthorized, "Token revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func tokenRevoked(ctx context.Context, revocations store.TokenRevocations, claims *utils.Claims) (bool, error) {
	revokedAt, found, err := revocations.RevokedAt(ctx, claims.UserID)
	if err != nil || !found {
		return false, err
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return claims.IssuedAt.Time.Before(revokedAt), nil
}

func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*utils.Claims)
	return claims, ok
}

func ContextWithClaims(ctx context.Context, claims *utils.Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

func RoleMiddleware(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if !contains(allowedRoles, claims.Role) {
				WriteError(w, http.StatusForbidden, "Not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func contains(values []models.Role, target models.Role) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
