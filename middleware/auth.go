package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextRoleKey stores the caller's role.
	ContextRoleKey = "role"
	// ContextTokenKey stores the raw bearer token, for logout.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the token expiry as time.Time.
	ContextTokenExpiryKey = "token_exp"
)

// UserLookup loads the current row behind a token's subject.
type UserLookup interface {
	User(ctx context.Context, id uint) (*models.User, error)
}

// AuthRequired ensures the request carries a valid, unrevoked bearer token
// whose user still exists. The role comes from the stored user, not the token.
func AuthRequired(issuer *utils.TokenIssuer, blacklist *utils.TokenBlacklist, users UserLookup) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Abort(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			return
		}

		if blacklist != nil && blacklist.Revoked(ctx.Request.Context(), tokenString) {
			utils.Abort(ctx, http.StatusUnauthorized, 40104, "token revoked")
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			utils.Abort(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}
		if !models.Role(claims.Role).Valid() {
			utils.Abort(ctx, http.StatusUnauthorized, 40106, "invalid token role")
			return
		}

		user, err := users.User(ctx.Request.Context(), claims.UserID)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				utils.Abort(ctx, http.StatusUnauthorized, 40107, "user no longer exists")
				return
			}
			utils.Logger.Error("load token user failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
			utils.Abort(ctx, http.StatusInternalServerError, 50001, "failed to load user")
			return
		}

		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextRoleKey, user.Role)
		ctx.Set(ContextTokenKey, tokenString)
		if claims.ExpiresAt != nil {
			ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
		}
		ctx.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. Must run after AuthRequired.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(ctx *gin.Context) {
		p, ok := CurrentPrincipal(ctx)
		if !ok {
			utils.Abort(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}
		if _, ok := allowed[p.Role]; !ok {
			utils.Abort(ctx, http.StatusForbidden, 40310, "insufficient role")
			return
		}
		ctx.Next()
	}
}

// CurrentPrincipal returns the authenticated caller set by AuthRequired.
func CurrentPrincipal(ctx *gin.Context) (services.Principal, bool) {
	id := ctx.GetUint(ContextUserIDKey)
	if id == 0 {
		return services.Principal{}, false
	}
	role, _ := ctx.Get(ContextRoleKey)
	r, ok := role.(models.Role)
	if !ok {
		return services.Principal{}, false
	}
	return services.Principal{ID: id, Role: r}, true
}

// CurrentToken returns the bearer token and its expiry.
func CurrentToken(ctx *gin.Context) (string, time.Time) {
	exp, _ := ctx.Get(ContextTokenExpiryKey)
	t, _ := exp.(time.Time)
	return ctx.GetString(ContextTokenKey), t
}
