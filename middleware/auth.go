package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/session"
	"github.com/cppla/myblog/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextIdentityKey stores the resolved session.Identity.
	ContextIdentityKey = "identity"
	// ContextTokenKey stores the raw bearer token for logout.
	ContextTokenKey = "token"
)

// AuthRequired ensures the request is authenticated via JWT and loads the caller's roles.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, status, code, msg := bearerToken(ctx)
		if status != 0 {
			utils.Error(ctx, status, code, msg)
			ctx.Abort()
			return
		}
		if !authenticate(ctx, db, tokenString) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// OptionalAuth resolves the identity when a valid bearer token is present and
// otherwise continues anonymously.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}
		tokenString, status, code, msg := bearerToken(ctx)
		if status != 0 {
			utils.Error(ctx, status, code, msg)
			ctx.Abort()
			return
		}
		if !authenticate(ctx, db, tokenString) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// RequireRole rejects callers lacking the named role. It must run after AuthRequired.
func RequireRole(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !Identity(ctx).HasRole(name) {
			utils.Error(ctx, http.StatusForbidden, 40301, "requires "+name+" role")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// Identity returns the caller resolved by AuthRequired or OptionalAuth.
func Identity(ctx *gin.Context) session.Identity {
	if v, ok := ctx.Get(ContextIdentityKey); ok {
		if id, ok := v.(session.Identity); ok {
			return id
		}
	}
	return session.Anonymous
}

func bearerToken(ctx *gin.Context) (token string, status, code int, msg string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", http.StatusUnauthorized, 40101, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", http.StatusUnauthorized, 40102, "invalid authorization header format"
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", http.StatusUnauthorized, 40103, "empty bearer token"
	}
	return token, 0, 0, ""
}

// authenticate validates the token, loads the user with roles and stores the
// identity on both the gin and the request context. It writes the error response itself.
func authenticate(ctx *gin.Context, db *gorm.DB, tokenString string) bool {
	if utils.IsTokenBlacklisted(tokenString) {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
		return false
	}
	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return false
	}

	var user models.User
	if err := db.WithContext(ctx.Request.Context()).Preload("Roles").First(&user, claims.UserID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "user no longer exists")
		return false
	}

	id := session.NewIdentity(user.ID, user.Username, user.Email, user.RoleNames()...)
	ctx.Set(ContextUserIDKey, user.ID)
	ctx.Set(ContextUsernameKey, user.Username)
	ctx.Set(ContextIdentityKey, id)
	ctx.Set(ContextTokenKey, tokenString)
	ctx.Request = ctx.Request.WithContext(session.WithIdentity(ctx.Request.Context(), id))
	return true
}
