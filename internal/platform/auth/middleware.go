package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"equipahub-backend/internal/platform/apperr"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "empty token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid claims")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abort(c, http.StatusUnauthorized, "invalid sub")
			return
		}

		role, _ := claims["role"].(string)
		if !Role(role).Valid() {
			abort(c, http.StatusForbidden, "unknown role")
			return
		}

		c.Set(CtxUserIDKey, sub)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireCapability consults the capability table for the actor set by RequireAuth.
func RequireCapability(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apperr.Body(apperr.CodePermissionDenied, "missing actor"))
			return
		}
		if err := Authorize(a, action); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, apperr.FromErr(err))
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (Actor, bool) {
	id := c.GetString(CtxUserIDKey)
	role := c.GetString(CtxRoleKey)
	if id == "" || role == "" {
		return Actor{}, false
	}
	return Actor{ID: id, Role: Role(role)}, true
}

func abort(c *gin.Context, status int, msg string) {
	code := apperr.CodePermissionDenied
	c.AbortWithStatusJSON(status, apperr.Body(code, msg))
}
