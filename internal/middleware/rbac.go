package middleware

import (
	"net/http"

	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/gin-gonic/gin"
)

// RequireRoles checks that the authenticated user holds one of the given
// roles.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrWrongRole)
	}
}
