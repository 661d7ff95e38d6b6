// README: Identity middleware; trusts gateway-injected actor headers.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safar/internal/types"
)

// Auth happens upstream. The gateway strips these headers from client
// traffic and injects them from the verified session, so here they are
// taken at face value.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"

	ctxActorID   = "actor_id"
	ctxActorRole = "actor_role"
)

func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderActorID)
		role := types.Role(c.GetHeader(HeaderActorRole))
		if id == "" || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid actor identity"})
			return
		}
		c.Set(ctxActorID, types.ID(id))
		c.Set(ctxActorRole, role)
		c.Next()
	}
}

// Actor returns the identity placed by Identity. It must only be called
// on routes behind that middleware.
func Actor(c *gin.Context) (types.ID, types.Role) {
	return c.MustGet(ctxActorID).(types.ID), c.MustGet(ctxActorRole).(types.Role)
}

// RequireRole rejects actors whose role is not in the allowed set.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role := Actor(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted"})
	}
}
