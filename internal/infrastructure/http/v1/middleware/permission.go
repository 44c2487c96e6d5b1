package middleware

import (
	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/security"
)

// Authorize guards read routes; mutating services check their own actions.
func Authorize(authz security.Authorizer, resource security.Resource, action security.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := security.Require(c.Request.Context(), authz, resource, action); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
