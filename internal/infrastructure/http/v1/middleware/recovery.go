package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/apperror"
	appctx "pharmaflow/internal/core/context"
	"pharmaflow/pkg/logger"
)

// Recovery turns a panic into a 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				logger.Error(ctx, "panic recovered",
					"error", r,
					"stack", string(debug.Stack()),
				)
				if !c.Writer.Written() {
					writeError(c, apperror.NewInternal(fmt.Errorf("panic: %v", r)).
						WithDetail("request_id", appctx.GetRequestID(ctx)))
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
