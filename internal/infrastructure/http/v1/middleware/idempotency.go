package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/apperror"
	appctx "pharmaflow/internal/core/context"
	"pharmaflow/internal/core/idempotency"
	"pharmaflow/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderReplayed          = "Idempotent-Replayed"
	maxIdempotencyBodyBytes = 1 << 20
)

// Idempotency replays the stored response for a repeated
// X-Idempotency-Key on POST/PUT/PATCH. Responses below 500 are stored;
// a 5xx or a panic releases the key so the client may retry.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		replay, err := store.Acquire(ctx, idempotency.Claim{
			Key:         key,
			UserID:      appctx.GetUserID(ctx),
			Operation:   c.Request.Method + " " + c.Request.URL.Path,
			RequestHash: hex.EncodeToString(hash[:]),
		})
		if err != nil {
			if !apperror.IsAppError(err) {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		// The key must not stay in progress when the handler panics.
		defer func() {
			if r := recover(); r != nil {
				release(ctx, store, key)
				panic(r)
			}
		}()

		c.Next()

		// Render errors here so the stored body matches what the client sees.
		if !w.Written() && len(c.Errors) > 0 {
			writeError(c, c.Errors.Last().Err)
		}

		status := w.Status()
		if status >= http.StatusInternalServerError {
			release(ctx, store, key)
			return
		}
		if err := store.Complete(context.WithoutCancel(ctx), key, idempotency.Replay{
			StatusCode:  status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}); err != nil {
			logger.Warn(ctx, "idempotency complete failed", "key", key, "error", err)
		}
	}
}

func release(ctx context.Context, store idempotency.Store, key string) {
	if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn(ctx, "idempotency release failed", "key", key, "error", err)
	}
}

// captureWriter keeps a copy of the response body.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
