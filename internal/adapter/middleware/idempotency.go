package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	codeConcurrencyConflict = "ConcurrencyConflict"

	// How long we hold the "in-progress" marker before it must be replaced by the final response.
	provisionalLockTTL = 60 * time.Second
)

type idempEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// Idempotency replays the stored response of a mutating request retried with the same
// Idempotency-Key. Keys are scoped per route and per actor (set by the auth middleware
// under actorKey). Responses with a 5xx status and lost races (409 ConcurrencyConflict) are not
// stored, so those requests may be retried with the same key.
func Idempotency(rdb *redis.Client, ttl time.Duration, actorKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			idemKey := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			if idemKey == "" {
				return errJSON(c, http.StatusBadRequest, "BadRequest", "missing "+HeaderIdempotencyKey)
			}
			if !validKey(idemKey) {
				return errJSON(c, http.StatusBadRequest, "BadRequest", "invalid "+HeaderIdempotencyKey+" format")
			}
			actor, _ := c.Get(actorKey).(string)
			if actor == "" {
				actor = "anonymous"
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, c.Path(), actor, strings.ToLower(idemKey))
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			cur, claimed, err := claim(ctx, rdb, key, idempEntry{InProgress: true, BodySHA256: bhash, CreatedAt: nowUTC()})
			if err != nil {
				slog.WarnContext(ctx, "idempotency store unavailable", "error", err)
				return errJSON(c, http.StatusServiceUnavailable, "Unavailable", "idempotency store unavailable")
			}
			if !claimed {
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return errJSON(c, http.StatusConflict, "IdempotencyKeyReused", HeaderIdempotencyKey+" reused with different body")
				}
				if !cur.InProgress && cur.Code != 0 && len(cur.Body) > 0 {
					c.Response().Header().Set("Idempotent-Replayed", "true")
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return errJSON(c, http.StatusConflict, codeConcurrencyConflict, "request is already in progress")
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(req.Context()), 2*time.Second)
			defer storeCancel()
			if rec.code >= http.StatusInternalServerError || retryable(rec.code, rec.buf.Bytes()) {
				_ = forget(storeCtx, rdb, key)
				return nil
			}
			final := idempEntry{Code: rec.code, Body: rec.buf.Bytes(), BodySHA256: bhash, CreatedAt: nowUTC()}
			if err := saveFinal(storeCtx, rdb, key, final, ttl); err != nil {
				slog.WarnContext(storeCtx, "idempotency save failed", "key", key, "error", err)
			}
			return nil
		}
	}
}
