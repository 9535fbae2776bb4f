package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agri-advance/pkg/id"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

// buildKey scopes a key to the route and the acting principal, so two actors never share replays.
func buildKey(method, route, actor, key string) string {
	return "idemp:" + strings.ToLower(method) + ":" + route + ":" + actor + ":" + key
}

// validKey accepts a canonical UUID or a 32-char hex id.
func validKey(k string) bool {
	k = strings.ToLower(strings.TrimSpace(k))
	if len(k) == 36 {
		_, err := uuid.Parse(k)
		return err == nil
	}
	return id.Valid(k)
}

// retryable reports whether a response is a lost race the client should retry with the same key.
func retryable(status int, body []byte) bool {
	if status != http.StatusConflict {
		return false
	}
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	return env.Error.Code == codeConcurrencyConflict
}

func errJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

// ---- Redis helpers ----
func provisionalSet(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (bool, error) {
	payload, _ := json.Marshal(entry)
	return rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

// claim stores entry under key unless another request holds the key, in which case the holder's
// entry comes back with claimed=false. A key that expires between SETNX and GET is claimed on a
// second try. Only store failures are returned as errors.
func claim(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (idempEntry, bool, error) {
	var cur idempEntry
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := provisionalSet(ctx, rdb, key, entry)
		if err != nil {
			return idempEntry{}, false, err
		}
		if ok {
			return entry, true, nil
		}
		cur, err = loadEntry(ctx, rdb, key)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "idempotency entry unreadable", "key", key, "error", err)
		}
		return cur, false, nil
	}
	return cur, false, nil
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var e idempEntry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, err
	}
	return e, nil
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, entry idempEntry, ttl time.Duration) error {
	payload, _ := json.Marshal(entry)
	return rdb.Set(ctx, key, payload, ttl).Err()
}

// forget drops a provisional entry so the client may retry after a server-side failure or a lost race.
func forget(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
