package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	testActor = "operator-1"
	testKey   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// setupEcho installs a fake auth step, then the middleware, then h on /advances.
func setupEcho(rdb *redis.Client, ttl time.Duration, h echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("actor_id", c.Request().Header.Get("X-Test-Actor"))
			return next(c)
		}
	})
	e.Use(Idempotency(rdb, ttl, "actor_id"))
	e.POST("/advances", h)
	e.GET("/advances", h)
	return e
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func headers(actor, key string) map[string]string {
	return map[string]string{"X-Test-Actor": actor, HeaderIdempotencyKey: key}
}

// counting handler: every call creates a new "advance"
func counter(n *int32) echo.HandlerFunc {
	return func(c echo.Context) error {
		v := atomic.AddInt32(n, 1)
		return c.JSON(http.StatusCreated, map[string]any{"success": true, "data": map[string]int32{"seq": v}})
	}
}

func Test_BypassOnGET(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	rec := doReq(t, e, http.MethodGet, "/advances", nil, nil)
	if rec.Code != http.StatusCreated || n != 1 {
		t.Fatalf("GET must bypass, got %d calls=%d", rec.Code, n)
	}
}

func Test_KeyValidation(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	for name, key := range map[string]string{"missing": "", "malformed": "not-a-key"} {
		rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, key))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s key => want 400, got %d", name, rec.Code)
		}
	}
	if n != 0 {
		t.Fatalf("handler must not run, ran %d times", n)
	}
}

func Test_HappyPath_Then_Replay(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, 2*time.Minute, counter(&n))

	body := `{"farmer_id":"f-1","order_id":"o-1"}`
	rec1 := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(body), headers(testActor, testKey))
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first => want 201, got %d: %s", rec1.Code, rec1.Body.String())
	}
	rec2 := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(body), headers(testActor, testKey))
	if rec2.Code != http.StatusCreated {
		t.Fatalf("replay => want 201, got %d", rec2.Code)
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", rec1.Body.String(), rec2.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replay header missing")
	}
	if n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}
}

func Test_KeysAreScopedPerActor(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	_ = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers("alice", testKey))
	_ = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers("bob", testKey))
	if n != 2 {
		t.Fatalf("same key from two actors must both run, ran %d", n)
	}
}

func Test_Conflict_When_InProgress(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	body := []byte(`{"x":1}`)
	key := buildKey(http.MethodPost, "/advances", testActor, testKey)
	entry := idempEntry{InProgress: true, BodySHA256: bodyHash(body), CreatedAt: nowUTC()}
	if ok, err := provisionalSet(context.Background(), rdb, key, entry); err != nil || !ok {
		t.Fatalf("seed provisional failed, ok=%v err=%v", ok, err)
	}

	rec := doReq(t, e, http.MethodPost, "/advances", bytes.NewReader(body), headers(testActor, testKey))
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-progress => want 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ConcurrencyConflict") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func Test_Conflict_When_SameKey_DifferentBody(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	_ = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{"x":1}`), headers(testActor, testKey))
	rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{"x":2}`), headers(testActor, testKey))
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "IdempotencyKeyReused") {
		t.Fatalf("different body => want 409 IdempotencyKeyReused, got %d %s", rec.Code, rec.Body.String())
	}
}

func Test_ServerErrorIsNotStored(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	e := setupEcho(rdb, time.Minute, func(c echo.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false})
		}
		return c.JSON(http.StatusCreated, map[string]any{"success": true})
	})

	rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("first => want 500, got %d", rec.Code)
	}
	if mr.Exists(buildKey(http.MethodPost, "/advances", testActor, testKey)) {
		t.Fatal("5xx response must not be stored")
	}
	rec = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry => want 201, got %d", rec.Code)
	}
}

func Test_ConcurrencyConflictIsNotStored(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	e := setupEcho(rdb, time.Minute, func(c echo.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return c.JSON(http.StatusConflict, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "ConcurrencyConflict", "message": "pool busy"},
			})
		}
		return c.JSON(http.StatusCreated, map[string]any{"success": true})
	})

	rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusConflict {
		t.Fatalf("first => want 409, got %d", rec.Code)
	}
	if mr.Exists(buildKey(http.MethodPost, "/advances", testActor, testKey)) {
		t.Fatal("lost race must not be stored")
	}
	rec = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry => want 201, got %d", rec.Code)
	}
	if rec.Header().Get("Idempotent-Replayed") != "" {
		t.Fatal("retry must run the handler, not replay")
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func Test_BusinessConflictIsStored(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	e := setupEcho(rdb, time.Minute, func(c echo.Context) error {
		atomic.AddInt32(&calls, 1)
		return c.JSON(http.StatusConflict, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "InsufficientLiquidity", "message": "pool exhausted"},
		})
	})

	_ = doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusConflict || rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("want replayed 409, got %d replayed=%q", rec.Code, rec.Header().Get("Idempotent-Replayed"))
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

// vanishOnce deletes key from mr right after the first SET NX that finds it taken,
// as if its TTL ran out before the follow-up GET.
type vanishOnce struct {
	mr   *miniredis.Miniredis
	key  string
	done atomic.Bool
}

func (h *vanishOnce) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *vanishOnce) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *vanishOnce) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if b, ok := cmd.(*redis.BoolCmd); ok && cmd.Name() == "set" && err == nil && !b.Val() {
			if h.done.CompareAndSwap(false, true) {
				h.mr.Del(h.key)
			}
		}
		return err
	}
}

func Test_Claim_KeyExpiresBetweenSetAndGet(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	ctx := context.Background()
	key := buildKey(http.MethodPost, "/advances", testActor, testKey)
	stale := idempEntry{InProgress: true, BodySHA256: bodyHash([]byte(`{}`)), CreatedAt: nowUTC()}
	if ok, err := provisionalSet(ctx, rdb, key, stale); err != nil || !ok {
		t.Fatalf("seed provisional failed, ok=%v err=%v", ok, err)
	}
	rdb.AddHook(&vanishOnce{mr: mr, key: key})

	mine := idempEntry{InProgress: true, BodySHA256: "mine", CreatedAt: nowUTC()}
	_, claimed, err := claim(ctx, rdb, key, mine)
	if err != nil || !claimed {
		t.Fatalf("want claimed on retry, claimed=%v err=%v", claimed, err)
	}
	got, err := loadEntry(ctx, rdb, key)
	if err != nil || got.BodySHA256 != "mine" {
		t.Fatalf("stored entry = %+v, %v", got, err)
	}
}

func Test_Claim_HeldKeyReturnsHolder(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	ctx := context.Background()
	key := buildKey(http.MethodPost, "/advances", testActor, testKey)
	held := idempEntry{Code: http.StatusCreated, Body: []byte(`{"success":true}`), BodySHA256: "held", CreatedAt: nowUTC()}
	if err := saveFinal(ctx, rdb, key, held, time.Minute); err != nil {
		t.Fatal(err)
	}

	cur, claimed, err := claim(ctx, rdb, key, idempEntry{InProgress: true, BodySHA256: "held"})
	if err != nil || claimed {
		t.Fatalf("want held key, claimed=%v err=%v", claimed, err)
	}
	if cur.Code != http.StatusCreated || cur.InProgress {
		t.Fatalf("holder entry = %+v", cur)
	}
}

func Test_StoreUnavailable_Returns503(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	var n int32
	e := setupEcho(rdb, time.Minute, counter(&n))

	rec := doReq(t, e, http.MethodPost, "/advances", strings.NewReader(`{}`), headers(testActor, testKey))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store unavailable => want 503, got %d", rec.Code)
	}
}

func Test_RequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	e.GET("/advances/:advance_id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]any{"success": false})
	})

	rec := doReq(t, e, http.MethodGet, "/advances/abc", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"route":"/advances/:advance_id"`, `"status":404`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}
