package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/ulut0002/base-backend/internal/core/issue"
	redisrepo "github.com/ulut0002/base-backend/internal/repository/redis"
	"github.com/ulut0002/base-backend/internal/transport/http/pipeline"
)

type fakeRateLimitStore struct {
	trimErr   error
	count     int
	oldest    time.Time
	hasOldest bool

	recordCalls int
}

func (f *fakeRateLimitStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return f.trimErr
}

func (f *fakeRateLimitStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return f.count, nil
}

func (f *fakeRateLimitStore) RecordAttempt(context.Context, string, time.Time) error {
	f.recordCalls++
	return nil
}

func (f *fakeRateLimitStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, nil
}

func fixedIP(ip string) IdentifierFunc {
	return func(*gin.Context) (string, bool) { return ip, true }
}

func limitedRouter(limiter *RateLimiter, rules ...RateLimitRule) *gin.Engine {
	router := gin.New()
	router.Use(limiter.RateLimit(rules...))
	router.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func hit(router *gin.Engine) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	return rr
}

func TestRateLimiter_SlidingWindowOverRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisrepo.NewRateLimitRepository(client, redisrepo.SlidingWindowConfig{KeyPrefix: "cred:rl", TTL: time.Hour})

	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	router := limitedRouter(limiter, RateLimitRule{Name: "login", Limit: 3, Window: 5 * time.Minute, Identifier: fixedIP("198.51.100.7")})

	for i := 0; i < 3; i++ {
		rr := hit(router)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(2-i) {
			t.Fatalf("attempt %d: unexpected remaining %q", i+1, got)
		}
		now = now.Add(time.Minute)
	}

	rr := hit(router)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	// The first attempt leaves the window two minutes from now.
	if got := rr.Header().Get("Retry-After"); got != "120" {
		t.Fatalf("expected Retry-After 120, got %q", got)
	}

	var body pipeline.FailureBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.InternalCode != issue.CodeTooMany || len(body.Issues.Errors) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if got := body.Issues.Errors[0].Params["maxRequests"]; got != float64(3) {
		t.Fatalf("expected maxRequests 3, got %v", got)
	}

	now = now.Add(2*time.Minute + time.Second)
	if rr := hit(router); rr.Code != http.StatusOK {
		t.Fatalf("expected the window to slide, got %d", rr.Code)
	}
}

func TestRateLimiter_RejectedAttemptIsNotRecorded(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{count: 5}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	router := gin.New()
	router.POST("/login", limiter.RateLimit(RateLimitRule{Name: "login", Limit: 5, Window: time.Minute, Identifier: ClientIPIdentifier()}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := hit(router)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatalf("a rejected attempt must not be recorded, got %d", store.recordCalls)
	}
}

func TestRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{trimErr: errors.New("redis down")}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))
	router := limitedRouter(limiter, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute, Identifier: fixedIP("192.0.2.1")})

	rr := hit(router)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("no headers when the check failed")
	}
}

func TestRateLimiter_DisabledRules(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{count: 100}
	router := limitedRouter(NewRateLimiter(store, nil), RateLimitRule{Name: "off", Limit: 0, Window: time.Minute, Identifier: fixedIP("192.0.2.1")})
	if rr := hit(router); rr.Code != http.StatusOK {
		t.Fatalf("a zero limit disables the rule, got %d", rr.Code)
	}

	var nilLimiter *RateLimiter
	router = limitedRouter(nilLimiter, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute, Identifier: fixedIP("192.0.2.1")})
	if rr := hit(router); rr.Code != http.StatusOK {
		t.Fatalf("a nil limiter passes requests through, got %d", rr.Code)
	}
}
