package app

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"code2diagram/internal/auth"
	u "code2diagram/internal/utils"
)

type memStore struct {
	sync.RWMutex
	m map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	val, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	return val, nil
}

func (s *memStore) Set(key string, val []byte, exp time.Duration) error {
	s.Lock()
	s.m[key] = val
	s.Unlock()
	return nil
}

func (s *memStore) Delete(key string) error {
	s.Lock()
	delete(s.m, key)
	s.Unlock()
	return nil
}

func (s *memStore) Reset() error {
	s.Lock()
	s.m = make(map[string][]byte)
	s.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }

func newLimitApp(tokens *auth.TokenStore, userLimit int) *fiber.App {
	rl := newRateLimiter(tokens, newMemStore(), time.Hour)
	app := fiber.New()
	if tokens != nil {
		app.Use(apiKeyMiddleware(tokens))
		app.Use(rl.tokenMiddleware())
	}
	app.Use(rl.userMiddleware(userLimit))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func limitReq(token string) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "1.2.3.4:5678"
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	return req
}

func TestTokenRateLimitMiddleware(t *testing.T) {
	tokens := auth.NewTokenStore(u.PostgresConfig{})
	tokens.LoadFromMap(map[string]int{"test-token": 2})
	app := newLimitApp(tokens, 0)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(limitReq("test-token"), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(limitReq("test-token"), -1)
	if err != nil {
		t.Fatalf("exceed request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestTokenLimitersAreSharedPerLimit(t *testing.T) {
	rl := newRateLimiter(nil, newMemStore(), time.Minute)
	a := rl.tokenLimiter(5)
	b := rl.tokenLimiter(5)
	rl.tokenLimiter(7)
	if len(rl.handlers) != 2 {
		t.Fatalf("expected 2 cached limiters, got %d", len(rl.handlers))
	}
	if a == nil || b == nil {
		t.Fatal("expected handlers")
	}
}

func TestUserRateLimitMiddleware(t *testing.T) {
	app := newLimitApp(nil, 2)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(limitReq(""), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(limitReq(""), -1)
	if err != nil {
		t.Fatalf("third request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestTokenBasedLimitOverridesUserBasedLimit(t *testing.T) {
	tokens := auth.NewTokenStore(u.PostgresConfig{})
	// A high token limit, so only the user limiter could block.
	tokens.LoadFromMap(map[string]int{"test-token": 100})
	app := newLimitApp(tokens, 2)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(limitReq(""), -1)
		if err != nil {
			t.Fatalf("anonymous request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}
	resp, err := app.Test(limitReq(""), -1)
	if err != nil {
		t.Fatalf("anonymous exceed request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}

	resp, err = app.Test(limitReq("test-token"), -1)
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for token request but got %d", resp.StatusCode)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	tokens := auth.NewTokenStore(u.PostgresConfig{})
	app := newLimitApp(tokens, 0)

	resp, err := app.Test(limitReq("test-token"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 before tokens load but got %d", resp.StatusCode)
	}

	tokens.LoadFromMap(map[string]int{"test-token": 0})

	resp, _ = app.Test(limitReq("wrong"), -1)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token but got %d", resp.StatusCode)
	}
	resp, _ = app.Test(limitReq("test-token"), -1)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for known token but got %d", resp.StatusCode)
	}
	resp, _ = app.Test(limitReq(""), -1)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for anonymous request but got %d", resp.StatusCode)
	}
}
