package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"code2diagram/internal/auth"
	u "code2diagram/internal/utils"
)

const apiKeyLocal = "api_key"

// rateLimiter applies per-token limits from the token store and, for
// anonymous callers, an optional limit keyed by client IP and user agent.
type rateLimiter struct {
	tokens   *auth.TokenStore
	store    fiber.Storage
	interval time.Duration

	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

func newRateLimiter(tokens *auth.TokenStore, store fiber.Storage, interval time.Duration) *rateLimiter {
	return &rateLimiter{tokens: tokens, store: store, interval: interval}
}

// newRateLimitStore prefers Redis and falls back to process memory when the
// Redis storage cannot be created.
func newRateLimitStore(cfg u.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}
	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

func limitReached(kind, key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u.Warn("Rate limit exceeded", kind, key, "path", c.Path())
		return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
	}
}

// tokenLimiter returns a cached limiter for the given token limit, creating one if needed.
func (rl *rateLimiter) tokenLimiter(limit int) fiber.Handler {
	rl.mu.RLock()
	h, ok := rl.handlers[limit]
	rl.mu.RUnlock()
	if ok {
		return h
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if h, ok := rl.handlers[limit]; ok {
		return h
	}
	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        rl.interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rl.store,
		KeyGenerator: func(c *fiber.Ctx) string {
			token, _ := c.Locals(apiKeyLocal).(string)
			return "token:" + token
		},
		LimitReached: func(c *fiber.Ctx) error {
			token, _ := c.Locals(apiKeyLocal).(string)
			return limitReached("token", token)(c)
		},
	})
	if rl.handlers == nil {
		rl.handlers = make(map[int]fiber.Handler)
	}
	rl.handlers[limit] = h
	return h
}

// tokenMiddleware limits authenticated requests by their token's limit.
func (rl *rateLimiter) tokenMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(apiKeyLocal).(string)
		if !ok || token == "" || rl.tokens == nil {
			return c.Next()
		}
		limit := rl.tokens.RateLimit(token)
		if limit == 0 {
			return c.Next()
		}
		return rl.tokenLimiter(limit)(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return "user:" + hex.EncodeToString(sum[:])
}

// userMiddleware limits anonymous requests. Authenticated requests skip it;
// their token limit applies instead.
func (rl *rateLimiter) userMiddleware(limit int) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        rl.interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rl.store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			return limitReached("user", clientKey(c))(c)
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(apiKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

// apiKeyMiddleware validates X-API-Key when present. Requests without the
// header pass through as anonymous.
func apiKeyMiddleware(tokens *auth.TokenStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !tokens.Ready() {
				return false, auth.ErrTokenStoreNotReady
			}
			if !tokens.Validate(key) {
				return false, auth.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth can call ErrorHandler with a nil error.
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, auth.ErrTokenStoreNotReady) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		},
	})
}

// RegisterMiddleware attaches global middleware to the app. tokens may be nil
// when authentication is disabled.
func RegisterMiddleware(app *fiber.App, cfg u.Config, tokens *auth.TokenStore) {
	app.Use(fiberrecover.New())
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))
	app.Use(requestLogger())

	app.Use(healthcheck.New())

	userLimit := 0
	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		userLimit = cfg.RateLimiter.UserLimit
	}
	if tokens == nil && userLimit == 0 {
		return
	}

	rl := newRateLimiter(tokens, newRateLimitStore(cfg), cfg.RateLimiter.Interval)
	if tokens != nil {
		app.Use(apiKeyMiddleware(tokens))
		app.Use(rl.tokenMiddleware())
	}
	if userLimit > 0 {
		app.Use(rl.userMiddleware(userLimit))
	}
}

// requestLogger logs each request once it has completed.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		if err := c.Next(); err != nil {
			// Render now so the logged status is the one the client sees.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		u.Info("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"took_ms", time.Since(started).Milliseconds(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return nil
	}
}
