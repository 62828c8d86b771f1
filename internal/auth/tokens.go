// Package auth keeps the set of API tokens accepted by the service together
// with their per-token request limits.
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	u "code2diagram/internal/utils"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that tokens have not been loaded yet,
	// usually because Postgres was unreachable at startup.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// TokenStore caches API tokens from the api_tokens table.
type TokenStore struct {
	cfg u.PostgresConfig

	mu    sync.RWMutex
	cache map[string]int

	dbMu sync.Mutex
	dsn  string
	db   *sql.DB
}

// NewTokenStore returns an empty store; call Load to populate it.
func NewTokenStore(cfg u.PostgresConfig) *TokenStore {
	return &TokenStore{cfg: cfg}
}

func postgresPort(cfg u.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg u.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	switch {
	case cfg.Host == "":
		return "", errors.New("postgres host is empty")
	case cfg.Database == "":
		return "", errors.New("postgres database is empty")
	case cfg.User == "":
		return "", errors.New("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	switch {
	case strings.HasPrefix(hostPort, "["):
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	case strings.Count(hostPort, ":") >= 2:
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	case !strings.Contains(hostPort, ":"):
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	dsn := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		dsn.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		q := dsn.Query()
		q.Set("sslmode", cfg.SSLMode)
		dsn.RawQuery = q.Encode()
	}
	return dsn.String(), nil
}

func (s *TokenStore) conn(ctx context.Context) (*sql.DB, error) {
	dsn, err := postgresDSN(s.cfg)
	if err != nil {
		return nil, err
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil && s.dsn == dsn {
		return s.db, nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db, s.dsn = nil, ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open token database")
	}
	// Low-throughput control-plane table.
	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping token database")
	}

	s.db, s.dsn = db, dsn
	return db, nil
}

const tokensDDL = `CREATE TABLE IF NOT EXISTS api_tokens (
	token TEXT PRIMARY KEY,
	rate_limit INTEGER NOT NULL DEFAULT 30,
	label TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	revoked_at TIMESTAMPTZ
);`

// Load replaces the cache with every non-revoked token in Postgres,
// creating the table on first use.
func (s *TokenStore) Load(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, tokensDDL); err != nil {
		return errors.Wrap(err, "ensure api_tokens table")
	}

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit FROM api_tokens WHERE revoked_at IS NULL;`)
	if err != nil {
		return errors.Wrap(err, "query api_tokens")
	}
	defer rows.Close()

	cache := make(map[string]int)
	for rows.Next() {
		var token string
		var limit int
		if err := rows.Scan(&token, &limit); err != nil {
			return errors.Wrap(err, "scan api_tokens row")
		}
		cache[token] = limit
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate api_tokens")
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	u.Debug("API tokens loaded", "count", len(cache))
	return nil
}

// Reload is Load with logging instead of a returned error, for use by the scheduler.
func (s *TokenStore) Reload() {
	if err := s.Load(context.Background()); err != nil {
		u.Error("Failed to reload API tokens", "error", err)
	}
}

// LoadFromMap replaces the cache with a copy of m. Intended for tests and local runs.
func (s *TokenStore) LoadFromMap(m map[string]int) {
	cache := make(map[string]int, len(m))
	for k, v := range m {
		cache[k] = v
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
}

// Ready reports whether tokens have been loaded at least once.
func (s *TokenStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache != nil
}

// Validate reports whether token is known.
func (s *TokenStore) Validate(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[token]
	return ok
}

// RateLimit returns the request limit for token, or 0 (unlimited) when unknown.
func (s *TokenStore) RateLimit(token string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[token]
}

// Close releases the database handle. Safe to call when never connected.
func (s *TokenStore) Close(context.Context) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db, s.dsn = nil, ""
	return err
}
