package auth

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "code2diagram/internal/utils"
)

func TestLoadTokensAndValidation(t *testing.T) {
	s := NewTokenStore(u.PostgresConfig{})
	assert.False(t, s.Ready())

	s.LoadFromMap(map[string]int{"a": 5, "b": 10})

	assert.True(t, s.Ready())
	assert.True(t, s.Validate("a"))
	assert.Equal(t, 5, s.RateLimit("a"))
	assert.True(t, s.Validate("b"))
	assert.Equal(t, 10, s.RateLimit("b"))
	assert.False(t, s.Validate("c"))
	assert.Equal(t, 0, s.RateLimit("c"))
}

func TestLoadFromMapReplacesCache(t *testing.T) {
	s := NewTokenStore(u.PostgresConfig{})
	src := map[string]int{"a": 5, "b": 10}
	s.LoadFromMap(src)
	src["z"] = 1
	assert.False(t, s.Validate("z"), "store must copy the input map")

	s.LoadFromMap(map[string]int{"a": 7, "c": 12})
	assert.Equal(t, 7, s.RateLimit("a"))
	assert.False(t, s.Validate("b"))
	assert.Equal(t, 12, s.RateLimit("c"))
}

func TestPostgresDSN_BuildsURL(t *testing.T) {
	dsn, err := postgresDSN(u.PostgresConfig{
		Host:     "localhost",
		Database: "code2diagram",
		User:     "user",
		Password: "p@ss word",
		SSLMode:  "disable",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", parsed.Scheme)
	assert.Equal(t, "localhost:5432", parsed.Host)
	assert.Equal(t, "/code2diagram", parsed.Path)
	assert.Equal(t, "user", parsed.User.Username())
	pw, ok := parsed.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
}

func TestPostgresDSN_HostForms(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"db:6543", "db:6543"},
		{"::1", "[::1]:5432"},
		{"[::1]", "[::1]:5432"},
		{"[::1]:7000", "[::1]:7000"},
	}
	for _, tc := range tests {
		dsn, err := postgresDSN(u.PostgresConfig{Host: tc.host, Database: "d", User: "u"})
		require.NoError(t, err)
		parsed, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, tc.want, parsed.Host, tc.host)
	}
}

func TestPostgresDSN_PassthroughAndMissingFields(t *testing.T) {
	raw := "postgres://u:p@localhost:5432/db?sslmode=disable"
	dsn, err := postgresDSN(u.PostgresConfig{Host: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, dsn)

	_, err = postgresDSN(u.PostgresConfig{})
	assert.Error(t, err)
	_, err = postgresDSN(u.PostgresConfig{Host: "h"})
	assert.Error(t, err)
	_, err = postgresDSN(u.PostgresConfig{Host: "h", Database: "d"})
	assert.Error(t, err)
}

func TestLoadFailsWithoutHostAndCloseIsSafe(t *testing.T) {
	s := NewTokenStore(u.PostgresConfig{})
	assert.Error(t, s.Load(context.Background()))
	assert.False(t, s.Ready())
	assert.NoError(t, s.Close(context.Background()))
}
