package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	users, err := LoadFrom(ServiceUsers, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ServiceUsers, users.Service)
	assert.Equal(t, "5001", users.Port)
	assert.Equal(t, EnvProd, users.Env)
	assert.Equal(t, "gochannel", users.EventConsumerType)
	assert.True(t, users.RunMigrations)
	assert.Equal(t, "postgres-service", users.DB.Host)
	assert.Equal(t, int32(10), users.DB.MaxConns)

	posts, err := LoadFrom(ServicePosts, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "5002", posts.Port)
	assert.Equal(t, "http://users-service:5001", posts.UsersServiceURL)
	assert.Equal(t, 5*time.Second, posts.UserLookupTimeout)
	assert.Equal(t, 3*time.Second, posts.UsersHealthTimeout)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(ServicePosts, map[string]string{
		"PORT":                "8080",
		"ENV":                 EnvLocal,
		"DB_HOST":             "localhost",
		"DB_PORT":             "6543",
		"USERS_SERVICE_URL":   "http://localhost:5001",
		"USER_LOOKUP_TIMEOUT": "250ms",
		"EVENT_CONSUMER_TYPE": "none",
		"RUN_MIGRATIONS":      "false",
	})
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, "http://localhost:5001", cfg.UsersServiceURL)
	assert.Equal(t, 250*time.Millisecond, cfg.UserLookupTimeout)
	assert.Equal(t, "none", cfg.EventConsumerType)
	assert.False(t, cfg.RunMigrations)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		service string
		environ map[string]string
	}{
		{"unknown service", "comments-service", nil},
		{"unknown consumer", ServiceUsers, map[string]string{"EVENT_CONSUMER_TYPE": "kafka"}},
		{"bad port", ServiceUsers, map[string]string{"DB_PORT": "five"}},
		{"bad users url", ServicePosts, map[string]string{"USERS_SERVICE_URL": "users-service"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.service, tt.environ)
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_ConnString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, Name: "app", User: "me", Password: "p@ss word", SSLMode: "disable"}
	assert.Equal(t, "postgres://me:p%40ss%20word@db:5432/app?sslmode=disable", c.ConnString())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(EnvProd, &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	NewLogger(EnvProd, &buf).Info("shown", "user_id", 1)
	assert.Contains(t, buf.String(), `"user_id":1`)

	buf.Reset()
	NewLogger(EnvLocal, &buf).Debug("verbose")
	assert.Contains(t, buf.String(), "msg=verbose")
}
