package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("InfoLevel", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, Init(Options{Level: "info", Output: buf}))

		log := WithDatabase("test-db").WithNamespace("autoview")
		log.Debugf("hidden %d", 1)
		log.Infof("shown %d", 2)

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown 2")
		assert.Contains(t, out, "db=test-db")
		assert.Contains(t, out, "nspace=autoview")
		assert.False(t, log.IsDebug())
	})

	t.Run("DebugDatabase", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, Init(Options{Level: "info", Output: buf}))

		require.NoError(t, AddDebugDatabase("debugged", time.Hour))
		assert.NotNil(t, DebugExpiration("debugged"))

		WithDatabase("debugged").Debug("visible debug")
		WithDatabase("other").Debug("invisible debug")
		assert.True(t, WithDatabase("debugged").IsDebug())

		out := buf.String()
		assert.Contains(t, out, "visible debug")
		assert.NotContains(t, out, "invisible debug")

		require.NoError(t, RemoveDebugDatabase("debugged"))
		assert.Nil(t, DebugExpiration("debugged"))
	})

	t.Run("Truncate", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, Init(Options{Level: "info", Output: buf}))

		WithNamespace("test").Info(strings.Repeat("a", 3000))
		assert.Contains(t, buf.String(), "[TRUNCATED]")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		assert.Error(t, Init(Options{Level: "verbose"}))
	})
}

func TestLogger_RedisDebugger(t *testing.T) {
	if testing.Short() {
		t.Skip("a redis is required for this test: test skipped due to the use of --short flag")
	}

	opt, err := redis.ParseURL("redis://localhost:6379/0")
	require.NoError(t, err)

	dbg1, err := NewRedisDebugger(redis.NewClient(opt))
	require.NoError(t, err)
	defer dbg1.Close()

	dbg2, err := NewRedisDebugger(redis.NewClient(opt))
	require.NoError(t, err)
	defer dbg2.Close()

	db := "logger-test-" + strings.ToLower(t.Name())

	require.NoError(t, dbg1.AddDatabase(db, time.Second))
	time.Sleep(30 * time.Millisecond)
	assert.NotNil(t, dbg1.ExpiresAt(db))
	assert.NotNil(t, dbg2.ExpiresAt(db))

	require.NoError(t, dbg2.RemoveDatabase(db))
	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, dbg1.ExpiresAt(db))

	assert.ErrorIs(t, dbg1.AddDatabase("with space", time.Second), ErrInvalidDatabaseName)
}
