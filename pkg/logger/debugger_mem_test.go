package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_MemDebugger(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		dbg := NewMemDebugger()
		_ = dbg.AddDatabase("foo", time.Second)
		assert.NotNil(t, dbg.ExpiresAt("foo"))
		assert.Nil(t, dbg.ExpiresAt("bar"))
	})

	t.Run("Delete", func(t *testing.T) {
		dbg := NewMemDebugger()
		_ = dbg.AddDatabase("foo", time.Second)
		_ = dbg.RemoveDatabase("foo")
		assert.Nil(t, dbg.ExpiresAt("foo"))
	})

	t.Run("Expire", func(t *testing.T) {
		dbg := NewMemDebugger()
		_ = dbg.AddDatabase("foo", 2*time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		assert.Nil(t, dbg.ExpiresAt("foo"))
	})

	t.Run("Override", func(t *testing.T) {
		dbg := NewMemDebugger()
		_ = dbg.AddDatabase("foo", time.Second)
		first := dbg.ExpiresAt("foo")
		require.NotNil(t, first)

		_ = dbg.AddDatabase("foo", time.Hour)
		second := dbg.ExpiresAt("foo")
		require.NotNil(t, second)
		assert.True(t, second.After(*first))
	})
}
