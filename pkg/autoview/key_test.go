package autoview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	key, err := ParseKey([]byte(`[true, "key-2", 3]`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{true, "key-2", float64(3)}, key)

	key, err = ParseKey([]byte(`"key-2"`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"key-2"}, key)

	key, err = ParseKey([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil}, key)

	key, err = ParseKey([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = ParseKey([]byte(`[key`))
	assert.ErrorContains(t, err, "autoview: invalid key")
}
