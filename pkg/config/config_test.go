package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseViper(t *testing.T) {
	v := viper.New()
	v.Set("couchdb.url", "http://admin:secret@db:1234")
	v.Set("couchdb.database", "mydb")
	v.Set("couchdb.timeout", "3s")
	v.Set("views", []interface{}{
		map[string]interface{}{"key": []interface{}{"key"}},
		map[string]interface{}{"key": []interface{}{"even", "key"}, "reduce": "count"},
		map[string]interface{}{"key": []interface{}{".name"}, "each": "tags", "value": ".weight"},
		map[string]interface{}{"key": []interface{}{"key"}},
	})
	UseTestViper(t, v)

	cfg := GetConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "localhost:8081", ServerAddr())
	assert.Equal(t, "http://db:1234/", cfg.CouchDB.URL.String())
	assert.Equal(t, "admin", cfg.CouchDB.Auth.Username())
	assert.Equal(t, "mydb", cfg.CouchDB.Database)
	assert.Equal(t, 3*time.Second, cfg.CouchDB.Timeout)
	assert.Nil(t, cfg.Redis)

	names := make([]string, 0, len(Views()))
	for _, spec := range Views() {
		names = append(names, spec.Name())
	}
	assert.Equal(t, []string{"key", "even-key--count", ".name--.weight--tags"}, names)

	client, err := CouchClient()
	require.NoError(t, err)
	assert.Equal(t, "mydb", client.DBName())
	assert.Equal(t, "http://db:1234/", client.URL().String())
}

func TestUseViperDefaults(t *testing.T) {
	UseTestViper(t, viper.New())

	cfg := GetConfig()
	assert.Equal(t, "http://localhost:5984/", cfg.CouchDB.URL.String())
	assert.Equal(t, "autoviews-test", cfg.CouchDB.Database)
	assert.Equal(t, 10*time.Second, cfg.CouchDB.Timeout)
	assert.Empty(t, cfg.Views)
}

func TestUseViperErrors(t *testing.T) {
	t.Run("InvalidReduce", func(t *testing.T) {
		v := viper.New()
		applyDefaults(v)
		v.Set("views", []interface{}{
			map[string]interface{}{"key": []interface{}{"key"}, "reduce": "avg"},
		})
		err := UseViper(v)
		assert.ErrorIs(t, err, autoview.ErrInvalidReduceKind)
		assert.Contains(t, err.Error(), "view #1")
	})

	t.Run("UnknownOption", func(t *testing.T) {
		v := viper.New()
		applyDefaults(v)
		v.Set("views", []interface{}{
			map[string]interface{}{"key": []interface{}{"key"}, "sort": "asc"},
		})
		assert.Error(t, UseViper(v))
	})

	t.Run("InvalidCouchURL", func(t *testing.T) {
		v := viper.New()
		applyDefaults(v)
		v.Set("couchdb.url", "localhost")
		assert.Error(t, UseViper(v))
	})

	t.Run("InvalidRedisURL", func(t *testing.T) {
		v := viper.New()
		applyDefaults(v)
		v.Set("log.redis", "http://not-redis")
		assert.Error(t, UseViper(v))
	})

	t.Run("MissingDatabase", func(t *testing.T) {
		u, err := url.Parse("http://localhost:5984/")
		require.NoError(t, err)
		_, err = CouchDB{URL: u}.NewClient()
		assert.ErrorIs(t, err, ErrMissingDatabase)
	})
}

func TestSetupWithFile(t *testing.T) {
	previous := config
	t.Cleanup(func() {
		config = previous
		viper.Reset()
	})
	t.Setenv("AUTOVIEWS_TEST_DB", "from-env")

	dir := t.TempDir()
	file := filepath.Join(dir, "autoviews.yaml")
	content := `
port: {{ add 8000 81 1 }}
couchdb:
  url: {{ default "http://couch:5984/" .Env.AUTOVIEWS_TEST_COUCH_URL }}
  database: {{ default "autoviews" .Env.AUTOVIEWS_TEST_DB }}
views:
  - key: [even, key]
    reduce: count
  - key: " .t ,, n,"
    each: tags
    reduce: count
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	require.NoError(t, Setup(file))
	cfg := GetConfig()
	assert.Equal(t, 8082, cfg.Port)
	assert.Equal(t, "from-env", cfg.CouchDB.Database)
	assert.Equal(t, "http://couch:5984/", cfg.CouchDB.URL.String())
	require.Len(t, cfg.Views, 2)
	assert.Equal(t, "even-key--count", cfg.Views[0].Name())
	assert.Equal(t, []string{".t", "n"}, cfg.Views[1].Key())
	assert.Equal(t, ".t-n--count--tags", cfg.Views[1].Name())
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := FindConfigFile("autoviews.yaml")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "autoviews.yaml"), []byte("port: 1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "autoviews.yaml.local"), []byte("port: 2\n"), 0o600))

	files, err := findConfigFiles(Filename)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "autoviews.yaml", filepath.Base(files[0]))
	assert.Equal(t, "autoviews.yaml.local", filepath.Base(files[1]))
}

func TestToInt64(t *testing.T) {
	assert.EqualValues(t, 42, toInt64("42"))
	assert.EqualValues(t, 0, toInt64("forty-two"))
	assert.EqualValues(t, 3, toInt64(3.7))
	assert.EqualValues(t, 1, toInt64(true))
	assert.EqualValues(t, 7, toInt64(uint8(7)))
}
