// Package config reads the configuration of autoviews from a file, the
// environment variables (AUTOVIEWS_*) and the command line flags, with viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/cozy/cozy-autoviews/pkg/utils"
	"github.com/go-viper/mapstructure/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Filename is the default configuration filename that autoviews search for
const Filename = "autoviews"

// Paths is the list of directories used to search for a
// configuration file
var Paths = []string{
	".",
	".autoviews",
	"$HOME/.autoviews",
	"$HOME/.config/autoviews",
	"/etc/autoviews",
}

// ErrMissingDatabase is returned when no database name is configured.
var ErrMissingDatabase = errors.New("config: missing couchdb.database")

var config *Config
var log = logger.WithNamespace("config")

// Config contains the configuration values of the application
type Config struct {
	Host string
	Port int

	CouchDB CouchDB
	Redis   redis.UniversalClient

	// Views are the auto views declared in the configuration file.
	Views []*autoview.Spec
}

// CouchDB contains the configuration values for the database
type CouchDB struct {
	URL      *url.URL
	Auth     *url.Userinfo
	Database string
	Timeout  time.Duration
}

// ViewDeclaration is the form of an auto view in the configuration file:
//
//	views:
//	  - key: [even, key]
//	    reduce: count
//	  - key: [.name]
//	    each: tags
//
// The key can also be written as a comma separated list: "even, key".
type ViewDeclaration struct {
	Key              []string `mapstructure:"key"`
	autoview.Options `mapstructure:",squash"`
}

// GetConfig returns the configured instance of Config
func GetConfig() *Config {
	return config
}

// ServerAddr returns the address on which the admin server listens
func ServerAddr() string {
	return net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
}

// Views returns the auto views declared in the configuration.
func Views() []*autoview.Spec {
	return config.Views
}

// CouchClient returns a client for the configured database.
func CouchClient() (*couchdb.Client, error) {
	return config.CouchDB.NewClient()
}

// NewClient returns a client for this database.
func (c CouchDB) NewClient() (*couchdb.Client, error) {
	if c.Database == "" {
		return nil, ErrMissingDatabase
	}
	u := *c.URL
	u.User = c.Auth
	return couchdb.NewClient(couchdb.Options{
		URL:      u.String(),
		Database: c.Database,
		Client:   &http.Client{Timeout: c.Timeout},
	})
}

// Setup Viper to read the environment and the optional config file
func Setup(cfgFile string) (err error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("autoviews")
	viper.AutomaticEnv()
	applyDefaults(viper.GetViper())

	var cfgFiles []string
	if cfgFile == "" {
		cfgFiles, err = findConfigFiles(Filename)
		if err != nil {
			return err
		}
	} else {
		cfgFiles = []string{cfgFile}
	}

	if len(cfgFiles) == 0 {
		return UseViper(viper.GetViper())
	}

	log.Debugf("Using config files: %s", cfgFiles)

	for _, cfgFile = range cfgFiles {
		tmplName := filepath.Base(cfgFile)
		tmpl := template.New(tmplName)
		tmpl = tmpl.Option("missingkey=zero")
		tmpl, err = tmpl.Funcs(numericFuncsMap).ParseFiles(cfgFile)
		if err != nil {
			return fmt.Errorf("Unable to open and parse configuration file "+
				"template %s: %s", cfgFile, err)
		}

		dest := new(bytes.Buffer)
		ctxt := &struct {
			Env    map[string]string
			NumCPU int
		}{
			Env:    envMap(),
			NumCPU: runtime.NumCPU(),
		}
		err = tmpl.ExecuteTemplate(dest, tmplName, ctxt)
		if err != nil {
			return fmt.Errorf("Template error for config files %s: %s", cfgFile, err)
		}

		cfgFile = regexp.MustCompile(`\.local$`).ReplaceAllString(cfgFile, "")
		if ext := filepath.Ext(cfgFile); len(ext) > 0 {
			viper.SetConfigType(ext[1:])
		}
		if err := viper.MergeConfig(dest); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				log.Errorf("Failed to read autoviews configurations from %s", cfgFile)
				log.Error(dest.String())
				return err
			}
		}
	}

	return UseViper(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8081)
	v.SetDefault("couchdb.url", "http://localhost:5984/")
	v.SetDefault("couchdb.timeout", couchdb.DefaultTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.syslog", false)
}

func envMap() map[string]string {
	env := make(map[string]string)
	for _, i := range os.Environ() {
		sep := strings.Index(i, "=")
		env[i[0:sep]] = i[sep+1:]
	}
	return env
}

// UseViper sets the configured instance of Config
func UseViper(v *viper.Viper) error {
	couch, err := makeCouch(v)
	if err != nil {
		return err
	}

	views, err := makeViews(v.Get("views"))
	if err != nil {
		return err
	}

	var redisClient redis.UniversalClient
	if u := v.GetString("log.redis"); u != "" {
		opts, err := redis.ParseURL(u)
		if err != nil {
			return fmt.Errorf("config: can't parse redis URL(%s): %s", u, err)
		}
		redisClient = redis.NewClient(opts)
	}

	config = &Config{
		Host:    v.GetString("host"),
		Port:    v.GetInt("port"),
		CouchDB: couch,
		Redis:   redisClient,
		Views:   views,
	}

	return logger.Init(logger.Options{
		Level:  v.GetString("log.level"),
		Syslog: v.GetBool("log.syslog"),
		Redis:  redisClient,
	})
}

func makeCouch(v *viper.Viper) (CouchDB, error) {
	var couch CouchDB
	couchURL, couchAuth, err := parseURL(v.GetString("couchdb.url"))
	if err != nil {
		return couch, err
	}
	if couchURL.Scheme == "" || couchURL.Host == "" {
		return couch, fmt.Errorf("config: invalid couchdb.url %q", couchURL)
	}
	if couchURL.Path == "" {
		couchURL.Path = "/"
	}
	couch.URL = couchURL
	couch.Auth = couchAuth
	couch.Database = v.GetString("couchdb.database")
	couch.Timeout = v.GetDuration("couchdb.timeout")
	if couch.Timeout <= 0 {
		couch.Timeout = couchdb.DefaultTimeout
	}
	return couch, nil
}

// makeViews decodes and validates the views declared in the configuration.
func makeViews(raw interface{}) ([]*autoview.Spec, error) {
	if raw == nil {
		return nil, nil
	}
	var decls []ViewDeclaration
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decls,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.DecodeHookFuncType(splitFieldsHook),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: invalid views: %w", err)
	}

	specs := make([]*autoview.Spec, 0, len(decls))
	seen := make(map[string]bool, len(decls))
	for i, decl := range decls {
		spec, err := autoview.New(decl.Key, decl.Options)
		if err != nil {
			return nil, fmt.Errorf("config: invalid view #%d: %w", i+1, err)
		}
		if seen[spec.Name()] {
			continue
		}
		seen[spec.Name()] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// splitFieldsHook decodes a string into a list of fields separated by
// commas.
func splitFieldsHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}
	return utils.SplitTrimString(reflect.ValueOf(data).String(), ","), nil
}

// UseTestViper installs the configuration of the given viper instance, with
// the defaults of the tests for the missing values. The previous
// configuration is restored at the end of the test.
func UseTestViper(t *testing.T, v *viper.Viper) {
	t.Helper()

	previous := config
	t.Cleanup(func() { config = previous })

	applyDefaults(v)
	if !v.IsSet("couchdb.database") {
		v.Set("couchdb.database", "autoviews-test")
	}
	if err := UseViper(v); err != nil {
		t.Fatalf("fatal error test config: %s", err)
	}
}

// FindConfigFile search in the Paths directories for the file with the given
// name. It returns an error if it cannot find it or if an error occurs while
// searching.
func FindConfigFile(name string) (string, error) {
	for _, cp := range Paths {
		filename := filepath.Join(utils.AbsPath(cp), name)
		ok, err := utils.FileExists(filename)
		if err != nil {
			return "", err
		}
		if ok {
			return filename, nil
		}
	}
	return "", fmt.Errorf("Could not find config file %q", name)
}

// findConfigFiles search in the Paths directories for the first existing directory,
// then look for supported Viper file for both .ext and .ext.local version, the later
// taking precedence.
func findConfigFiles(name string) ([]string, error) {
	var configFiles []string
	configFile := ""
	for _, ext := range viper.SupportedExts {
		configFile, _ = FindConfigFile(name + "." + ext)
		if configFile != "" {
			break
		}
	}
	if configFile == "" {
		return nil, nil
	}

	configFiles = append(configFiles, configFile)

	configFile += ".local"
	ok, _ := utils.FileExists(configFile)
	if ok {
		configFiles = append(configFiles, configFile)
	}

	return configFiles, nil
}

func parseURL(u string) (*url.URL, *url.Userinfo, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, nil, err
	}
	user := parsedURL.User
	parsedURL.User = nil
	return parsedURL, user, nil
}
