package config

import (
	"math"
	"reflect"
	"strconv"
)

// numericFuncsMap are the functions available in the configuration files,
// that are parsed as text/template before being read by viper.
var numericFuncsMap = map[string]interface{}{
	"add": func(i ...interface{}) int64 {
		var a int64
		for _, b := range i {
			a += toInt64(b)
		}
		return a
	},
	"sub": func(a, b interface{}) int64 { return toInt64(a) - toInt64(b) },
	"mul": func(a interface{}, v ...interface{}) int64 {
		val := toInt64(a)
		for _, b := range v {
			val = val * toInt64(b)
		}
		return val
	},
	// default returns def when the value is empty, like for a missing
	// environment variable: {{ default "autoviews" .Env.COUCHDB_DATABASE }}
	"default": func(def string, v ...string) string {
		if len(v) == 0 || v[0] == "" {
			return def
		}
		return v[0]
	},
}

// toInt64 converts integer types to 64-bit integers
func toInt64(v interface{}) int64 {
	if str, ok := v.(string); ok {
		iv, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0
		}
		return iv
	}

	val := reflect.Indirect(reflect.ValueOf(v))
	switch val.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return val.Int()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(val.Uint())
	case reflect.Uint, reflect.Uint64:
		return int64(min(val.Uint(), math.MaxInt64))
	case reflect.Float32, reflect.Float64:
		return int64(val.Float())
	case reflect.Bool:
		if val.Bool() {
			return 1
		}
		return 0
	default:
		return 0
	}
}
