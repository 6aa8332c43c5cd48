package memstore

import (
	"fmt"
	"math"
	"net/http"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
)

// reducer is a built-in reduce function of CouchDB.
type reducer func(values []interface{}) (interface{}, error)

var reducers = map[string]reducer{
	"_count": reduceCount,
	"_sum":   reduceSum,
	"_stats": reduceStats,
}

func builtinReduceError(name string, v interface{}) error {
	return &couchdb.Error{
		StatusCode: http.StatusInternalServerError,
		Name:       "builtin_reduce_error",
		Reason:     fmt.Sprintf("%s function requires that map values be numbers or arrays of numbers, got %v", name, v),
	}
}

func reduceCount(values []interface{}) (interface{}, error) {
	return float64(len(values)), nil
}

func reduceSum(values []interface{}) (interface{}, error) {
	var total float64
	var totals []interface{}
	for _, v := range values {
		switch v := v.(type) {
		case float64:
			total += v
		case []interface{}:
			for i, item := range v {
				n, ok := item.(float64)
				if !ok {
					return nil, builtinReduceError("_sum", item)
				}
				if i < len(totals) {
					totals[i] = totals[i].(float64) + n
				} else {
					totals = append(totals, n)
				}
			}
		default:
			return nil, builtinReduceError("_sum", v)
		}
	}
	if totals == nil {
		return total, nil
	}
	if len(totals) > 0 {
		totals[0] = totals[0].(float64) + total
	}
	return totals, nil
}

func reduceStats(values []interface{}) (interface{}, error) {
	sum, sumsqr := 0.0, 0.0
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		n, ok := v.(float64)
		if !ok {
			return nil, builtinReduceError("_stats", v)
		}
		sum += n
		sumsqr += n * n
		min = math.Min(min, n)
		max = math.Max(max, n)
	}
	if len(values) == 0 {
		min, max = 0, 0
	}
	return map[string]interface{}{
		"sum":    sum,
		"count":  float64(len(values)),
		"min":    min,
		"max":    max,
		"sumsqr": sumsqr,
	}, nil
}
