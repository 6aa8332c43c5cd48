package autoview

import (
	"encoding/json"
	"fmt"
)

// ParseKey decodes the JSON form of a key, as written on a command line or
// in a query-string. An array gives the components of a composite key; any
// other value is a key with a single component.
func ParseKey(data []byte) ([]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("autoview: invalid key %q: %w", data, err)
	}
	if list, ok := v.([]interface{}); ok {
		return list, nil
	}
	return []interface{}{v}, nil
}
