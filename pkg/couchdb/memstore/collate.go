package memstore

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Type ranks of the CouchDB collation
const (
	rankNull = iota
	rankFalse
	rankTrue
	rankNumber
	rankString
	rankArray
	rankObject
)

// collator compares JSON values (as decoded by encoding/json) in the order
// used by CouchDB for the view keys. It is not safe for concurrent use.
type collator struct {
	strings *collate.Collator
}

func newCollator() *collator {
	return &collator{strings: collate.New(language.Und)}
}

func rank(v interface{}) int {
	switch v := v.(type) {
	case nil:
		return rankNull
	case bool:
		if v {
			return rankTrue
		}
		return rankFalse
	case float64:
		return rankNumber
	case string:
		return rankString
	case []interface{}:
		return rankArray
	default:
		return rankObject
	}
}

// compare returns -1, 0 or 1 if a is before, equal to or after b.
func (c *collator) compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a := a.(type) {
	case float64:
		b := b.(float64)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case string:
		if n := c.strings.CompareString(a, b.(string)); n != 0 {
			return n
		}
		// The collation is not a total order (it ignores some differences),
		// use the code points to break ties.
		return cmpString(a, b.(string))
	case []interface{}:
		b := b.([]interface{})
		for i := 0; i < len(a) && i < len(b); i++ {
			if n := c.compare(a[i], b[i]); n != 0 {
				return n
			}
		}
		return cmpInt(len(a), len(b))
	case map[string]interface{}:
		b, _ := b.(map[string]interface{})
		ka, kb := sortedKeys(a), sortedKeys(b)
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if n := c.compare(ka[i], kb[i]); n != 0 {
				return n
			}
			if n := c.compare(a[ka[i]], b[kb[i]]); n != 0 {
				return n
			}
		}
		return cmpInt(len(ka), len(kb))
	}
	return 0
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
