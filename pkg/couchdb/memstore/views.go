package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
)

type row struct {
	id    string
	key   interface{}
	value interface{}
	doc   map[string]interface{}
}

type group struct {
	key    interface{}
	values []interface{}
}

// QueryView executes the view of the given design doc. The design doc must
// have been generated from a mapfn program: the JavaScript functions are not
// interpreted.
func (s *Store) QueryView(ctx context.Context, ddoc, view string, req *couchdb.ViewRequest) (*couchdb.ViewResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, raw := s.snapshot(designPrefix + ddoc)
	if raw == nil {
		return nil, couchdb.NewNotFoundError("missing")
	}
	var design couchdb.DesignDoc
	if err := remarshal(raw, &design); err != nil {
		return nil, err
	}
	v, ok := design.Views[view]
	if !ok {
		return nil, couchdb.NewNotFoundError("missing_named_view")
	}
	if design.Autoview == nil {
		return nil, notImplemented("only the views generated from a field list can be evaluated")
	}

	var reduceFn reducer
	if v.Reduce != nil {
		name, _ := v.Reduce.(string)
		if reduceFn, ok = reducers[name]; !ok {
			return nil, notImplemented(fmt.Sprintf("unknown reduce function %v", v.Reduce))
		}
	}
	if err := checkRequest(req, reduceFn != nil); err != nil {
		return nil, err
	}

	key, err := normalize(req.Key)
	if err != nil {
		return nil, err
	}
	start, err := normalize(req.StartKey)
	if err != nil {
		return nil, err
	}
	end, err := normalize(req.EndKey)
	if err != nil {
		return nil, err
	}

	c := newCollator()
	var rows []row
	for _, doc := range docs {
		id, _ := doc["_id"].(string)
		for _, e := range design.Autoview.Eval(doc) {
			rows = append(rows, row{id: id, key: e.Key, value: e.Value, doc: doc})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if n := c.compare(rows[i].key, rows[j].key); n != 0 {
			return n < 0
		}
		return rows[i].id < rows[j].id
	})
	dir := 1
	if req.Descending {
		dir = -1
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	first := -1
	var selected []row
	for i, r := range rows {
		if req.Key != nil && c.compare(r.key, key) != 0 {
			continue
		}
		if req.StartKey != nil {
			n := c.compare(r.key, start) * dir
			if n < 0 {
				continue
			}
			if n == 0 && req.StartKeyDocID != "" && cmpString(r.id, req.StartKeyDocID)*dir < 0 {
				continue
			}
		}
		if req.EndKey != nil {
			n := c.compare(r.key, end) * dir
			if n > 0 || (n == 0 && !req.IsInclusiveEnd()) {
				continue
			}
		}
		if first < 0 {
			first = i
		}
		selected = append(selected, r)
	}

	if req.Reduce {
		return reduceRows(c, selected, req, reduceFn)
	}

	res := &couchdb.ViewResponse{Total: len(rows)}
	if first < 0 {
		first = len(rows)
	}
	res.Offset = min(first+req.Skip, len(rows))
	res.Rows = []*couchdb.ViewResponseRow{}
	for _, r := range window(selected, req.Skip, req.Limit) {
		out := &couchdb.ViewResponseRow{ID: r.id, Key: r.key, Value: r.value}
		if req.IncludeDocs {
			if out.Doc, err = json.Marshal(r.doc); err != nil {
				return nil, err
			}
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func checkRequest(req *couchdb.ViewRequest, hasReduce bool) error {
	grouping := req.Group || req.GroupLevel > 0
	switch {
	case req.Reduce && !hasReduce:
		return couchdb.NewQueryParseError("Reduce is invalid for map-only views.")
	case grouping && !req.Reduce:
		return couchdb.NewQueryParseError("Invalid use of grouping on a map view.")
	case req.Reduce && req.IncludeDocs:
		return couchdb.NewQueryParseError("`include_docs` is invalid for reduce")
	case req.Limit < 0:
		return couchdb.NewQueryParseError(fmt.Sprintf("Invalid value for integer: \"%d\"", req.Limit))
	case req.Skip < 0:
		return couchdb.NewQueryParseError(fmt.Sprintf("Invalid value for integer: \"%d\"", req.Skip))
	case req.GroupLevel < 0:
		return couchdb.NewQueryParseError(fmt.Sprintf("Invalid value for integer: \"%d\"", req.GroupLevel))
	}
	return nil
}

func reduceRows(c *collator, rows []row, req *couchdb.ViewRequest, fn reducer) (*couchdb.ViewResponse, error) {
	exact := req.Group && req.GroupLevel == 0
	var groups []group
	for _, r := range rows {
		var key interface{}
		switch {
		case exact:
			key = r.key
		case req.GroupLevel > 0:
			key = truncate(r.key, req.GroupLevel)
		}
		if n := len(groups); n > 0 && c.compare(groups[n-1].key, key) == 0 {
			groups[n-1].values = append(groups[n-1].values, r.value)
			continue
		}
		groups = append(groups, group{key: key, values: []interface{}{r.value}})
	}

	res := &couchdb.ViewResponse{Rows: []*couchdb.ViewResponseRow{}}
	for _, g := range window(groups, req.Skip, req.Limit) {
		value, err := fn(g.values)
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, &couchdb.ViewResponseRow{Key: g.key, Value: value})
	}
	return res, nil
}

func truncate(key interface{}, level int) interface{} {
	arr, ok := key.([]interface{})
	if !ok || len(arr) <= level {
		return key
	}
	return append([]interface{}{}, arr[:level]...)
}

func window[T any](list []T, skip, limit int) []T {
	if skip >= len(list) {
		return nil
	}
	list = list[skip:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// normalize converts a value to what encoding/json gives when decoding its
// JSON representation, so that it can be compared with the keys of the rows.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	var out interface{}
	if err := remarshal(v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func remarshal(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func notImplemented(reason string) error {
	return &couchdb.Error{
		StatusCode: http.StatusNotImplemented,
		Name:       "not_implemented",
		Reason:     reason,
	}
}
