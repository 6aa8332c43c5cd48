package couchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"

	"github.com/cozy/cozy-autoviews/pkg/couchdb/mapfn"
	"github.com/google/go-querystring/query"
)

// MaxKey is a value that is sorted after any other JSON value that is not an
// object by the CouchDB collation. It is encoded as {}, and is useful as the
// last component of an upper bound for array keys.
var MaxKey = struct{}{}

// View is the map/reduce thing in CouchDB
type View struct {
	Map     interface{} `json:"map"`
	Reduce  interface{} `json:"reduce,omitempty"`
	Options interface{} `json:"options,omitempty"`
}

// DesignDoc is the structure if a _design doc containing views
type DesignDoc struct {
	ID    string           `json:"_id,omitempty"`
	Rev   string           `json:"_rev,omitempty"`
	Lang  string           `json:"language"`
	Views map[string]*View `json:"views"`
	// Autoview is the structural form of the map function for the design
	// docs generated from a field list. CouchDB ignores this member.
	Autoview *mapfn.Program `json:"autoview,omitempty"`
}

// EqualViews returns true if the two design docs have the same language and
// views.
func EqualViews(v1 *DesignDoc, v2 *DesignDoc) bool {
	if v1.Lang != v2.Lang {
		return false
	}
	if len(v1.Views) != len(v2.Views) {
		return false
	}
	for name, view1 := range v1.Views {
		view2, ok := v2.Views[name]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(view1.Map, view2.Map) ||
			!reflect.DeepEqual(view1.Reduce, view2.Reduce) ||
			!reflect.DeepEqual(view1.Options, view2.Options) {
			return false
		}
	}
	return true
}

// ViewRequest are all params that can be passed to a view
// It can be encoded either as a POST-json or a GET-url.
type ViewRequest struct {
	Key      interface{} `json:"key,omitempty" url:"-"`
	StartKey interface{} `json:"start_key,omitempty" url:"-"`
	EndKey   interface{} `json:"end_key,omitempty" url:"-"`

	StartKeyDocID string `json:"startkey_docid,omitempty" url:"startkey_docid,omitempty"`

	Limit       int  `json:"limit,omitempty" url:"limit,omitempty"`
	Skip        int  `json:"skip,omitempty" url:"skip,omitempty"`
	Descending  bool `json:"descending,omitempty" url:"descending,omitempty"`
	IncludeDocs bool `json:"include_docs,omitempty" url:"include_docs,omitempty"`

	// InclusiveEnd is true by default for CouchDB: nil means the default.
	InclusiveEnd *bool `json:"inclusive_end,omitempty" url:"inclusive_end,omitempty"`

	Reduce     bool `json:"reduce" url:"reduce"`
	Group      bool `json:"group" url:"group"`
	GroupLevel int  `json:"group_level,omitempty" url:"group_level,omitempty"`
}

// IsInclusiveEnd returns whether the rows with a key equal to the end key are
// included in the response.
func (vr *ViewRequest) IsInclusiveEnd() bool {
	return vr.InclusiveEnd == nil || *vr.InclusiveEnd
}

// Values returns the parameters of the request for the query-string. The
// keys are JSON encoded, as expected by CouchDB.
func (vr *ViewRequest) Values() (url.Values, error) {
	v, err := query.Values(vr)
	if err != nil {
		return nil, err
	}
	keys := []struct {
		name  string
		value interface{}
	}{
		{"key", vr.Key},
		{"start_key", vr.StartKey},
		{"end_key", vr.EndKey},
	}
	for _, k := range keys {
		if k.value == nil {
			continue
		}
		data, err := json.Marshal(k.value)
		if err != nil {
			return nil, err
		}
		v.Set(k.name, string(data))
	}
	return v, nil
}

// ViewResponseRow is a row in a ViewResponse
type ViewResponseRow struct {
	ID    string          `json:"id,omitempty"`
	Key   interface{}     `json:"key"`
	Value interface{}     `json:"value"`
	Doc   json.RawMessage `json:"doc,omitempty"`
}

// ViewResponse is the response we receive when executing a view
type ViewResponse struct {
	Total  int                `json:"total_rows,omitempty"`
	Offset int                `json:"offset,omitempty"`
	Rows   []*ViewResponseRow `json:"rows"`
}

// QueryView executes the view function of the given design doc.
func (c *Client) QueryView(ctx context.Context, ddoc, view string, req *ViewRequest) (*ViewResponse, error) {
	viewurl := fmt.Sprintf("%s/_design/%s/_view/%s",
		c.dbPath(), url.PathEscape(ddoc), url.PathEscape(view))
	r := *req
	if r.GroupLevel > 0 {
		r.Group = true
	}
	v, err := r.Values()
	if err != nil {
		return nil, err
	}
	viewurl += "?" + v.Encode()
	var res ViewResponse
	if err := c.makeRequest(ctx, http.MethodGet, viewurl, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PutDesignDoc saves a design doc. Without a revision, it is a creation and
// CouchDB answers with a conflict if the design doc already exists. The
// revision of doc is updated on success.
func (c *Client) PutDesignDoc(ctx context.Context, doc *DesignDoc) error {
	var res updateResponse
	if err := c.makeRequest(ctx, http.MethodPut, c.docPath(doc.ID), doc, &res); err != nil {
		return err
	}
	doc.Rev = res.Rev
	return nil
}
