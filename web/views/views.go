// Package views exposes the auto views declared in the configuration over
// HTTP. The query-string parameters are mapped to the refinements of the
// query builder.
package views

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/labstack/echo/v4"
)

// HTTPHandler handles the requests on the declared auto views.
type HTTPHandler struct {
	views map[string]*autoview.AutoView
	names []string
}

// NewHTTPHandler returns a handler for the given auto views on store.
func NewHTTPHandler(store autoview.Store, specs []*autoview.Spec) *HTTPHandler {
	h := &HTTPHandler{views: make(map[string]*autoview.AutoView, len(specs))}
	for _, spec := range specs {
		if _, ok := h.views[spec.Name()]; ok {
			continue
		}
		h.views[spec.Name()] = autoview.NewAutoView(store, spec)
		h.names = append(h.names, spec.Name())
	}
	sort.Strings(h.names)
	return h
}

// Definition is the JSON representation of a declared view.
type Definition struct {
	Name      string   `json:"name"`
	DesignDoc string   `json:"design_doc"`
	Key       []string `json:"key"`
	Each      string   `json:"each,omitempty"`
	Value     string   `json:"value,omitempty"`
	Reduce    string   `json:"reduce,omitempty"`
}

func newDefinition(spec *autoview.Spec) Definition {
	return Definition{
		Name:      spec.Name(),
		DesignDoc: spec.DesignDocID(),
		Key:       spec.Key(),
		Each:      spec.Each(),
		Value:     spec.Value(),
		Reduce:    string(spec.Reduce()),
	}
}

// List returns the definitions of the declared views.
func (h *HTTPHandler) List(c echo.Context) error {
	list := make([]Definition, 0, len(h.names))
	for _, name := range h.names {
		list = append(list, newDefinition(h.views[name].Spec()))
	}
	return c.JSON(http.StatusOK, list)
}

// Show returns the definition of a declared view, with its map function.
func (h *HTTPHandler) Show(c echo.Context) error {
	view, err := h.lookup(c)
	if err != nil {
		return err
	}
	ddoc, err := view.Spec().DesignDoc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"definition": newDefinition(view.Spec()),
		"design_doc": ddoc,
	})
}

// Ensure creates the design document of a view if it does not exist yet.
func (h *HTTPHandler) Ensure(c echo.Context) error {
	view, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := view.Ensure(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
		"id": view.Spec().DesignDocID(),
	})
}

// Rows is the body of the response of a query.
type Rows struct {
	Name    string                     `json:"name"`
	Request *couchdb.ViewRequest       `json:"request"`
	Rows    []*couchdb.ViewResponseRow `json:"rows"`
}

// Query executes a query on a view. The parameters are:
//
//   - key, start_key, end_key, prefix: JSON values (an array for a
//     composite key)
//   - exclude_end: the rows with end_key are not returned
//   - descending
//   - limit, with after_key and after_id to fetch the next page
//   - include_docs=false
//   - group, group_level or reduce
func (h *HTTPHandler) Query(c echo.Context) error {
	view, err := h.lookup(c)
	if err != nil {
		return err
	}
	q, err := buildQuery(c, view.Query())
	if err != nil {
		return err
	}
	rows, err := q.Exec(c.Request().Context())
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []*couchdb.ViewResponseRow{}
	}
	return c.JSON(http.StatusOK, Rows{
		Name:    view.Spec().Name(),
		Request: q.Request(),
		Rows:    rows,
	})
}

func (h *HTTPHandler) lookup(c echo.Context) (*autoview.AutoView, error) {
	name := c.Param("name")
	view, ok := h.views[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no view declared with the name "+strconv.Quote(name))
	}
	return view, nil
}

func buildQuery(c echo.Context, q *autoview.Query) (*autoview.Query, error) {
	key, err := keyParam(c, "key")
	if err != nil {
		return nil, err
	}
	start, err := keyParam(c, "start_key")
	if err != nil {
		return nil, err
	}
	end, err := keyParam(c, "end_key")
	if err != nil {
		return nil, err
	}
	prefix, err := keyParam(c, "prefix")
	if err != nil {
		return nil, err
	}
	excludeEnd, err := boolParam(c, "exclude_end")
	if err != nil {
		return nil, err
	}

	// The selections are all tried: the builder rejects a second one.
	if key != nil {
		if q, err = q.Key(key...); err != nil {
			return nil, err
		}
	}
	if start != nil || end != nil || excludeEnd {
		if q, err = q.Range(start, end, excludeEnd); err != nil {
			return nil, err
		}
	}
	if prefix != nil {
		if q, err = q.Prefix(prefix...); err != nil {
			return nil, err
		}
	}

	if descending, err := boolParam(c, "descending"); err != nil {
		return nil, err
	} else if descending {
		if q, err = q.Reverse(); err != nil {
			return nil, err
		}
	}

	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, badParam("limit", err)
		}
		var afterKey interface{}
		if raw := c.QueryParam("after_key"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &afterKey); err != nil {
				return nil, badParam("after_key", err)
			}
		}
		if q, err = q.PageAfter(n, afterKey, c.QueryParam("after_id")); err != nil {
			return nil, err
		}
	}

	group, err := boolParam(c, "group")
	if err != nil {
		return nil, err
	}
	reduce, err := boolParam(c, "reduce")
	if err != nil {
		return nil, err
	}
	// The finalizations are all tried too.
	if raw := c.QueryParam("group_level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			return nil, badParam("group_level", err)
		}
		if q, err = q.Group(level); err != nil {
			return nil, err
		}
	}
	if group {
		if q, err = q.Group(0); err != nil {
			return nil, err
		}
	}
	if reduce {
		if q, err = q.Reduce(); err != nil {
			return nil, err
		}
	}
	if c.QueryParam("include_docs") != "" {
		docs, err := boolParam(c, "include_docs")
		if err != nil {
			return nil, err
		}
		if !docs {
			if q, err = q.NoFullDocuments(); err != nil {
				return nil, err
			}
		}
	}
	return q, nil
}

func keyParam(c echo.Context, name string) ([]interface{}, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	key, err := autoview.ParseKey([]byte(raw))
	if err != nil {
		return nil, badParam(name, err)
	}
	return key, nil
}

func boolParam(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badParam(name, err)
	}
	return b, nil
}

func badParam(name string, err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid parameter "+name).SetInternal(err)
}

// Register sets the routing for the views service
func (h *HTTPHandler) Register(router *echo.Group) {
	router.GET("", h.List)
	router.GET("/", h.List)
	router.GET("/:name", h.Query)
	router.GET("/:name/definition", h.Show)
	router.POST("/:name/ensure", h.Ensure)
}
