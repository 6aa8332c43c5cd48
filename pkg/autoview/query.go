package autoview

import (
	"context"
	"strconv"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
)

// refinement is the class of a refinement. The refinements of a query must
// be applied in strictly increasing classes.
type refinement int

const (
	unrefined refinement = iota
	selection
	reversal
	pagination
	finalization
)

// Names of the refinements, as used in the errors
const (
	opKey             = "key"
	opRange           = "range"
	opPrefix          = "prefix"
	opReverse         = "reverse"
	opPage            = "page"
	opNoFullDocuments = "noFullDocuments"
	opGroup           = "group"
	opReduce          = "reduce"
)

type transition struct {
	class refinement
	// reduction is set for the refinements that need the full ascending
	// range of rows.
	reduction bool
}

var transitions = map[string]transition{
	opKey:             {class: selection},
	opRange:           {class: selection},
	opPrefix:          {class: selection},
	opReverse:         {class: reversal},
	opPage:            {class: pagination},
	opNoFullDocuments: {class: finalization},
	opGroup:           {class: finalization, reduction: true},
	opReduce:          {class: finalization, reduction: true},
}

// refinementOps lists the refinements in the order of the error messages.
var refinementOps = []string{
	opKey, opRange, opPrefix, opReverse, opPage, opNoFullDocuments, opGroup, opReduce,
}

// conflictsWith returns the refinements that cannot precede a refinement of
// the given class.
func conflictsWith(class refinement) []string {
	var ops []string
	for _, op := range refinementOps {
		if transitions[op].class >= class {
			ops = append(ops, op)
		}
	}
	return ops
}

type executor interface {
	execute(ctx context.Context, req *couchdb.ViewRequest) (*couchdb.ViewResponse, error)
}

// Query is an immutable query on a view. Each refinement returns a new Query,
// and leaves the receiver untouched: a Query can be shared between
// goroutines and refined in several ways.
//
// The refinements must be called in this order, each class at most once:
//
//  1. Key, Range or Prefix
//  2. Reverse
//  3. Page or PageAfter
//  4. NoFullDocuments, Group or Reduce
//
// Group and Reduce are also rejected on a reversed or limited query.
type Query struct {
	exec   executor
	parent *Query
	level  refinement
	apply  func(req *couchdb.ViewRequest)
}

func newQuery(exec executor) *Query {
	return &Query{exec: exec, level: unrefined}
}

func (q *Query) refine(op string, apply func(req *couchdb.ViewRequest)) (*Query, error) {
	t := transitions[op]
	if q.level >= t.class {
		return nil, &RefinementError{
			Op:        op,
			Conflicts: conflictsWith(t.class),
			Err:       ErrInvalidRefinementOrder,
		}
	}
	if t.reduction {
		req := q.Request()
		var conflicts []string
		if req.Descending {
			conflicts = append(conflicts, opReverse)
		}
		if req.Limit > 0 {
			conflicts = append(conflicts, opPage)
		}
		if len(conflicts) > 0 {
			return nil, &RefinementError{
				Op:        op,
				Conflicts: conflicts,
				Err:       ErrIncompatibleRefinement,
			}
		}
	}
	return &Query{exec: q.exec, parent: q, level: t.class, apply: apply}, nil
}

// Request returns the parameters of the view request for this query. A new
// request is built on each call.
func (q *Query) Request() *couchdb.ViewRequest {
	var chain []*Query
	for n := q; n != nil; n = n.parent {
		if n.apply != nil {
			chain = append(chain, n)
		}
	}
	req := &couchdb.ViewRequest{Reduce: false, IncludeDocs: true}
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].apply(req)
	}
	return req
}

// Key restricts the query to the rows with exactly this key.
func (q *Query) Key(key ...interface{}) (*Query, error) {
	key = cloneKey(key)
	return q.refine(opKey, func(req *couchdb.ViewRequest) {
		req.Key = cloneKey(key)
	})
}

// Range restricts the query to the rows with a key between start and end. The
// rows with the end key are excluded if excludeEnd is true. A nil bound means
// no bound.
func (q *Query) Range(start, end []interface{}, excludeEnd bool) (*Query, error) {
	start, end = cloneBound(start), cloneBound(end)
	return q.refine(opRange, func(req *couchdb.ViewRequest) {
		if start != nil {
			req.StartKey = cloneKey(start)
		}
		if end != nil {
			req.EndKey = cloneKey(end)
		}
		if excludeEnd {
			inclusive := false
			req.InclusiveEnd = &inclusive
		}
	})
}

// Prefix restricts the query to the rows with a key that starts with the
// given components.
func (q *Query) Prefix(prefix ...interface{}) (*Query, error) {
	prefix = cloneKey(prefix)
	return q.refine(opPrefix, func(req *couchdb.ViewRequest) {
		req.StartKey = cloneKey(prefix)
		req.EndKey = append(cloneKey(prefix), couchdb.MaxKey)
	})
}

// Reverse returns the rows in descending order of keys.
func (q *Query) Reverse() (*Query, error) {
	return q.refine(opReverse, func(req *couchdb.ViewRequest) {
		req.Descending = true
		req.StartKey, req.EndKey = req.EndKey, req.StartKey
	})
}

// Page limits the number of rows. A limit of 0 means no limit.
func (q *Query) Page(limit int) (*Query, error) {
	return q.PageAfter(limit, nil, "")
}

// PageAfter limits the number of rows and, if lastKey is not nil, starts
// just after the row with lastKey and lastID, i.e. the last row of the
// previous page.
func (q *Query) PageAfter(limit int, lastKey interface{}, lastID string) (*Query, error) {
	if limit < 0 {
		return nil, &ValidationError{Field: "limit", Value: strconv.Itoa(limit), Err: ErrInvalidLimit}
	}
	if key, ok := lastKey.([]interface{}); ok {
		lastKey = cloneKey(key)
	}
	return q.refine(opPage, func(req *couchdb.ViewRequest) {
		req.Limit = limit
		if lastKey != nil {
			if key, ok := lastKey.([]interface{}); ok {
				req.StartKey = cloneKey(key)
			} else {
				req.StartKey = lastKey
			}
			req.StartKeyDocID = lastID
			req.Skip = 1
		}
	})
}

// NoFullDocuments excludes the documents from the rows.
func (q *Query) NoFullDocuments() (*Query, error) {
	return q.refine(opNoFullDocuments, func(req *couchdb.ViewRequest) {
		req.IncludeDocs = false
	})
}

// Group reduces the rows by groups. With level 0, the rows are grouped by
// exact key, else by the first level components of the key.
func (q *Query) Group(level int) (*Query, error) {
	if level < 0 {
		return nil, &ValidationError{Field: "group level", Value: strconv.Itoa(level), Err: ErrInvalidLimit}
	}
	return q.refine(opGroup, func(req *couchdb.ViewRequest) {
		if level == 0 {
			req.Group = true
		} else {
			req.GroupLevel = level
		}
		req.Reduce = true
		req.IncludeDocs = false
	})
}

// Reduce reduces all the rows to a single value.
func (q *Query) Reduce() (*Query, error) {
	return q.refine(opReduce, func(req *couchdb.ViewRequest) {
		req.Reduce = true
		req.IncludeDocs = false
	})
}

// Exec sends the query and returns the rows, in the order given by CouchDB.
func (q *Query) Exec(ctx context.Context) ([]*couchdb.ViewResponseRow, error) {
	res, err := q.exec.execute(ctx, q.Request())
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// ForEach walks over all the rows of the query, by pages of pageSize rows,
// and calls fn for each row. The query must not be already paginated. It
// stops at the first error returned by fn.
func (q *Query) ForEach(ctx context.Context, pageSize int, fn func(row *couchdb.ViewResponseRow) error) error {
	if pageSize <= 0 {
		return &ValidationError{Field: "page size", Value: strconv.Itoa(pageSize), Err: ErrInvalidLimit}
	}
	page, err := q.Page(pageSize)
	for err == nil {
		var rows []*couchdb.ViewResponseRow
		rows, err = page.Exec(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err = fn(row); err != nil {
				return err
			}
		}
		if len(rows) < pageSize {
			return nil
		}
		last := rows[len(rows)-1]
		page, err = q.PageAfter(pageSize, last.Key, last.ID)
	}
	return err
}

// cloneKey copies a key. The copy is never nil: an empty key is the empty
// array.
func cloneKey(key []interface{}) []interface{} {
	return append(make([]interface{}, 0, len(key)+1), key...)
}

func cloneBound(key []interface{}) []interface{} {
	if key == nil {
		return nil
	}
	return cloneKey(key)
}
