// Package autoview generates CouchDB views from a list of fields and queries
// them with a builder that only accepts the refinements in a valid order.
//
// A Spec describes a view: the fields of the key, an optional value, an
// optional built-in reduce function, and an optional array field for emitting
// one row per element. The name of the view is derived from the Spec, and the
// design document is created on the first query by AutoView.
package autoview

import (
	"regexp"
	"strings"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/cozy/cozy-autoviews/pkg/couchdb/mapfn"
)

var (
	fieldRegexp        = regexp.MustCompile(`^[a-zA-Z_]\w*$`)
	elementFieldRegexp = regexp.MustCompile(`^\.?[a-zA-Z_]\w*$`)
)

// ReduceKind is one of the built-in reduce functions of CouchDB.
type ReduceKind string

const (
	// NoReduce is for a view without reduce function.
	NoReduce ReduceKind = ""
	// ReduceSum is for the _sum reduce function.
	ReduceSum ReduceKind = "sum"
	// ReduceCount is for the _count reduce function.
	ReduceCount ReduceKind = "count"
	// ReduceStats is for the _stats reduce function.
	ReduceStats ReduceKind = "stats"
)

// Builtin returns the name of the reduce function for CouchDB, like "_count".
func (k ReduceKind) Builtin() string {
	if k == NoReduce {
		return ""
	}
	return "_" + string(k)
}

// Options are the optional parts of a view.
type Options struct {
	// Each is the name of an array field: a row is emitted for each element
	// of this array, and the key and value fields starting with a dot are
	// read on the element.
	Each string `json:"each,omitempty" mapstructure:"each"`
	// Value is the field emitted as value. The value is null if empty.
	Value string `json:"value,omitempty" mapstructure:"value"`
	// Reduce is the kind of the reduce function: sum, count, or stats.
	Reduce string `json:"reduce,omitempty" mapstructure:"reduce"`
}

// Spec is the validated definition of an auto view. It is immutable.
type Spec struct {
	key    []string
	each   string
	value  string
	reduce ReduceKind
	name   string
}

// New validates the key fields and the options, and returns the Spec of the
// view.
func New(key []string, opts Options) (*Spec, error) {
	re := fieldRegexp
	if opts.Each != "" {
		if !fieldRegexp.MatchString(opts.Each) {
			return nil, &ValidationError{Field: "each", Value: opts.Each, Err: ErrInvalidFieldName}
		}
		re = elementFieldRegexp
	}

	if len(key) == 0 {
		return nil, &ValidationError{Field: "key", Err: ErrInvalidKey}
	}
	for _, field := range key {
		if !re.MatchString(field) {
			return nil, &ValidationError{Field: "key", Value: field, Err: ErrInvalidFieldName}
		}
	}

	if opts.Value != "" && !re.MatchString(opts.Value) {
		return nil, &ValidationError{Field: "value", Value: opts.Value, Err: ErrInvalidFieldName}
	}

	kind := ReduceKind(opts.Reduce)
	switch kind {
	case NoReduce, ReduceSum, ReduceCount, ReduceStats:
	default:
		return nil, &ValidationError{Field: "reduce", Value: opts.Reduce, Err: ErrInvalidReduceKind}
	}

	s := &Spec{
		key:    append([]string{}, key...),
		each:   opts.Each,
		value:  opts.Value,
		reduce: kind,
	}
	s.name = s.canonicalName()
	return s, nil
}

// MustNew is like New but panics if the definition is invalid. It is meant
// for the views declared in package variables.
func MustNew(key []string, opts Options) *Spec {
	s, err := New(key, opts)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Spec) canonicalName() string {
	parts := []string{strings.Join(s.key, "-")}
	if s.reduce != NoReduce {
		parts = append(parts, string(s.reduce))
	}
	if s.value != "" {
		parts = append(parts, s.value)
	}
	if s.each != "" {
		parts = append(parts, s.each)
	}
	return strings.Join(parts, "--")
}

// Name returns the canonical name of the view, used for both the design doc
// and the view. For example, ["even", "key"] with a count gives
// "even-key--count".
func (s *Spec) Name() string { return s.name }

// String returns the canonical name.
func (s *Spec) String() string { return s.name }

// DesignDocID returns the identifier of the design document of the view.
func (s *Spec) DesignDocID() string { return "_design/" + s.name }

// Key returns a copy of the key fields.
func (s *Spec) Key() []string { return append([]string{}, s.key...) }

// Each returns the fan-out field, or an empty string.
func (s *Spec) Each() string { return s.each }

// Value returns the value field, or an empty string.
func (s *Spec) Value() string { return s.value }

// Reduce returns the kind of the reduce function.
func (s *Spec) Reduce() ReduceKind { return s.reduce }

// Options returns the options that give this Spec with New.
func (s *Spec) Options() Options {
	return Options{Each: s.each, Value: s.value, Reduce: string(s.reduce)}
}

// Program returns the structural form of the map function of the view.
func (s *Spec) Program() *mapfn.Program {
	p := &mapfn.Program{
		Each: s.each,
		Key:  make([]mapfn.Ref, len(s.key)),
	}
	for i, field := range s.key {
		p.Key[i] = mapfn.ParseRef(field)
	}
	if s.value != "" {
		ref := mapfn.ParseRef(s.value)
		p.Value = &ref
	}
	return p
}

// MapSource returns the JavaScript source of the map function.
func (s *Spec) MapSource() (string, error) {
	return mapfn.JavaScript.Serialize(s.Program())
}

// DesignDoc returns the design document of the view, with the map function
// in JavaScript.
func (s *Spec) DesignDoc() (*couchdb.DesignDoc, error) {
	return s.RenderDesignDoc(mapfn.JavaScript)
}

// RenderDesignDoc returns the design document of the view, with the map
// function rendered by the given serializer. The document has no revision:
// saving it is a creation.
func (s *Spec) RenderDesignDoc(ser mapfn.Serializer) (*couchdb.DesignDoc, error) {
	prog := s.Program()
	source, err := ser.Serialize(prog)
	if err != nil {
		return nil, err
	}
	view := &couchdb.View{Map: source}
	if s.reduce != NoReduce {
		view.Reduce = s.reduce.Builtin()
	}
	return &couchdb.DesignDoc{
		ID:       s.DesignDocID(),
		Lang:     ser.Language(),
		Views:    map[string]*couchdb.View{s.name: view},
		Autoview: prog,
	}, nil
}
