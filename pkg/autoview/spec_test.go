package autoview

import (
	"errors"
	"testing"

	"github.com/cozy/cozy-autoviews/pkg/couchdb/mapfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecName(t *testing.T) {
	tests := []struct {
		name string
		key  []string
		opts Options
		want string
	}{
		{name: "KeyOnly", key: []string{"key"}, want: "key"},
		{name: "CompositeKey", key: []string{"even", "key"}, want: "even-key"},
		{name: "Reduce", key: []string{"even", "key"}, opts: Options{Reduce: "count"}, want: "even-key--count"},
		{name: "Value", key: []string{"key"}, opts: Options{Value: "n"}, want: "key--n"},
		{name: "Each", key: []string{".name"}, opts: Options{Each: "tags"}, want: ".name--tags"},
		{
			name: "All",
			key:  []string{"type", ".name"},
			opts: Options{Each: "tags", Value: ".weight", Reduce: "sum"},
			want: "type-.name--sum--.weight--tags",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := New(test.key, test.opts)
			require.NoError(t, err)
			assert.Equal(t, test.want, s.Name())
			assert.Equal(t, "_design/"+test.want, s.DesignDocID())

			again, err := New(test.key, s.Options())
			require.NoError(t, err)
			assert.Equal(t, s.Name(), again.Name())
		})
	}
}

func TestSpecValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   []string
		opts  Options
		err   error
		field string
	}{
		{name: "NilKey", key: nil, err: ErrInvalidKey, field: "key"},
		{name: "EmptyKey", key: []string{}, err: ErrInvalidKey, field: "key"},
		{name: "DigitFirst", key: []string{"1key"}, err: ErrInvalidFieldName, field: "key"},
		{name: "Dash", key: []string{"a-b"}, err: ErrInvalidFieldName, field: "key"},
		{name: "Dotted", key: []string{"a.b"}, err: ErrInvalidFieldName, field: "key"},
		{name: "ElementWithoutEach", key: []string{".name"}, err: ErrInvalidFieldName, field: "key"},
		{name: "InvalidValue", key: []string{"key"}, opts: Options{Value: "$v"}, err: ErrInvalidFieldName, field: "value"},
		{name: "ElementValueWithoutEach", key: []string{"key"}, opts: Options{Value: ".v"}, err: ErrInvalidFieldName, field: "value"},
		{name: "InvalidEach", key: []string{"key"}, opts: Options{Each: ".tags"}, err: ErrInvalidFieldName, field: "each"},
		{name: "InvalidElement", key: []string{"..name"}, opts: Options{Each: "tags"}, err: ErrInvalidFieldName, field: "key"},
		{name: "InvalidReduce", key: []string{"key"}, opts: Options{Reduce: "avg"}, err: ErrInvalidReduceKind, field: "reduce"},
		{name: "BuiltinReduceName", key: []string{"key"}, opts: Options{Reduce: "_count"}, err: ErrInvalidReduceKind, field: "reduce"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := New(test.key, test.opts)
			assert.Nil(t, s)
			require.ErrorIs(t, err, test.err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, test.field, verr.Field)
		})
	}
}

func TestSpecErrorMessages(t *testing.T) {
	_, err := New([]string{"key", "1bad"}, Options{})
	assert.EqualError(t, err, `autoview: invalid field name for key: "1bad"`)

	_, err = New([]string{"key"}, Options{Reduce: "avg"})
	assert.EqualError(t, err, `autoview: reduce must be one of sum, count, or stats, got "avg"`)

	_, err = New(nil, Options{})
	assert.EqualError(t, err, "autoview: key must be a non-empty list of fields")
}

func TestSpecIsImmutable(t *testing.T) {
	key := []string{"a", "b"}
	s, err := New(key, Options{})
	require.NoError(t, err)
	key[0] = "z"
	assert.Equal(t, "a-b", s.Name())

	got := s.Key()
	got[1] = "z"
	assert.Equal(t, []string{"a", "b"}, s.Key())
}

func TestSpecProgram(t *testing.T) {
	s := MustNew([]string{"type", ".name"}, Options{Each: "tags", Value: ".weight", Reduce: "stats"})
	assert.Equal(t, &mapfn.Program{
		Each:  "tags",
		Key:   []mapfn.Ref{{Field: "type"}, {Field: "name", Element: true}},
		Value: &mapfn.Ref{Field: "weight", Element: true},
	}, s.Program())
	assert.Equal(t, ReduceStats, s.Reduce())
	assert.Equal(t, "_stats", s.Reduce().Builtin())
	assert.Equal(t, "", NoReduce.Builtin())

	assert.Panics(t, func() { MustNew(nil, Options{}) })
}

func TestSpecDesignDoc(t *testing.T) {
	s := MustNew([]string{"even", "key"}, Options{Reduce: "count"})
	doc, err := s.DesignDoc()
	require.NoError(t, err)

	assert.Equal(t, "_design/even-key--count", doc.ID)
	assert.Empty(t, doc.Rev)
	assert.Equal(t, "javascript", doc.Lang)
	require.Contains(t, doc.Views, "even-key--count")
	view := doc.Views["even-key--count"]
	assert.Equal(t, "_count", view.Reduce)
	assert.Equal(t,
		`function(doc) { var k = []; if (typeof doc.even === "undefined") {return;} k.push(doc.even); `+
			`if (typeof doc.key === "undefined") {return;} k.push(doc.key); var v = null; emit(k, v); }`,
		view.Map)
	assert.Equal(t, s.Program(), doc.Autoview)

	src, err := s.MapSource()
	require.NoError(t, err)
	assert.Equal(t, view.Map, src)

	doc, err = MustNew([]string{"key"}, Options{}).DesignDoc()
	require.NoError(t, err)
	assert.Nil(t, doc.Views["key"].Reduce)
}

func TestSpecMapSourceEach(t *testing.T) {
	s := MustNew([]string{".name"}, Options{Each: "tags", Value: "n"})
	src, err := s.MapSource()
	require.NoError(t, err)
	assert.Equal(t,
		`function(doc) { if (!Array.isArray(doc.tags)) {return;} doc.tags.forEach(function(x) { `+
			`if (x === null || typeof x !== "object" || Array.isArray(x)) {return;} `+
			`var k = []; if (typeof x.name === "undefined") {return;} k.push(x.name); var v = doc.n; emit(k, v); }); }`,
		src)
}
