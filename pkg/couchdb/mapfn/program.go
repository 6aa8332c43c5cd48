// Package mapfn describes CouchDB map functions as data.
//
// A Program is the structural form of a map function that extracts some
// fields of a document (or of each element of an array of the document),
// skips the rows where a key field is undefined, and emits an array key with
// an optional value. It can be interpreted in Go with Eval, or rendered into
// the source code expected by a design document with a Serializer.
package mapfn

import "strings"

// Ref is a reference to a field, either on the document itself or, when the
// program fans out, on the current element of the array.
type Ref struct {
	Field   string `json:"field" mapstructure:"field"`
	Element bool   `json:"element,omitempty" mapstructure:"element"`
}

// ParseRef parses a field token: "name" references a field of the document,
// and ".name" a field of the fanned-out element.
func ParseRef(token string) Ref {
	if strings.HasPrefix(token, ".") {
		return Ref{Field: token[1:], Element: true}
	}
	return Ref{Field: token}
}

// String returns the token form of the reference.
func (r Ref) String() string {
	if r.Element {
		return "." + r.Field
	}
	return r.Field
}

// Program is the structural description of a map function.
type Program struct {
	// Each is the name of an array field of the document. When it is set,
	// the program is run once per element of this array that is an object,
	// and the documents without such an array emit nothing.
	Each string `json:"each,omitempty" mapstructure:"each"`
	// Key is the list of fields used to build the emitted key, in order.
	Key []Ref `json:"key" mapstructure:"key"`
	// Value is the field emitted as value, or nil for a null value.
	Value *Ref `json:"value,omitempty" mapstructure:"value"`
}

// Emit is a (key, value) pair emitted by a program for a document.
type Emit struct {
	Key   []interface{}
	Value interface{}
}

// Eval runs the program on a document and returns the emitted rows.
func (p *Program) Eval(doc map[string]interface{}) []Emit {
	if p.Each == "" {
		if e, ok := p.emit(doc, nil); ok {
			return []Emit{e}
		}
		return nil
	}

	list, ok := doc[p.Each].([]interface{})
	if !ok {
		return nil
	}
	var emits []Emit
	for _, item := range list {
		elem, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if e, ok := p.emit(doc, elem); ok {
			emits = append(emits, e)
		}
	}
	return emits
}

func (p *Program) emit(doc, elem map[string]interface{}) (Emit, bool) {
	key := make([]interface{}, 0, len(p.Key))
	for _, ref := range p.Key {
		v, ok := resolve(ref, doc, elem)
		if !ok {
			return Emit{}, false
		}
		key = append(key, v)
	}
	var value interface{}
	if p.Value != nil {
		value, _ = resolve(*p.Value, doc, elem)
	}
	return Emit{Key: key, Value: value}, true
}

// resolve returns the value of the referenced field, and false if the field
// is undefined. A null value is defined.
func resolve(ref Ref, doc, elem map[string]interface{}) (interface{}, bool) {
	src := doc
	if ref.Element {
		src = elem
	}
	if src == nil {
		return nil, false
	}
	v, ok := src[ref.Field]
	return v, ok
}
