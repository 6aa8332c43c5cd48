package mapfn

import (
	"errors"
	"strings"
)

// ErrEmptyKey is returned when a program without key fields is serialized.
var ErrEmptyKey = errors.New("mapfn: program has no key field")

// Serializer renders a program into the source code of a map function for a
// given design document language.
type Serializer interface {
	Language() string
	Serialize(p *Program) (string, error)
}

// JavaScript is the serializer for the default CouchDB query server.
var JavaScript Serializer = javascript{}

type javascript struct{}

func (javascript) Language() string { return "javascript" }

// Serialize produces a function like:
//
//	function(doc) { var k = []; if (typeof doc.a === "undefined") {return;} k.push(doc.a); var v = null; emit(k, v); }
//
// The field names are not escaped: they must be valid identifiers.
func (javascript) Serialize(p *Program) (string, error) {
	if len(p.Key) == 0 {
		return "", ErrEmptyKey
	}

	var b strings.Builder
	b.WriteString("function(doc) { ")
	if p.Each != "" {
		each := "doc." + p.Each
		b.WriteString("if (!Array.isArray(" + each + ")) {return;} ")
		b.WriteString(each + ".forEach(function(x) { ")
		b.WriteString(`if (x === null || typeof x !== "object" || Array.isArray(x)) {return;} `)
	}

	b.WriteString("var k = []; ")
	for _, ref := range p.Key {
		field := jsRef(ref)
		b.WriteString(`if (typeof ` + field + ` === "undefined") {return;} `)
		b.WriteString("k.push(" + field + "); ")
	}

	b.WriteString("var v = ")
	if p.Value != nil {
		b.WriteString(jsRef(*p.Value))
	} else {
		b.WriteString("null")
	}
	b.WriteString("; emit(k, v); ")

	if p.Each != "" {
		b.WriteString("}); ")
	}
	b.WriteString("}")
	return b.String(), nil
}

func jsRef(ref Ref) string {
	if ref.Element {
		return "x." + ref.Field
	}
	return "doc." + ref.Field
}
