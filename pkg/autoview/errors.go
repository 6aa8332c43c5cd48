package autoview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFieldName is used when a field token does not match the
	// field grammar.
	ErrInvalidFieldName = errors.New("invalid field name")
	// ErrInvalidKey is used when the list of key fields is empty.
	ErrInvalidKey = errors.New("key must be a non-empty list of fields")
	// ErrInvalidReduceKind is used for a reduce that is not sum, count or
	// stats.
	ErrInvalidReduceKind = errors.New("reduce must be one of sum, count, or stats")
	// ErrInvalidLimit is used for a negative limit or group level, and for a
	// page size that is not positive.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidRefinementOrder is used when a refinement is called after
	// another refinement of the same class or of a later class.
	ErrInvalidRefinementOrder = errors.New("invalid refinement order")
	// ErrIncompatibleRefinement is used when group or reduce is called on a
	// query that is reversed or limited.
	ErrIncompatibleRefinement = errors.New("incompatible refinement")
)

// ValidationError is returned for an invalid view definition or an invalid
// argument of a refinement. It wraps one of the ErrInvalid* errors.
type ValidationError struct {
	// Field is the option in error: key, value, each, reduce, limit...
	Field string
	// Value is the offending value.
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Err {
	case ErrInvalidFieldName:
		return fmt.Sprintf("autoview: invalid field name for %s: %q", e.Field, e.Value)
	case ErrInvalidReduceKind:
		return fmt.Sprintf("autoview: %s, got %q", e.Err, e.Value)
	case ErrInvalidLimit:
		return fmt.Sprintf("autoview: invalid %s: %s", e.Field, e.Value)
	}
	return "autoview: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RefinementError is returned by the methods of Query when a refinement is
// not allowed on the current state of the query. It wraps
// ErrInvalidRefinementOrder or ErrIncompatibleRefinement.
type RefinementError struct {
	// Op is the refinement that has failed.
	Op string
	// Conflicts is the list of the refinements that forbid Op.
	Conflicts []string
	Err       error
}

func (e *RefinementError) Error() string {
	if e.Err == ErrIncompatibleRefinement {
		return fmt.Sprintf("autoview: %s is incompatible with %s", e.Op, joinOr(e.Conflicts))
	}
	return fmt.Sprintf("autoview: %s cannot follow %s", e.Op, joinOr(e.Conflicts))
}

func (e *RefinementError) Unwrap() error {
	return e.Err
}

// joinOr returns "a", "a or b", or "a, b, or c".
func joinOr(list []string) string {
	switch len(list) {
	case 0:
		return ""
	case 1:
		return list[0]
	case 2:
		return list[0] + " or " + list[1]
	}
	return strings.Join(list[:len(list)-1], ", ") + ", or " + list[len(list)-1]
}
