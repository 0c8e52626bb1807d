package kadapter

import (
	"fmt"
	"slices"
)

// MaxArity is the largest number of fields a declared output stream may
// have.
const MaxArity = 25

// DefaultStreamID is used by Emit and as the default input stream id.
const DefaultStreamID = "default"

// Tuple is one emitted value of a handler: an ordered list of attributes
// whose length matches the arity declared for its stream.
type Tuple []any

// Fields names the attributes of a tuple.
type Fields []string

func NewFields(names ...string) Fields {
	return Fields(names)
}

// Index returns the position of name, or -1.
func (f Fields) Index(name string) int {
	return slices.Index(f, name)
}

func (f Fields) Contains(name string) bool {
	return f.Index(name) >= 0
}

// Get returns the attribute called name according to schema.
func (t Tuple) Get(schema Fields, name string) (any, error) {
	i := schema.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q not in %v", ErrNoSuchField, name, schema)
	}
	if i >= len(t) {
		return nil, fmt.Errorf("%w: %q at %d, tuple has %d attributes", ErrNoSuchField, name, i, len(t))
	}
	return t[i], nil
}
