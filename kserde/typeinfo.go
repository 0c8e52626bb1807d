package kserde

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

var ErrNoSerde = errors.New("type info has no serde")

// TypeInfo describes a value type flowing through the graph: a stable name,
// the Go type, and the serde used for partitioning and external sinks.
//
// Two descriptors are compatible when both the name and the Go type agree.
// Keys of both join inputs must use compatible descriptors, otherwise equal
// keys could hash to different slots.
type TypeInfo[T any] struct {
	name   string
	goType reflect.Type
	serde  Serde[T]
}

func NewTypeInfo[T any](name string, serde Serde[T]) TypeInfo[T] {
	return TypeInfo[T]{
		name:   name,
		goType: reflect.TypeOf((*T)(nil)).Elem(),
		serde:  serde,
	}
}

func (ti TypeInfo[T]) Name() string {
	return ti.name
}

func (ti TypeInfo[T]) Type() reflect.Type {
	return ti.goType
}

func (ti TypeInfo[T]) Serde() Serde[T] {
	return ti.serde
}

// IsZero reports whether ti was never initialized through NewTypeInfo.
func (ti TypeInfo[T]) IsZero() bool {
	return ti.goType == nil
}

func (ti TypeInfo[T]) String() string {
	return fmt.Sprintf("%s(%v)", ti.name, ti.goType)
}

// Compatible reports whether values described by ti and other serialize the
// same way.
func (ti TypeInfo[T]) Compatible(other TypeInfo[T]) bool {
	return ti.name == other.name && ti.goType == other.goType
}

// Hash returns the partition hash of v: xxhash64 over its serialized form.
func (ti TypeInfo[T]) Hash(v T) (uint64, error) {
	if ti.serde.Serializer == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoSerde, ti)
	}
	b, err := ti.serde.Serializer(v)
	if err != nil {
		return 0, fmt.Errorf("serialize %s for hashing: %w", ti.name, err)
	}
	return xxhash.Sum64(b), nil
}

var (
	StringType  = NewTypeInfo("string", String)
	Int64Type   = NewTypeInfo("int64", Int64)
	Int32Type   = NewTypeInfo("int32", Int32)
	Uint64Type  = NewTypeInfo("uint64", Uint64)
	Float64Type = NewTypeInfo("float64", Float64)
)

// JSONType describes T encoded as JSON. name should identify the payload
// schema, e.g. "json:order".
func JSONType[T any](name string) TypeInfo[T] {
	return NewTypeInfo(name, JSON[T]())
}
