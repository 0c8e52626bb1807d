package kserde

// Serde bundles the two directions of a value codec.
type Serde[T any] struct {
	Serializer   Serializer[T]
	Deserializer Deserializer[T]
}

type Serializer[T any] func(T) ([]byte, error)

type Deserializer[T any] func([]byte) (T, error)

// Valid reports whether both directions are set.
func (s Serde[T]) Valid() bool {
	return s.Serializer != nil && s.Deserializer != nil
}
