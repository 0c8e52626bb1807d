package kjoin

import (
	"errors"

	"github.com/birdayz/kcogroup/kserde"
)

var errNoKeyFunc = errors.New("key selector has no function")

// KeySelector extracts the join key of one input. The key type descriptor
// decides how keys are partitioned, so both inputs must use compatible
// descriptors.
type KeySelector[T any, K comparable] struct {
	fn      func(T) (K, error)
	keyType kserde.TypeInfo[K]
}

// NewKeySelector creates a selector from a fallible function.
func NewKeySelector[T any, K comparable](keyType kserde.TypeInfo[K], fn func(T) (K, error)) KeySelector[T, K] {
	return KeySelector[T, K]{fn: fn, keyType: keyType}
}

// KeyBy creates a selector from a function that cannot fail.
func KeyBy[T any, K comparable](keyType kserde.TypeInfo[K], fn func(T) K) KeySelector[T, K] {
	if fn == nil {
		return KeySelector[T, K]{keyType: keyType}
	}
	return NewKeySelector(keyType, func(v T) (K, error) {
		return fn(v), nil
	})
}

func (s KeySelector[T, K]) Key(v T) (K, error) {
	if s.fn == nil {
		var zero K
		return zero, errNoKeyFunc
	}
	return s.fn(v)
}

func (s KeySelector[T, K]) KeyType() kserde.TypeInfo[K] {
	return s.keyType
}

func (s KeySelector[T, K]) valid() bool {
	return s.fn != nil
}
