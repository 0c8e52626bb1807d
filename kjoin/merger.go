package kjoin

import (
	"github.com/birdayz/kcogroup/kstream"
)

// Merge wraps both inputs into envelopes and unions them into one stream.
// Helper nodes are named name-left, name-right and name-union.
func Merge[T1, T2 any, K comparable](
	left kstream.Stream[T1],
	right kstream.Stream[T2],
	leftKey KeySelector[T1, K],
	rightKey KeySelector[T2, K],
	name string,
) (kstream.Stream[Envelope[K, T1, T2]], error) {
	wrappedLeft, err := kstream.Map(left, name+"-left", func(v T1) (Envelope[K, T1, T2], error) {
		return WrapLeft[K, T1, T2](v, leftKey)
	})
	if err != nil {
		return kstream.Stream[Envelope[K, T1, T2]]{}, err
	}

	wrappedRight, err := kstream.Map(right, name+"-right", func(v T2) (Envelope[K, T1, T2], error) {
		return WrapRight[K, T1, T2](v, rightKey)
	})
	if err != nil {
		return kstream.Stream[Envelope[K, T1, T2]]{}, err
	}

	return kstream.Union(name+"-union", wrappedLeft, wrappedRight)
}
