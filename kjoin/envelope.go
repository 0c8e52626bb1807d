package kjoin

import "fmt"

// Origin tags which join input an element came from.
type Origin uint8

const (
	Left Origin = iota + 1
	Right
)

func (o Origin) String() string {
	switch o {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Origin(%d)", uint8(o))
	}
}

// TaggedUnion holds exactly one value of either input type.
type TaggedUnion[T1, T2 any] struct {
	origin Origin
	left   T1
	right  T2
}

func (u TaggedUnion[T1, T2]) Origin() Origin {
	return u.origin
}

func (u TaggedUnion[T1, T2]) IsLeft() bool {
	return u.origin == Left
}

// Left returns the left value; ok is false for right values.
func (u TaggedUnion[T1, T2]) Left() (v T1, ok bool) {
	return u.left, u.origin == Left
}

// Right returns the right value; ok is false for left values.
func (u TaggedUnion[T1, T2]) Right() (v T2, ok bool) {
	return u.right, u.origin == Right
}

// Envelope is the element type of the merged join input: the tagged payload
// together with the key extracted by the origin's key selector.
type Envelope[K comparable, T1, T2 any] struct {
	key     K
	payload TaggedUnion[T1, T2]
}

// WrapLeft runs sel on v and wraps it as a left envelope.
func WrapLeft[K comparable, T1, T2 any](v T1, sel KeySelector[T1, K]) (Envelope[K, T1, T2], error) {
	k, err := sel.Key(v)
	if err != nil {
		return Envelope[K, T1, T2]{}, fmt.Errorf("select left key: %w", err)
	}
	return Envelope[K, T1, T2]{key: k, payload: TaggedUnion[T1, T2]{origin: Left, left: v}}, nil
}

// WrapRight runs sel on v and wraps it as a right envelope.
func WrapRight[K comparable, T1, T2 any](v T2, sel KeySelector[T2, K]) (Envelope[K, T1, T2], error) {
	k, err := sel.Key(v)
	if err != nil {
		return Envelope[K, T1, T2]{}, fmt.Errorf("select right key: %w", err)
	}
	return Envelope[K, T1, T2]{key: k, payload: TaggedUnion[T1, T2]{origin: Right, right: v}}, nil
}

func (e Envelope[K, T1, T2]) Origin() Origin {
	return e.payload.origin
}

func (e Envelope[K, T1, T2]) Key() K {
	return e.key
}

func (e Envelope[K, T1, T2]) Payload() TaggedUnion[T1, T2] {
	return e.payload
}

func (e Envelope[K, T1, T2]) String() string {
	if v, ok := e.payload.Left(); ok {
		return fmt.Sprintf("left(%v: %v)", e.key, v)
	}
	v, _ := e.payload.Right()
	return fmt.Sprintf("right(%v: %v)", e.key, v)
}
