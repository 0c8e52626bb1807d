package kadapter

import (
	"fmt"

	"github.com/birdayz/kcogroup/kstream"
)

// Outputs is the result of running a handler in a stream graph.
type Outputs[In any] struct {
	spec    *Spec[In]
	all     kstream.Stream[Tuple]
	streams map[string]kstream.Stream[Tuple]
}

// Transform appends an operator running the handler of spec to s.
func Transform[In any](s kstream.Stream[In], name string, spec *Spec[In]) (*Outputs[In], error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: spec is nil", ErrIllegalArgument)
	}
	all, err := kstream.Transform(s, name, spec.Builder())
	if err != nil {
		return nil, err
	}
	return &Outputs[In]{
		spec:    spec,
		all:     all,
		streams: make(map[string]kstream.Stream[Tuple]),
	}, nil
}

// All returns the tuples of every declared stream. Record channels carry
// the stream id.
func (o *Outputs[In]) All() kstream.Stream[Tuple] {
	return o.all
}

// Stream returns the tuples emitted on streamID.
func (o *Outputs[In]) Stream(streamID string) (kstream.Stream[Tuple], error) {
	if s, ok := o.streams[streamID]; ok {
		return s, nil
	}
	if _, ok := o.spec.arities[streamID]; !ok {
		return kstream.Stream[Tuple]{}, fmt.Errorf("%w: %q", ErrUndeclaredStream, streamID)
	}

	s, err := kstream.SelectChannel(o.all, o.all.Name()+"-"+streamID, streamID)
	if err != nil {
		return kstream.Stream[Tuple]{}, err
	}
	o.streams[streamID] = s
	return s, nil
}

// Raw returns the single attribute of the tuples of a raw output stream.
// Attributes not of type T fail the job.
func Raw[T, In any](o *Outputs[In], streamID string) (kstream.Stream[T], error) {
	if !o.spec.isRaw(streamID) {
		return kstream.Stream[T]{}, fmt.Errorf("%w: %q is not a raw output", ErrIllegalArgument, streamID)
	}
	s, err := o.Stream(streamID)
	if err != nil {
		return kstream.Stream[T]{}, err
	}
	return kstream.Map(s, s.Name()+"-raw", func(t Tuple) (T, error) {
		v, ok := t[0].(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("raw output %q: attribute is %T, want %T", streamID, t[0], zero)
		}
		return v, nil
	})
}
