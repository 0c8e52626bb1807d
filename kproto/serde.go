// Package kproto provides protobuf serdes and validation for streams of
// proto.Message values.
package kproto

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/birdayz/kcogroup/kserde"
)

// Serializer returns a protobuf serializer for any proto.Message type.
//
// Deterministic marshalling keeps map fields in a stable order, so that
// equal messages hash to the same slot when used as keys.
func Serializer[T proto.Message]() kserde.Serializer[T] {
	opts := proto.MarshalOptions{Deterministic: true}
	return func(v T) ([]byte, error) {
		return opts.Marshal(v)
	}
}

// Deserializer returns a protobuf deserializer. newFn creates an empty
// message.
//
//	deserializer := kproto.Deserializer(func() *pb.Order { return &pb.Order{} })
func Deserializer[T proto.Message](newFn func() T) kserde.Deserializer[T] {
	return func(data []byte) (T, error) {
		msg := newFn()
		if err := proto.Unmarshal(data, msg); err != nil {
			var zero T
			return zero, fmt.Errorf("unmarshal %T: %w", msg, err)
		}
		return msg, nil
	}
}

// DeserializerFor is Deserializer creating messages via protoreflect.
func DeserializerFor[T proto.Message]() kserde.Deserializer[T] {
	return func(data []byte) (T, error) {
		var zero T
		msg := zero.ProtoReflect().New().Interface().(T)
		if err := proto.Unmarshal(data, msg); err != nil {
			return zero, fmt.Errorf("unmarshal %T: %w", msg, err)
		}
		return msg, nil
	}
}

func Serde[T proto.Message]() kserde.Serde[T] {
	return kserde.Serde[T]{
		Serializer:   Serializer[T](),
		Deserializer: DeserializerFor[T](),
	}
}

// TypeInfo describes T by its full protobuf message name, e.g. for join
// results written with kstream.KafkaSink.
func TypeInfo[T proto.Message]() kserde.TypeInfo[T] {
	var zero T
	return kserde.NewTypeInfo("proto:"+string(zero.ProtoReflect().Descriptor().FullName()), Serde[T]())
}
