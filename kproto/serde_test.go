package kproto

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestSerializer(t *testing.T) {
	data, err := Serializer[*wrapperspb.StringValue]()(wrapperspb.String("hello world"))
	assert.NoError(t, err)

	decoded := &wrapperspb.StringValue{}
	assert.NoError(t, proto.Unmarshal(data, decoded))
	assert.Equal(t, "hello world", decoded.GetValue())
}

func TestDeserializer(t *testing.T) {
	data, err := proto.Marshal(wrapperspb.String("test value"))
	assert.NoError(t, err)

	t.Run("with constructor", func(t *testing.T) {
		decoded, err := Deserializer(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })(data)
		assert.NoError(t, err)
		assert.Equal(t, "test value", decoded.GetValue())
	})

	t.Run("via reflection", func(t *testing.T) {
		decoded, err := DeserializerFor[*wrapperspb.StringValue]()(data)
		assert.NoError(t, err)
		assert.Equal(t, "test value", decoded.GetValue())
	})

	t.Run("invalid data", func(t *testing.T) {
		_, err := DeserializerFor[*wrapperspb.StringValue]()([]byte{0xFF, 0xFF, 0xFF})
		assert.Error(t, err)
	})
}

func TestTypeInfo(t *testing.T) {
	ti := TypeInfo[*wrapperspb.Int64Value]()
	assert.Equal(t, "proto:google.protobuf.Int64Value", ti.Name())

	b, err := ti.Serde().Serializer(wrapperspb.Int64(42))
	assert.NoError(t, err)
	v, err := ti.Serde().Deserializer(b)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v.GetValue())
}

func TestDeterministicHash(t *testing.T) {
	ti := TypeInfo[*structpb.Struct]()

	a, err := structpb.NewStruct(map[string]any{"a": 1, "b": "x", "c": true, "d": 2.5})
	assert.NoError(t, err)
	b, err := structpb.NewStruct(map[string]any{"d": 2.5, "c": true, "b": "x", "a": 1})
	assert.NoError(t, err)

	ha, err := ti.Hash(a)
	assert.NoError(t, err)
	hb, err := ti.Hash(b)
	assert.NoError(t, err)
	assert.Equal(t, ha, hb)
}
