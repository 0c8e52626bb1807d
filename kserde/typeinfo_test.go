package kserde

import (
	"errors"
	"reflect"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestTypeInfo(t *testing.T) {
	t.Run("describes go type", func(t *testing.T) {
		assert.Equal(t, "string", StringType.Name())
		assert.Equal(t, reflect.TypeOf(""), StringType.Type())
		assert.False(t, StringType.IsZero())
		assert.True(t, TypeInfo[string]{}.IsZero())
	})

	t.Run("compatibility", func(t *testing.T) {
		assert.True(t, StringType.Compatible(NewTypeInfo("string", String)))
		assert.False(t, StringType.Compatible(NewTypeInfo("upper-string", String)))
	})

	t.Run("hash is stable and serde based", func(t *testing.T) {
		h1, err := StringType.Hash("A")
		assert.NoError(t, err)
		h2, err := StringType.Hash("A")
		assert.NoError(t, err)
		h3, err := StringType.Hash("B")
		assert.NoError(t, err)
		assert.Equal(t, h1, h2)
		assert.NotEqual(t, h1, h3)
	})

	t.Run("hash without serde", func(t *testing.T) {
		_, err := TypeInfo[string]{name: "bare"}.Hash("A")
		assert.True(t, errors.Is(err, ErrNoSerde))
	})

	t.Run("serializer error", func(t *testing.T) {
		failing := NewTypeInfo("failing", Serde[int]{
			Serializer:   func(int) ([]byte, error) { return nil, errors.New("boom") },
			Deserializer: func([]byte) (int, error) { return 0, nil },
		})
		_, err := failing.Hash(1)
		assert.EqualError(t, err, "serialize failing for hashing: boom")
	})
}
