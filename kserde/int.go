package kserde

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

// fixedWidth builds a big-endian serde for an integer type that fits into
// size bytes.
func fixedWidth[T constraints.Integer](size int) Serde[T] {
	return Serde[T]{
		Serializer: func(data T) ([]byte, error) {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(data))
			return buf[8-size:], nil
		},
		Deserializer: func(data []byte) (T, error) {
			if len(data) != size {
				return 0, fmt.Errorf("%d-byte integer deserialization got %d bytes", size, len(data))
			}
			buf := make([]byte, 8)
			copy(buf[8-size:], data)
			v := binary.BigEndian.Uint64(buf)
			// sign-extend narrow signed values
			shift := uint(64 - 8*size)
			return T(int64(v<<shift) >> shift), nil
		},
	}
}

// Int64 is a SerDe for int64 values
var Int64 = fixedWidth[int64](8)

// Int32 is a SerDe for int32 values
var Int32 = fixedWidth[int32](4)

// Uint64 is a SerDe for uint64 values.
var Uint64 = Serde[uint64]{
	Serializer: func(data uint64) ([]byte, error) {
		return binary.BigEndian.AppendUint64(nil, data), nil
	},
	Deserializer: func(data []byte) (uint64, error) {
		if len(data) != 8 {
			return 0, fmt.Errorf("8-byte integer deserialization got %d bytes", len(data))
		}
		return binary.BigEndian.Uint64(data), nil
	},
}

var (
	Int64Serializer   = Int64.Serializer
	Int64Deserializer = Int64.Deserializer
	Int32Serializer   = Int32.Serializer
	Int32Deserializer = Int32.Deserializer
)
