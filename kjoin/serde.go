package kjoin

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/birdayz/kcogroup/kserde"
)

var ErrInvalidEnvelope = errors.New("invalid envelope encoding")

// EnvelopeSerde encodes envelopes for disk-backed window stores as
// origin | uvarint(len(key)) | key | payload.
func EnvelopeSerde[K comparable, T1, T2 any](
	key kserde.Serde[K],
	left kserde.Serde[T1],
	right kserde.Serde[T2],
) kserde.Serde[Envelope[K, T1, T2]] {
	return kserde.Serde[Envelope[K, T1, T2]]{
		Serializer: func(e Envelope[K, T1, T2]) ([]byte, error) {
			k, err := key.Serializer(e.key)
			if err != nil {
				return nil, fmt.Errorf("serialize envelope key: %w", err)
			}

			var payload []byte
			switch e.payload.origin {
			case Left:
				payload, err = left.Serializer(e.payload.left)
			case Right:
				payload, err = right.Serializer(e.payload.right)
			default:
				return nil, fmt.Errorf("%w: origin %s", ErrInvalidEnvelope, e.payload.origin)
			}
			if err != nil {
				return nil, fmt.Errorf("serialize %s payload: %w", e.payload.origin, err)
			}

			buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(k)+len(payload))
			buf = append(buf, byte(e.payload.origin))
			buf = binary.AppendUvarint(buf, uint64(len(k)))
			buf = append(buf, k...)
			return append(buf, payload...), nil
		},
		Deserializer: func(b []byte) (Envelope[K, T1, T2], error) {
			var e Envelope[K, T1, T2]
			if len(b) < 1 {
				return e, ErrInvalidEnvelope
			}
			origin := Origin(b[0])

			n, size := binary.Uvarint(b[1:])
			if size <= 0 || uint64(len(b)-1-size) < n {
				return e, fmt.Errorf("%w: bad key length", ErrInvalidEnvelope)
			}
			rest := b[1+size:]

			k, err := key.Deserializer(rest[:n])
			if err != nil {
				return e, fmt.Errorf("deserialize envelope key: %w", err)
			}
			e.key = k
			payload := rest[n:]

			switch origin {
			case Left:
				v, err := left.Deserializer(payload)
				if err != nil {
					return e, fmt.Errorf("deserialize left payload: %w", err)
				}
				e.payload = TaggedUnion[T1, T2]{origin: Left, left: v}
			case Right:
				v, err := right.Deserializer(payload)
				if err != nil {
					return e, fmt.Errorf("deserialize right payload: %w", err)
				}
				e.payload = TaggedUnion[T1, T2]{origin: Right, right: v}
			default:
				return e, fmt.Errorf("%w: origin %d", ErrInvalidEnvelope, uint8(origin))
			}
			return e, nil
		},
	}
}
