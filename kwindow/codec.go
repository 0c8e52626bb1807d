package kwindow

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUnknownWindow = errors.New("unknown window encoding")

const (
	tagGlobal byte = 1
	tagTime   byte = 2
)

// EncodeWindow serializes w. Encodings of time windows sort by start, then
// end, which keeps a store's per-key windows in time order.
func EncodeWindow(w Window) ([]byte, error) {
	switch w := w.(type) {
	case GlobalWindow:
		return []byte{tagGlobal}, nil
	case TimeWindow:
		buf := make([]byte, 17)
		buf[0] = tagTime
		// flip the sign bit so negative timestamps sort before positive ones
		binary.BigEndian.PutUint64(buf[1:9], uint64(w.start)^(1<<63))
		binary.BigEndian.PutUint64(buf[9:17], uint64(w.end)^(1<<63))
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownWindow, w)
	}
}

// DecodeWindow is the inverse of EncodeWindow.
func DecodeWindow(b []byte) (Window, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrUnknownWindow)
	}
	switch b[0] {
	case tagGlobal:
		if len(b) != 1 {
			return nil, fmt.Errorf("%w: global window with %d trailing bytes", ErrUnknownWindow, len(b)-1)
		}
		return GlobalWindow{}, nil
	case tagTime:
		if len(b) != 17 {
			return nil, fmt.Errorf("%w: time window needs 17 bytes, got %d", ErrUnknownWindow, len(b))
		}
		return TimeWindow{
			start: int64(binary.BigEndian.Uint64(b[1:9]) ^ (1 << 63)),
			end:   int64(binary.BigEndian.Uint64(b[9:17]) ^ (1 << 63)),
		}, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownWindow, b[0])
	}
}
