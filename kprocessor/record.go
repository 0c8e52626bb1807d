package kprocessor

import (
	"math"
	"time"
)

// Record is a single stream element: a value plus its event metadata.
type Record[T any] struct {
	Value    T
	Metadata RecordMetadata
}

// RecordMetadata travels with every record through the graph.
type RecordMetadata struct {
	// Timestamp is the event time of the record.
	Timestamp time.Time
	// Channel names the output the record was emitted on. The empty string
	// is the default channel.
	Channel string
	// Source is the topic or source node the record entered the graph from.
	Source    string
	Partition int32
	Offset    int64
	Headers   *Headers
}

// NewRecord creates a record on the default channel.
func NewRecord[T any](value T, ts time.Time) Record[T] {
	return Record[T]{
		Value:    value,
		Metadata: RecordMetadata{Timestamp: ts},
	}
}

// WithValue returns a record carrying v and the metadata of r.
func WithValue[T, U any](r Record[T], v U) Record[U] {
	return Record[U]{Value: v, Metadata: r.Metadata}
}

// Watermark asserts that no further element with a timestamp at or before
// Time will arrive on the stream it travels on.
type Watermark struct {
	Time time.Time
}

var (
	MinWatermark = Watermark{Time: time.Unix(0, math.MinInt64)}
	// MaxWatermark is emitted once a bounded input is exhausted. It fires
	// every pending event-time timer.
	MaxWatermark = Watermark{Time: time.Unix(0, math.MaxInt64)}
)

func (w Watermark) Before(other Watermark) bool {
	return w.Time.Before(other.Time)
}

func (w Watermark) IsMax() bool {
	return w.Time.Equal(MaxWatermark.Time)
}

func (w Watermark) String() string {
	switch {
	case w.IsMax():
		return "watermark(max)"
	case w.Time.Equal(MinWatermark.Time):
		return "watermark(min)"
	}
	return "watermark(" + w.Time.UTC().Format(time.RFC3339Nano) + ")"
}

// Headers holds record headers.
//
// Headers is not safe for concurrent use. Each record is handled by exactly
// one slot goroutine at a time.
type Headers struct {
	headers []RecordHeader
}

type RecordHeader struct {
	Key   string
	Value []byte
}

func NewHeaders() *Headers {
	return &Headers{}
}

// Get returns the first value for key.
func (h *Headers) Get(key string) ([]byte, bool) {
	if h == nil {
		return nil, false
	}
	for _, header := range h.headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}

func (h *Headers) GetString(key string) (string, bool) {
	val, ok := h.Get(key)
	if !ok {
		return "", false
	}
	return string(val), true
}

// Set replaces all values of key with value.
func (h *Headers) Set(key string, value []byte) {
	h.Remove(key)
	h.headers = append(h.headers, RecordHeader{Key: key, Value: value})
}

func (h *Headers) SetString(key, value string) {
	h.Set(key, []byte(value))
}

// Add appends a value without touching existing values of key.
func (h *Headers) Add(key string, value []byte) {
	h.headers = append(h.headers, RecordHeader{Key: key, Value: value})
}

func (h *Headers) Remove(key string) {
	kept := h.headers[:0]
	for _, header := range h.headers {
		if header.Key != key {
			kept = append(kept, header)
		}
	}
	h.headers = kept
}

// All returns a copy of all headers in insertion order.
func (h *Headers) All() []RecordHeader {
	if h == nil {
		return nil
	}
	result := make([]RecordHeader, len(h.headers))
	copy(result, h.headers)
	return result
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.headers)
}
