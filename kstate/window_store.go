package kstate

import (
	"context"
	"errors"
	"iter"

	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kwindow"
)

var ErrStoreClosed = errors.New("store: closed")

// WindowStore buffers elements per (key, window) in arrival order.
//
// A store instance belongs to exactly one slot and is never shared between
// goroutines.
type WindowStore[K comparable, T any] interface {
	Name() string
	// Append adds rec to the end of the (key, w) buffer, creating it if needed.
	Append(ctx context.Context, key K, w kwindow.Window, rec kprocessor.Record[T]) error
	// Get returns the buffer of (key, w), or nil if it does not exist.
	Get(ctx context.Context, key K, w kwindow.Window) ([]kprocessor.Record[T], error)
	// Replace overwrites the buffer. An empty slice deletes it.
	Replace(ctx context.Context, key K, w kwindow.Window, recs []kprocessor.Record[T]) error
	Delete(ctx context.Context, key K, w kwindow.Window) error
	// Windows iterates over all non-empty buffers.
	Windows(ctx context.Context) iter.Seq2[K, kwindow.Window]
	Persistent() bool
	Close() error
}

// StoreBuilder opens the store of one slot.
type StoreBuilder[K comparable, T any] func(name string, slot int) (WindowStore[K, T], error)
