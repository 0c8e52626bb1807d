package kstate

import (
	"context"
	"iter"
	"slices"

	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kwindow"
)

type bufferKey[K comparable] struct {
	key    K
	window kwindow.Window
}

type memoryStore[K comparable, T any] struct {
	name    string
	buffers map[bufferKey[K]][]kprocessor.Record[T]
	closed  bool
}

// InMemory keeps window buffers on the heap. It is the default store.
func InMemory[K comparable, T any]() StoreBuilder[K, T] {
	return func(name string, _ int) (WindowStore[K, T], error) {
		return &memoryStore[K, T]{
			name:    name,
			buffers: make(map[bufferKey[K]][]kprocessor.Record[T]),
		}, nil
	}
}

func (s *memoryStore[K, T]) Name() string {
	return s.name
}

func (s *memoryStore[K, T]) Append(_ context.Context, key K, w kwindow.Window, rec kprocessor.Record[T]) error {
	if s.closed {
		return ErrStoreClosed
	}
	bk := bufferKey[K]{key: key, window: w}
	s.buffers[bk] = append(s.buffers[bk], rec)
	return nil
}

func (s *memoryStore[K, T]) Get(_ context.Context, key K, w kwindow.Window) ([]kprocessor.Record[T], error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	return slices.Clone(s.buffers[bufferKey[K]{key: key, window: w}]), nil
}

func (s *memoryStore[K, T]) Replace(_ context.Context, key K, w kwindow.Window, recs []kprocessor.Record[T]) error {
	if s.closed {
		return ErrStoreClosed
	}
	bk := bufferKey[K]{key: key, window: w}
	if len(recs) == 0 {
		delete(s.buffers, bk)
		return nil
	}
	s.buffers[bk] = slices.Clone(recs)
	return nil
}

func (s *memoryStore[K, T]) Delete(_ context.Context, key K, w kwindow.Window) error {
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.buffers, bufferKey[K]{key: key, window: w})
	return nil
}

func (s *memoryStore[K, T]) Windows(context.Context) iter.Seq2[K, kwindow.Window] {
	return func(yield func(K, kwindow.Window) bool) {
		for bk := range s.buffers {
			if !yield(bk.key, bk.window) {
				return
			}
		}
	}
}

func (s *memoryStore[K, T]) Persistent() bool {
	return false
}

func (s *memoryStore[K, T]) Close() error {
	s.closed = true
	clear(s.buffers)
	return nil
}
