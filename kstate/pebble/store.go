// Package pebble keeps window buffers in a Pebble LSM so that large windows
// do not have to fit in memory.
package pebble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/multierr"

	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
	"github.com/birdayz/kcogroup/kstate"
	"github.com/birdayz/kcogroup/kwindow"
)

var (
	errCorrupt = errors.New("pebble store: corrupt entry")
	// ErrTooLarge is returned for records whose metadata does not fit the
	// on-disk layout.
	ErrTooLarge = errors.New("pebble store: record too large")
)

type options struct {
	fs   vfs.FS
	sync bool
}

type Option func(*options)

// WithFS replaces the filesystem, e.g. vfs.NewMem() in tests.
var WithFS = func(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithSync makes every write durable before it returns.
var WithSync = func(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// NewStoreBuilder opens one Pebble database per slot below
// stateDir/<name>/slot-<n>. Buffers left behind by an earlier run are
// discarded on open; unfired windows are never carried across runs.
func NewStoreBuilder[K comparable, T any](
	stateDir string,
	keySerde kserde.Serde[K],
	valueSerde kserde.Serde[T],
	opts ...Option,
) kstate.StoreBuilder[K, T] {
	o := options{fs: vfs.Default}
	for _, opt := range opts {
		opt(&o)
	}

	return func(name string, slot int) (kstate.WindowStore[K, T], error) {
		if !keySerde.Valid() || !valueSerde.Valid() {
			return nil, fmt.Errorf("pebble store %s: key and value serdes are required", name)
		}
		dir := filepath.Join(stateDir, name, fmt.Sprintf("slot-%d", slot))
		db, err := pebble.Open(dir, &pebble.Options{FS: o.fs})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", dir, err)
		}

		s := &Store[K, T]{
			name:       name,
			db:         db,
			keySerde:   keySerde,
			valueSerde: valueSerde,
			writeOpts:  pebble.NoSync,
		}
		if o.sync {
			s.writeOpts = pebble.Sync
		}
		if err := s.discardAll(); err != nil {
			return nil, multierr.Append(err, db.Close())
		}
		return s, nil
	}
}

// Store is a kstate.WindowStore on Pebble.
//
// Element keys are laid out as
//
//	uint16 len(key) | key | window | uint64 seq
//
// so that the elements of one (key, window) form a contiguous range in
// arrival order.
type Store[K comparable, T any] struct {
	name       string
	db         *pebble.DB
	keySerde   kserde.Serde[K]
	valueSerde kserde.Serde[T]
	writeOpts  *pebble.WriteOptions
	seq        uint64
}

func (s *Store[K, T]) Name() string {
	return s.name
}

func (s *Store[K, T]) Persistent() bool {
	return true
}

func (s *Store[K, T]) Append(_ context.Context, key K, w kwindow.Window, rec kprocessor.Record[T]) error {
	prefix, err := s.prefix(key, w)
	if err != nil {
		return err
	}
	value, err := s.encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.db.Set(s.elementKey(prefix), value, s.writeOpts)
}

func (s *Store[K, T]) Get(_ context.Context, key K, w kwindow.Window) ([]kprocessor.Record[T], error) {
	prefix, err := s.prefix(key, w)
	if err != nil {
		return nil, err
	}

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}

	var out []kprocessor.Record[T]
	for it.First(); it.Valid(); it.Next() {
		val, err := it.ValueAndErr()
		if err != nil {
			return nil, multierr.Append(err, it.Close())
		}
		rec, err := s.decodeRecord(val)
		if err != nil {
			return nil, multierr.Append(err, it.Close())
		}
		out = append(out, rec)
	}
	return out, it.Close()
}

func (s *Store[K, T]) Replace(_ context.Context, key K, w kwindow.Window, recs []kprocessor.Record[T]) error {
	prefix, err := s.prefix(key, w)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return err
	}
	for _, rec := range recs {
		value, err := s.encodeRecord(rec)
		if err != nil {
			return err
		}
		if err := b.Set(s.elementKey(prefix), value, nil); err != nil {
			return err
		}
	}
	return b.Commit(s.writeOpts)
}

func (s *Store[K, T]) Delete(_ context.Context, key K, w kwindow.Window) error {
	prefix, err := s.prefix(key, w)
	if err != nil {
		return err
	}
	return s.db.DeleteRange(prefix, prefixEnd(prefix), s.writeOpts)
}

// Windows yields every (key, window) with at least one element. Iteration
// stops at the first undecodable entry.
func (s *Store[K, T]) Windows(context.Context) iter.Seq2[K, kwindow.Window] {
	return func(yield func(K, kwindow.Window) bool) {
		it, err := s.db.NewIter(nil)
		if err != nil {
			return
		}
		defer it.Close()

		var last []byte
		for it.First(); it.Valid(); it.Next() {
			k := it.Key()
			if len(k) < 8 {
				return
			}
			prefix := k[:len(k)-8]
			if last != nil && string(prefix) == string(last) {
				continue
			}
			last = append(last[:0], prefix...)

			key, w, err := s.decodePrefix(prefix)
			if err != nil {
				return
			}
			if !yield(key, w) {
				return
			}
		}
	}
}

// Close drops every buffered element and closes the database.
func (s *Store[K, T]) Close() error {
	return multierr.Combine(s.discardAll(), s.db.Flush(), s.db.Close())
}

func (s *Store[K, T]) prefix(key K, w kwindow.Window) ([]byte, error) {
	keyBytes, err := s.keySerde.Serializer(key)
	if err != nil {
		return nil, fmt.Errorf("serialize key: %w", err)
	}
	if len(keyBytes) > 0xFFFF {
		return nil, fmt.Errorf("serialized key of %d bytes exceeds 65535", len(keyBytes))
	}
	windowBytes, err := kwindow.EncodeWindow(w)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 2+len(keyBytes)+len(windowBytes)+8)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(keyBytes)))
	buf = append(buf, keyBytes...)
	buf = append(buf, windowBytes...)
	return buf, nil
}

func (s *Store[K, T]) decodePrefix(prefix []byte) (K, kwindow.Window, error) {
	var zero K
	if len(prefix) < 2 {
		return zero, nil, errCorrupt
	}
	n := int(binary.BigEndian.Uint16(prefix))
	if len(prefix) < 2+n {
		return zero, nil, errCorrupt
	}
	key, err := s.keySerde.Deserializer(prefix[2 : 2+n])
	if err != nil {
		return zero, nil, err
	}
	w, err := kwindow.DecodeWindow(prefix[2+n:])
	if err != nil {
		return zero, nil, err
	}
	return key, w, nil
}

func (s *Store[K, T]) elementKey(prefix []byte) []byte {
	s.seq++
	k := make([]byte, len(prefix), len(prefix)+8)
	copy(k, prefix)
	return binary.BigEndian.AppendUint64(k, s.seq)
}

// discardAll deletes the whole keyspace.
func (s *Store[K, T]) discardAll() error {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	if !it.First() {
		return it.Close()
	}
	start := append([]byte(nil), it.Key()...)
	it.Last()
	// the successor of the last key bounds the range
	end := append(append([]byte(nil), it.Key()...), 0)
	if err := it.Close(); err != nil {
		return err
	}
	return s.db.DeleteRange(start, end, s.writeOpts)
}

// Values are laid out as
//
//	int64 timestamp | uint16 len(channel) | channel | uint16 len(source) |
//	source | int32 partition | int64 offset | uint16 #headers |
//	{uint16 len(k) | k | uint32 len(v) | v}* | value
func (s *Store[K, T]) encodeRecord(rec kprocessor.Record[T]) ([]byte, error) {
	md := rec.Metadata
	headers := md.Headers.All()
	if err := checkLen("channel", len(md.Channel), math.MaxUint16); err != nil {
		return nil, err
	}
	if err := checkLen("source", len(md.Source), math.MaxUint16); err != nil {
		return nil, err
	}
	if err := checkLen("header count", len(headers), math.MaxUint16); err != nil {
		return nil, err
	}
	for _, h := range headers {
		if err := checkLen("header key", len(h.Key), math.MaxUint16); err != nil {
			return nil, err
		}
		if err := checkLen("header value", len(h.Value), math.MaxUint32); err != nil {
			return nil, err
		}
	}

	value, err := s.valueSerde.Serializer(rec.Value)
	if err != nil {
		return nil, fmt.Errorf("serialize value: %w", err)
	}

	buf := make([]byte, 0, 26+len(md.Channel)+len(md.Source)+len(value))
	buf = binary.BigEndian.AppendUint64(buf, uint64(md.Timestamp.UnixNano()))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(md.Channel)))
	buf = append(buf, md.Channel...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(md.Source)))
	buf = append(buf, md.Source...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(md.Partition))
	buf = binary.BigEndian.AppendUint64(buf, uint64(md.Offset))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(headers)))
	for _, h := range headers {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(h.Key)))
		buf = append(buf, h.Key...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(h.Value)))
		buf = append(buf, h.Value...)
	}
	return append(buf, value...), nil
}

func checkLen(field string, n int, max int64) error {
	if int64(n) > max {
		return fmt.Errorf("%w: %s length %d exceeds %d", ErrTooLarge, field, n, max)
	}
	return nil
}

func (s *Store[K, T]) decodeRecord(b []byte) (kprocessor.Record[T], error) {
	var rec kprocessor.Record[T]
	r := reader{buf: b}

	ts := int64(r.uint64())
	channel := string(r.bytes(int(r.uint16())))
	source := string(r.bytes(int(r.uint16())))
	partition := int32(r.uint32())
	offset := int64(r.uint64())
	if n := int(r.uint16()); n > 0 {
		rec.Metadata.Headers = kprocessor.NewHeaders()
		for i := 0; i < n; i++ {
			k := string(r.bytes(int(r.uint16())))
			v := r.bytes(int(r.uint32()))
			rec.Metadata.Headers.Add(k, append([]byte(nil), v...))
		}
	}
	if r.err != nil {
		return rec, fmt.Errorf("decode record: %w", r.err)
	}

	value, err := s.valueSerde.Deserializer(append([]byte(nil), r.buf...))
	if err != nil {
		return rec, fmt.Errorf("deserialize value: %w", err)
	}
	rec.Value = value
	rec.Metadata.Timestamp = timeFromNanos(ts)
	rec.Metadata.Channel = channel
	rec.Metadata.Source = source
	rec.Metadata.Partition = partition
	rec.Metadata.Offset = offset
	return rec, nil
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var _ kstate.WindowStore[string, string] = (*Store[string, string])(nil)
