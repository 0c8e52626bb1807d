package kadapter

import (
	"context"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/birdayz/kcogroup/kmetrics"
	"github.com/birdayz/kcogroup/kprocessor"
)

// Emitter is the sink a handler emits tuples to. Emission errors are
// reported by the adapter once Execute returns.
type Emitter interface {
	// Emit sends values on the default stream.
	Emit(values ...any)
	EmitTo(streamID string, values ...any)
}

type emitter struct {
	ctx       context.Context
	collector *kprocessor.TimestampedCollector[Tuple]
	arities   map[string]int
	operator  string
	emitted   map[string]prometheus.Counter
	err       error
}

func newEmitter(collector *kprocessor.TimestampedCollector[Tuple], arities map[string]int, operator string) *emitter {
	return &emitter{
		ctx:       context.Background(),
		collector: collector,
		arities:   arities,
		operator:  operator,
		emitted:   make(map[string]prometheus.Counter, len(arities)),
	}
}

func (e *emitter) Emit(values ...any) {
	e.EmitTo(DefaultStreamID, values...)
}

func (e *emitter) EmitTo(streamID string, values ...any) {
	n, ok := e.arities[streamID]
	if !ok {
		e.err = multierr.Append(e.err, fmt.Errorf("%w: %q", ErrUndeclaredStream, streamID))
		return
	}
	if len(values) != n {
		e.err = multierr.Append(e.err, fmt.Errorf("%w: stream %q declares %d attributes, got %d",
			ErrArityMismatch, streamID, n, len(values)))
		return
	}

	// values may be a buffer the handler reuses for the next call
	e.collector.CollectOn(e.ctx, streamID, Tuple(slices.Clone(values)))
	e.counter(streamID).Inc()
}

func (e *emitter) counter(streamID string) prometheus.Counter {
	c, ok := e.emitted[streamID]
	if !ok {
		c = kmetrics.AdapterEmitted.WithLabelValues(e.operator, streamID)
		e.emitted[streamID] = c
	}
	return c
}

// drain returns and resets the errors of the current call.
func (e *emitter) drain() error {
	err := e.err
	e.err = nil
	return err
}
