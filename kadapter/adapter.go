// Package kadapter runs per-element handlers written against a
// declare/prepare/execute/cleanup contract as operators of the stream
// engine.
//
// A handler declares its output streams up front. Every tuple it emits is
// checked against the declared arity and forwarded downstream tagged with
// the stream id as record channel, carrying the timestamp of the input
// element that caused it.
package kadapter

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/birdayz/kcogroup/kprocessor"
)

var (
	ErrIllegalArgument  = errors.New("illegal argument")
	ErrUndeclaredStream = errors.New("emit to undeclared stream")
	ErrArityMismatch    = errors.New("tuple arity does not match declaration")
	ErrNoSuchField      = errors.New("no such field")
)

// Handler processes one element at a time and emits tuples through the
// Emitter it receives in Prepare.
type Handler[In any] interface {
	DeclareOutputFields(declarer OutputDeclarer)
	Prepare(conf map[string]string, tctx TopologyContext, out Emitter) error
	Execute(in Input[In]) error
	Cleanup()
}

const DefaultName = "Unnamed Handler"

type config struct {
	name             string
	inputStreamID    string
	inputComponentID string
	inputSchema      Fields
	rawOutputs       []string
}

type Option func(*config)

// WithName sets the component id the handler sees in its TopologyContext.
var WithName = func(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

var WithInputStreamID = func(id string) Option {
	return func(c *config) {
		c.inputStreamID = id
	}
}

var WithInputComponentID = func(id string) Option {
	return func(c *config) {
		c.inputComponentID = id
	}
}

// WithInputSchema names the attributes of Tuple inputs for Input.Field.
var WithInputSchema = func(schema Fields) Option {
	return func(c *config) {
		c.inputSchema = schema
	}
}

// WithRawOutputs marks streams whose single attribute is consumed as a
// plain value, see Raw.
var WithRawOutputs = func(streamIDs ...string) Option {
	return func(c *config) {
		c.rawOutputs = append(c.rawOutputs, streamIDs...)
	}
}

// Spec is a validated handler setup.
type Spec[In any] struct {
	handler Handler[In]
	cfg     config
	streams map[string]Fields
	arities map[string]int
}

// New validates the output declaration of handler.
func New[In any](handler Handler[In], opts ...Option) (*Spec[In], error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is nil", ErrIllegalArgument)
	}
	cfg := config{
		name:          DefaultName,
		inputStreamID: DefaultStreamID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := newDeclarer()
	handler.DeclareOutputFields(d)
	arities, err := d.arities(cfg.rawOutputs)
	if err != nil {
		return nil, err
	}

	return &Spec[In]{
		handler: handler,
		cfg:     cfg,
		streams: d.streams,
		arities: arities,
	}, nil
}

// Streams returns the declared output streams.
func (s *Spec[In]) Streams() map[string]Fields {
	return maps.Clone(s.streams)
}

func (s *Spec[In]) isRaw(streamID string) bool {
	for _, id := range s.cfg.rawOutputs {
		if id == streamID {
			return true
		}
	}
	return false
}

// Builder returns the operator builder for the stream graph. The handler is
// not safe for concurrent use, so the operator must run as a single
// instance.
func (s *Spec[In]) Builder() kprocessor.OperatorBuilder[In, Tuple] {
	return func() kprocessor.OneInputOperator[In, Tuple] {
		return &Adapter[In]{spec: s}
	}
}

// Adapter is the operator running one handler instance.
type Adapter[In any] struct {
	spec      *Spec[In]
	handler   Handler[In]
	octx      kprocessor.OperatorContext[Tuple]
	collector *kprocessor.TimestampedCollector[Tuple]
	emitter   *emitter
	tctx      TopologyContext
}

func (a *Adapter[In]) Open(octx kprocessor.OperatorContext[Tuple]) error {
	info := octx.Info()
	cfg := a.spec.cfg

	a.octx = octx
	a.handler = a.spec.handler
	a.collector = kprocessor.NewTimestampedCollector(octx)
	a.emitter = newEmitter(a.collector, a.spec.arities, info.OperatorName)
	a.tctx = TopologyContext{
		TaskID:           info.Slot,
		ComponentID:      cfg.name,
		InstanceID:       uuid.NewString(),
		InputStreamID:    cfg.inputStreamID,
		InputComponentID: cfg.inputComponentID,
		Parallelism:      info.Parallelism,
		OutputFields:     a.spec.Streams(),
		Logger:           octx.Logger().WithName("handler").WithValues("component", cfg.name),
	}

	conf := maps.Clone(info.JobParameters)
	if conf == nil {
		conf = map[string]string{}
	}
	if err := a.handler.Prepare(conf, a.tctx, a.emitter); err != nil {
		return fmt.Errorf("prepare %s: %w", cfg.name, err)
	}
	return a.emitter.drain()
}

func (a *Adapter[In]) ProcessElement(ctx context.Context, rec kprocessor.Record[In]) error {
	a.collector.SetTimestamp(rec.Metadata.Timestamp)
	a.emitter.ctx = ctx

	err := a.handler.Execute(Input[In]{
		Value:       rec.Value,
		Schema:      a.spec.cfg.inputSchema,
		TaskID:      a.tctx.TaskID,
		StreamID:    a.spec.cfg.inputStreamID,
		ComponentID: a.spec.cfg.inputComponentID,
		Timestamp:   rec.Metadata.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("execute %s: %w", a.spec.cfg.name, err)
	}
	return a.emitter.drain()
}

func (a *Adapter[In]) ProcessWatermark(ctx context.Context, wm kprocessor.Watermark) error {
	a.octx.EmitWatermark(ctx, wm)
	return nil
}

// Close calls Cleanup on the handler. A panicking Cleanup is reported as
// an error.
func (a *Adapter[In]) Close() (err error) {
	if a.handler == nil {
		return nil
	}
	handler := a.handler
	a.handler = nil

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup %s panicked: %v", a.spec.cfg.name, r)
		}
	}()
	handler.Cleanup()
	return nil
}
