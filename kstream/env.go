// Package kstream is the typed API for building and running jobs: sources,
// transformations, unions and sinks over Stream values, executed in-process
// by Env.Execute.
package kstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/zoobzio/clockz"

	"github.com/birdayz/kcogroup/internal/execution"
	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
)

var (
	ErrAlreadyExecuted = errors.New("environment already executed")
	ErrForeignStream   = errors.New("stream belongs to a different environment")
)

// Option configures an Env.
type Option func(*Env)

// WithParallelism sets the number of instances of keyed operators.
var WithParallelism = func(n int) Option {
	return func(e *Env) {
		e.cfg.Parallelism = n
	}
}

var WithLogr = func(log logr.Logger) Option {
	return func(e *Env) {
		e.cfg.Logger = log
	}
}

// WithClock sets the processing-time source.
var WithClock = func(clock clockz.Clock) Option {
	return func(e *Env) {
		e.cfg.Clock = clock
	}
}

// WithBufferSize sets the capacity of the channel in front of every
// operator instance.
var WithBufferSize = func(n int) Option {
	return func(e *Env) {
		e.cfg.BufferSize = n
	}
}

// WithProcessingTimeInterval sets how often processing-time timers are
// checked.
var WithProcessingTimeInterval = func(d time.Duration) Option {
	return func(e *Env) {
		e.cfg.TickInterval = d
	}
}

// WithJobParameters makes params available to every operator through
// kprocessor.TaskInfo.
var WithJobParameters = func(params map[string]string) Option {
	return func(e *Env) {
		e.cfg.JobParameters = params
	}
}

// WithInterceptors wraps every element handed to an operator. The first
// interceptor is the outermost.
var WithInterceptors = func(interceptors ...kprocessor.Interceptor) Option {
	return func(e *Env) {
		e.interceptors = append(e.interceptors, interceptors...)
	}
}

// Env collects the graph of a job and executes it.
//
// Env is not safe for concurrent use while the graph is being built.
type Env struct {
	builder      *kdag.Builder
	cfg          execution.Config
	interceptors []kprocessor.Interceptor
	executed     bool
}

func NewEnv(opts ...Option) *Env {
	e := &Env{
		builder: kdag.NewBuilder(),
		cfg: execution.Config{
			Parallelism:  1,
			BufferSize:   execution.DefaultBufferSize,
			TickInterval: execution.DefaultTickInterval,
			Clock:        clockz.RealClock,
			Logger:       logr.Discard(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Env) Parallelism() int {
	return e.cfg.Parallelism
}

func (e *Env) Logger() logr.Logger {
	return e.cfg.Logger
}

// Execute validates the graph and runs it until all sources are exhausted,
// an operator fails or ctx is cancelled. An Env can be executed once.
func (e *Env) Execute(ctx context.Context) error {
	if e.executed {
		return ErrAlreadyExecuted
	}
	e.executed = true

	dag, err := e.builder.Build()
	if err != nil {
		return fmt.Errorf("build job graph: %w", err)
	}

	cfg := e.cfg
	if len(e.interceptors) > 0 {
		cfg.Interceptor = kprocessor.Chain(e.interceptors...)
	}
	return execution.NewRunner(dag, cfg).Run(ctx)
}

// HasNode reports whether a node called name was already added.
func (e *Env) HasNode(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.builder.GetNode(kdag.NodeID(name))
	return ok
}

func (e *Env) checkOpen() error {
	if e.executed {
		return ErrAlreadyExecuted
	}
	return nil
}
