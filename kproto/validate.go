package kproto

import (
	"context"
	"fmt"

	"github.com/bufbuild/protovalidate-go"
	"google.golang.org/protobuf/proto"

	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kstream"
)

// ValidationError wraps a protovalidate error with record context.
type ValidationError struct {
	Source    string
	Partition int32
	Offset    int64
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for record [source=%s, partition=%d, offset=%d]: %v",
		e.Source, e.Partition, e.Offset, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type validateConfig struct {
	validator   *protovalidate.Validator
	dropInvalid bool
}

type ValidateOption func(*validateConfig)

// WithValidator uses a pre-configured validator, e.g. with fail-fast.
var WithValidator = func(v *protovalidate.Validator) ValidateOption {
	return func(c *validateConfig) {
		c.validator = v
	}
}

// WithDropInvalid logs and drops invalid messages instead of failing the
// job.
var WithDropInvalid = func() ValidateOption {
	return func(c *validateConfig) {
		c.dropInvalid = true
	}
}

// Validate appends a stage checking every message against its protovalidate
// constraints. Invalid messages fail the job with a *ValidationError.
func Validate[T proto.Message](s kstream.Stream[T], name string, opts ...ValidateOption) (kstream.Stream[T], error) {
	var cfg validateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.validator == nil {
		v, err := protovalidate.New()
		if err != nil {
			return kstream.Stream[T]{}, fmt.Errorf("create validator: %w", err)
		}
		cfg.validator = v
	}

	out, err := kstream.Transform(s, name, kprocessor.NewFunc(
		func(octx kprocessor.OperatorContext[T], ctx context.Context, r kprocessor.Record[T]) error {
			err := cfg.validator.Validate(r.Value)
			if err == nil {
				octx.Emit(ctx, r)
				return nil
			}

			verr := &ValidationError{
				Source:    r.Metadata.Source,
				Partition: r.Metadata.Partition,
				Offset:    r.Metadata.Offset,
				Err:       err,
			}
			if cfg.dropInvalid {
				octx.Logger().Info("Dropping invalid message", "error", verr.Error())
				return nil
			}
			return verr
		},
	))
	if err != nil {
		return kstream.Stream[T]{}, err
	}
	if ti := s.TypeInfo(); !ti.IsZero() {
		out = out.Returns(ti)
	}
	return out, nil
}
