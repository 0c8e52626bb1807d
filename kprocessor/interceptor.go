package kprocessor

import (
	"context"

	"github.com/go-logr/logr"
)

// ElementInfo identifies the element an interceptor runs around.
type ElementInfo struct {
	Operator string
	Slot     int
	Metadata RecordMetadata
}

// ElementHandler continues processing of the current element.
type ElementHandler func(ctx context.Context) error

// Interceptor wraps per-element processing. Signature follows gRPC's
// interceptor pattern: (ctx, info, next) -> error.
type Interceptor func(ctx context.Context, info ElementInfo, next ElementHandler) error

// Chain combines interceptors. The first interceptor is the outermost.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, info ElementInfo, final ElementHandler) error {
		handler := final
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := handler
			handler = func(ctx context.Context) error {
				return interceptor(ctx, info, next)
			}
		}
		return handler(ctx)
	}
}

// LoggingInterceptor logs each element at V(1) and every failure.
func LoggingInterceptor(log logr.Logger) Interceptor {
	return func(ctx context.Context, info ElementInfo, next ElementHandler) error {
		log := log.WithValues("operator", info.Operator, "slot", info.Slot)
		log.V(1).Info("Processing element",
			"timestamp", info.Metadata.Timestamp,
			"channel", info.Metadata.Channel,
			"source", info.Metadata.Source,
		)

		err := next(ctx)
		if err != nil {
			log.Error(err, "Processing failed")
		}
		return err
	}
}
