package kstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/kcogroup/internal/execution"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
)

// Fetcher is the consuming side of a *kgo.Client.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Producer is the producing side of a *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSource consumes records through fetcher until the client is closed
// or ctx is cancelled. Record values are decoded with deserializer; Kafka
// timestamps become event time.
func KafkaSource[T any](env *Env, name string, fetcher Fetcher, deserializer kserde.Deserializer[T], opts ...SourceOption) (Stream[T], error) {
	if fetcher == nil || deserializer == nil {
		return Stream[T]{}, fmt.Errorf("kafka source %s: fetcher and deserializer are required", name)
	}

	return FromSource(env, name, func(ctx context.Context, out execution.SourceOutput[T]) error {
		log := out.Logger()
		wm := newWatermarker(opts)
		for {
			fetches := fetcher.PollFetches(ctx)
			if fetches.IsClientClosed() {
				log.Info("Kafka client closed, ending source")
				return nil
			}
			if errors.Is(fetches.Err(), context.Canceled) {
				return ctx.Err()
			}
			for _, fetchErr := range fetches.Errors() {
				if errors.Is(fetchErr.Err, context.DeadlineExceeded) {
					continue
				}
				return fmt.Errorf("fetch error on topic %s, partition %d: %w", fetchErr.Topic, fetchErr.Partition, fetchErr.Err)
			}

			for _, kr := range fetches.Records() {
				r, err := fromKafka(kr, deserializer)
				if err != nil {
					return err
				}
				if err := emitWithWatermark(ctx, out, wm, r); err != nil {
					return err
				}
			}
		}
	})
}

func fromKafka[T any](kr *kgo.Record, deserializer kserde.Deserializer[T]) (kprocessor.Record[T], error) {
	v, err := deserializer(kr.Value)
	if err != nil {
		return kprocessor.Record[T]{}, fmt.Errorf("deserialize record %s/%d@%d: %w", kr.Topic, kr.Partition, kr.Offset, err)
	}

	var headers *kprocessor.Headers
	if len(kr.Headers) > 0 {
		headers = kprocessor.NewHeaders()
		for _, h := range kr.Headers {
			headers.Add(h.Key, h.Value)
		}
	}

	return kprocessor.Record[T]{
		Value: v,
		Metadata: kprocessor.RecordMetadata{
			Timestamp: kr.Timestamp,
			Source:    kr.Topic,
			Partition: kr.Partition,
			Offset:    kr.Offset,
			Headers:   headers,
		},
	}, nil
}

const kafkaSinkBatchSize = 500

// KafkaSink produces every record of s to topic. Values are encoded with
// the serializer of s.TypeInfo(); key may be nil. The record channel is
// sent as the "channel" header when set.
//
// Records are produced in batches; a batch is flushed when it is full and
// on every watermark, so a failed produce fails the job before the sink is
// closed.
func KafkaSink[T any](s Stream[T], name string, producer Producer, topic string, key func(T) ([]byte, error)) error {
	serializer := s.TypeInfo().Serde().Serializer
	if serializer == nil {
		return fmt.Errorf("kafka sink %s: %w", name, kserde.ErrNoSerde)
	}
	if producer == nil || topic == "" {
		return fmt.Errorf("kafka sink %s: producer and topic are required", name)
	}

	return Sink(s, name, func() kprocessor.OneInputOperator[T, struct{}] {
		return &kafkaSink[T]{
			producer:   producer,
			topic:      topic,
			serializer: serializer,
			key:        key,
		}
	})
}

type kafkaSink[T any] struct {
	producer   Producer
	topic      string
	serializer kserde.Serializer[T]
	key        func(T) ([]byte, error)
	batch      []*kgo.Record
	octx       kprocessor.OperatorContext[struct{}]
}

func (k *kafkaSink[T]) Open(octx kprocessor.OperatorContext[struct{}]) error {
	k.octx = octx
	return nil
}

func (k *kafkaSink[T]) ProcessElement(ctx context.Context, r kprocessor.Record[T]) error {
	value, err := k.serializer(r.Value)
	if err != nil {
		return fmt.Errorf("serialize value: %w", err)
	}

	kr := &kgo.Record{
		Topic:     k.topic,
		Value:     value,
		Timestamp: r.Metadata.Timestamp,
	}
	if k.key != nil {
		if kr.Key, err = k.key(r.Value); err != nil {
			return fmt.Errorf("serialize key: %w", err)
		}
	}
	for _, h := range r.Metadata.Headers.All() {
		kr.Headers = append(kr.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}
	if r.Metadata.Channel != "" {
		kr.Headers = append(kr.Headers, kgo.RecordHeader{Key: "channel", Value: []byte(r.Metadata.Channel)})
	}

	k.batch = append(k.batch, kr)
	if len(k.batch) >= kafkaSinkBatchSize {
		return k.flush(ctx)
	}
	return nil
}

func (k *kafkaSink[T]) ProcessWatermark(ctx context.Context, _ kprocessor.Watermark) error {
	return k.flush(ctx)
}

func (k *kafkaSink[T]) flush(ctx context.Context) error {
	if len(k.batch) == 0 {
		return nil
	}
	batch := k.batch
	k.batch = nil
	if err := k.producer.ProduceSync(ctx, batch...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records to %s: %w", len(batch), k.topic, err)
	}
	return nil
}

func (k *kafkaSink[T]) Close() error {
	if len(k.batch) > 0 {
		k.octx.Logger().Info("Dropping unflushed records", "count", len(k.batch))
		k.batch = nil
	}
	return nil
}
