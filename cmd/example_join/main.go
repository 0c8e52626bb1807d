// Command example_join matches orders with payments per order id in
// tumbling event-time windows.
//
// Without --brokers it runs on a small built-in data set and logs the
// matches. With --brokers it reads JSON orders and payments from Kafka and
// writes matches to --output-topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/kcogroup/kjoin"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
	"github.com/birdayz/kcogroup/kstate/pebble"
	"github.com/birdayz/kcogroup/kstream"
	"github.com/birdayz/kcogroup/kwindow"
	"github.com/birdayz/kcogroup/pkg/log"
)

type Order struct {
	ID       string  `json:"id"`
	Customer string  `json:"customer"`
	Amount   float64 `json:"amount"`
}

type Payment struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type Match struct {
	OrderID  string  `json:"order_id"`
	Customer string  `json:"customer"`
	Ordered  float64 `json:"ordered"`
	Paid     float64 `json:"paid"`
}

func main() {
	if err := newCommand(newViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

// newViper reads settings from KCOGROUP_* environment variables, e.g.
// KCOGROUP_STATE_DIR for --state-dir.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("kcogroup")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// newCommand binds its flags to v; flags override the environment.
func newCommand(v *viper.Viper) *cobra.Command {
	command := &cobra.Command{
		Use:           "example_join",
		Short:         "Join orders and payments in event-time windows",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			zl := log.New()
			logger := log.Logr(zl).WithName("example-join")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, v, logger); err != nil {
				logger.Error(err, "Job failed")
				return err
			}
			logger.Info("Job finished")
			return nil
		},
	}

	flags := command.Flags()
	flags.StringSlice("brokers", nil, "Kafka seed brokers; runs on built-in data if empty")
	flags.String("orders-topic", "orders", "Topic with JSON orders")
	flags.String("payments-topic", "payments", "Topic with JSON payments")
	flags.String("output-topic", "order-payments", "Topic matches are written to")
	flags.Duration("window", time.Minute, "Tumbling window size")
	flags.Duration("out-of-orderness", 5*time.Second, "Maximum event time disorder of the inputs")
	flags.Int("parallelism", 4, "Instances of the join operator")
	flags.String("state-dir", "", "Keep window buffers in Pebble below this directory instead of memory")
	flags.Int32("create-topics", 0, "Create missing topics with this many partitions before starting")
	cobra.CheckErr(v.BindPFlags(flags))

	return command
}

func run(ctx context.Context, v *viper.Viper, logger logr.Logger) error {
	env := kstream.NewEnv(
		kstream.WithParallelism(v.GetInt("parallelism")),
		kstream.WithLogr(logger),
	)

	orders, payments, closeInputs, err := inputs(env, v)
	if err != nil {
		return err
	}
	defer closeInputs()

	keyed, err := kjoin.CoGroup[Order, Payment, string](orders, payments).
		Where(kjoin.KeyBy(kserde.StringType, func(o Order) string { return o.ID })).
		EqualTo(kjoin.KeyBy(kserde.StringType, func(p Payment) string { return p.OrderID }))
	if err != nil {
		return err
	}
	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(v.GetDuration("window")))
	if err != nil {
		return err
	}
	if dir := v.GetString("state-dir"); dir != "" {
		windowed = windowed.Store(pebble.NewStoreBuilder(
			dir,
			kserde.String,
			kjoin.EnvelopeSerde(kserde.String, kserde.JSON[Order](), kserde.JSON[Payment]()),
		))
	}

	matches, err := kjoin.Apply(windowed.Named("order-payments"), func(o Order, p Payment) (Match, error) {
		return Match{OrderID: o.ID, Customer: o.Customer, Ordered: o.Amount, Paid: p.Amount}, nil
	}, kserde.JSONType[Match]("json:match"))
	if err != nil {
		return err
	}

	if brokers := v.GetStringSlice("brokers"); len(brokers) > 0 {
		producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
		if err != nil {
			return fmt.Errorf("create producer: %w", err)
		}
		defer producer.Close()

		if partitions := v.GetInt32("create-topics"); partitions > 0 {
			topics := []string{v.GetString("orders-topic"), v.GetString("payments-topic"), v.GetString("output-topic")}
			if err := createTopics(ctx, kadm.NewClient(producer), partitions, topics, logger); err != nil {
				return err
			}
		}

		err = kstream.KafkaSink(matches, "matches", producer, v.GetString("output-topic"), func(m Match) ([]byte, error) {
			return []byte(m.OrderID), nil
		})
		if err != nil {
			return err
		}
	} else {
		err = kstream.ForEach(matches, "log-matches", func(_ context.Context, r kprocessor.Record[Match]) error {
			logger.Info("Matched", "order", r.Value.OrderID, "customer", r.Value.Customer,
				"open", r.Value.Ordered-r.Value.Paid, "window_end", r.Metadata.Timestamp)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return env.Execute(ctx)
}

func createTopics(ctx context.Context, adm *kadm.Client, partitions int32, topics []string, logger logr.Logger) error {
	resp, err := adm.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp {
		switch {
		case r.Err == nil:
			logger.Info("Created topic", "topic", r.Topic, "partitions", partitions)
		case errors.Is(r.Err, kerr.TopicAlreadyExists):
		default:
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// inputs creates the order and payment sources. The returned func closes
// Kafka clients.
func inputs(env *kstream.Env, v *viper.Viper) (kstream.Stream[Order], kstream.Stream[Payment], func(), error) {
	bound := kstream.WithOutOfOrderness(v.GetDuration("out-of-orderness"))

	brokers := v.GetStringSlice("brokers")
	if len(brokers) == 0 {
		orders, err := kstream.FromRecords(env, "orders", sampleOrders(), bound)
		if err != nil {
			return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, err
		}
		payments, err := kstream.FromRecords(env, "payments", samplePayments(), bound)
		if err != nil {
			return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, err
		}
		return orders, payments, func() {}, nil
	}

	orderClient, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(v.GetString("orders-topic")),
		kgo.ConsumerGroup("example-join-orders"),
	)
	if err != nil {
		return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, fmt.Errorf("create orders consumer: %w", err)
	}
	paymentClient, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(v.GetString("payments-topic")),
		kgo.ConsumerGroup("example-join-payments"),
	)
	if err != nil {
		orderClient.Close()
		return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, fmt.Errorf("create payments consumer: %w", err)
	}
	closeAll := func() {
		orderClient.Close()
		paymentClient.Close()
	}

	orders, err := kstream.KafkaSource(env, "orders", orderClient, kserde.JSONDeserializer[Order](), bound)
	if err != nil {
		closeAll()
		return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, err
	}
	payments, err := kstream.KafkaSource(env, "payments", paymentClient, kserde.JSONDeserializer[Payment](), bound)
	if err != nil {
		closeAll()
		return kstream.Stream[Order]{}, kstream.Stream[Payment]{}, nil, err
	}
	return orders, payments, closeAll, nil
}

func sampleOrders() []kprocessor.Record[Order] {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []kprocessor.Record[Order]{
		kprocessor.NewRecord(Order{ID: "o-1", Customer: "ada", Amount: 30}, base),
		kprocessor.NewRecord(Order{ID: "o-2", Customer: "bob", Amount: 12.5}, base.Add(10*time.Second)),
		kprocessor.NewRecord(Order{ID: "o-3", Customer: "cy", Amount: 99}, base.Add(70*time.Second)),
	}
}

func samplePayments() []kprocessor.Record[Payment] {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []kprocessor.Record[Payment]{
		kprocessor.NewRecord(Payment{OrderID: "o-1", Amount: 20}, base.Add(5*time.Second)),
		kprocessor.NewRecord(Payment{OrderID: "o-1", Amount: 10}, base.Add(20*time.Second)),
		kprocessor.NewRecord(Payment{OrderID: "o-3", Amount: 99}, base.Add(75*time.Second)),
	}
}
