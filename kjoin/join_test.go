package kjoin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/birdayz/kcogroup/internal/execution"
	"github.com/birdayz/kcogroup/kmetrics"
	"github.com/birdayz/kcogroup/koperator"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
	kpebble "github.com/birdayz/kcogroup/kstate/pebble"
	"github.com/birdayz/kcogroup/kstream"
	"github.com/birdayz/kcogroup/kwindow"
)

func joinInputs(t *testing.T, env *kstream.Env, orders []kprocessor.Record[order], payments []kprocessor.Record[payment]) WithKey[order, payment, string] {
	t.Helper()
	left, err := kstream.FromRecords(env, "orders", orders)
	assert.NoError(t, err)
	right, err := kstream.FromRecords(env, "payments", payments)
	assert.NoError(t, err)

	keyed, err := CoGroup[order, payment, string](left, right).Where(orderKey).EqualTo(paymentKey)
	assert.NoError(t, err)
	return keyed
}

func TestJoinTumblingEventTime(t *testing.T) {
	env := kstream.NewEnv(kstream.WithParallelism(2))
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 5)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 2)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)
	joined, err := Apply(windowed.Named("tumbling-join"), func(o order, p payment) (int, error) {
		return o.Amount + p.Amount, nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []int{11, 12}, out.Values())
	assert.Equal(t, 2.0, testutil.ToFloat64(kmetrics.JoinPairs.WithLabelValues("tumbling-join")))

	for _, r := range out.Records() {
		assert.Equal(t, time.UnixMilli(10).UnixNano()-1, r.Metadata.Timestamp.UnixNano())
	}
}

func TestJoinRowMajorOrder(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 1)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 0), at(payment{"A", 20}, 1)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(time.Second))
	assert.NoError(t, err)
	joined, err := Apply(windowed, func(o order, p payment) (string, error) {
		return fmt.Sprintf("%d-%d", o.Amount, p.Amount), nil
	}, kserde.StringType)
	assert.NoError(t, err)
	assert.Equal(t, "string", joined.TypeInfo().Name())

	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []string{"1-10", "1-20", "2-10", "2-20"}, out.Values())
}

func TestJoinKeysAndWindowsAreSeparate(t *testing.T) {
	env := kstream.NewEnv(kstream.WithParallelism(3))
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"B", 2}, 1), at(order{"A", 3}, 15)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 3), at(payment{"C", 20}, 4), at(payment{"A", 30}, 12)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)
	joined, err := Apply(windowed, func(o order, p payment) (int, error) {
		return o.Amount + p.Amount, nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	// A@[0,10): 1+10, A@[10,20): 3+30; B and C never meet.
	assert.Equal(t, []int{11, 33}, sorted(out.Values()))
}

func TestJoinFunctionFailure(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 1)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 0), at(payment{"A", 20}, 1)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(time.Second))
	assert.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	joined, err := ApplyFlat(windowed, func(ctx context.Context, o order, p payment, out kprocessor.Collector[int]) error {
		calls++
		if calls == 2 {
			return boom
		}
		out.Collect(ctx, o.Amount+p.Amount)
		return nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	_, err = kstream.Collect(joined, "out")
	assert.NoError(t, err)

	err = env.Execute(context.Background())
	assert.IsError(t, err, boom)
	assert.IsError(t, err, koperator.ErrWindowFunction)
	var perr *execution.ProcessingError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "cogroup-orders-payments", perr.Node)
	assert.Equal(t, 2, calls)
}

func TestJoinOneSidedWindow(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 50)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)

	calls := 0
	joined, err := Apply(windowed, func(o order, p payment) (int, error) {
		calls++
		return 0, nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, len(out.Values()))
}

type evictAll struct{}

func (evictAll) EvictBefore([]kprocessor.Record[Envelope[string, order, payment]], kwindow.Window, kwindow.EvictorContext) []kprocessor.Record[Envelope[string, order, payment]] {
	return nil
}

func (evictAll) EvictAfter(elements []kprocessor.Record[Envelope[string, order, payment]], _ kwindow.Window, _ kwindow.EvictorContext) []kprocessor.Record[Envelope[string, order, payment]] {
	return elements
}

func TestJoinEvictor(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 1)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)

	calls := 0
	joined, err := ApplyCoGroup(windowed.Evictor(evictAll{}), func(context.Context, []order, []payment, kprocessor.Collector[int]) error {
		calls++
		return nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	_, err = kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, 0, calls)
}

func TestCoGroup(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 2), at(order{"B", 5}, 3)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 1)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)

	joined, err := ApplyCoGroup(windowed, func(ctx context.Context, orders []order, payments []payment, out kprocessor.Collector[string]) error {
		out.Collect(ctx, fmt.Sprintf("%s:%d/%d", orders[0].ID, len(orders), len(payments)))
		return nil
	}, kserde.StringType)
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []string{"A:2/1", "B:1/0"}, sorted(out.Values()))
}

func TestCountWindowJoin(t *testing.T) {
	env := kstream.NewEnv()
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 1)},
		[]kprocessor.Record[payment]{},
	)

	windowed, err := keyed.CountWindow(2)
	assert.NoError(t, err)

	joined, err := ApplyCoGroup(windowed, func(ctx context.Context, orders []order, payments []payment, out kprocessor.Collector[int]) error {
		out.Collect(ctx, len(orders)+len(payments))
		return nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []int{2}, out.Values())
}

func TestJoinWithPebbleStore(t *testing.T) {
	env := kstream.NewEnv(kstream.WithParallelism(2))
	keyed := joinInputs(t, env,
		[]kprocessor.Record[order]{at(order{"A", 1}, 0), at(order{"A", 2}, 5)},
		[]kprocessor.Record[payment]{at(payment{"A", 10}, 2)},
	)

	windowed, err := keyed.Window(kwindow.TumblingEventTimeWindows(10 * time.Millisecond))
	assert.NoError(t, err)

	store := kpebble.NewStoreBuilder[string, Envelope[string, order, payment]](
		"/state",
		kserde.String,
		EnvelopeSerde(kserde.String, kserde.JSON[order](), kserde.JSON[payment]()),
		kpebble.WithFS(vfs.NewMem()),
	)
	joined, err := Apply(windowed.Store(store), func(o order, p payment) (int, error) {
		return o.Amount + p.Amount, nil
	}, kserde.TypeInfo[int]{})
	assert.NoError(t, err)
	out, err := kstream.Collect(joined, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []int{11, 12}, out.Values())
}

func TestJoinPebbleStoreDoesNotCarryStateAcrossRuns(t *testing.T) {
	fs := vfs.NewMem()
	run := func(orders []kprocessor.Record[order], payments []kprocessor.Record[payment]) []string {
		env := kstream.NewEnv()
		keyed := joinInputs(t, env, orders, payments)
		windowed, err := keyed.CountWindow(2)
		assert.NoError(t, err)

		store := kpebble.NewStoreBuilder[string, Envelope[string, order, payment]](
			"/state",
			kserde.String,
			EnvelopeSerde(kserde.String, kserde.JSON[order](), kserde.JSON[payment]()),
			kpebble.WithFS(fs),
		)
		joined, err := Apply(windowed.Store(store), func(o order, p payment) (string, error) {
			return fmt.Sprintf("%d-%d", o.Amount, p.Amount), nil
		}, kserde.TypeInfo[string]{})
		assert.NoError(t, err)
		out, err := kstream.Collect(joined, "out")
		assert.NoError(t, err)

		assert.NoError(t, env.Execute(context.Background()))
		return out.Values()
	}

	// one buffered order, never fired
	assert.Equal(t, 0, len(run([]kprocessor.Record[order]{at(order{"A", 1}, 0)}, nil)))
	// two payments fill the count window without any order of this run
	assert.Equal(t, 0, len(run(nil, []kprocessor.Record[payment]{at(payment{"A", 10}, 1), at(payment{"A", 20}, 2)})))
}

func sorted[T int | string](values []T) []T {
	out := append([]T(nil), values...)
	slices.Sort(out)
	return out
}
