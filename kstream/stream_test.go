package kstream

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
)

func records[T any](values ...T) []kprocessor.Record[T] {
	out := make([]kprocessor.Record[T], 0, len(values))
	for i, v := range values {
		out = append(out, kprocessor.NewRecord(v, time.UnixMilli(int64(i))))
	}
	return out
}

func TestMapAndCollect(t *testing.T) {
	env := NewEnv()
	src, err := FromRecords(env, "numbers", records(1, 2, 3))
	assert.NoError(t, err)

	doubled, err := Map(src, "double", func(v int) (string, error) {
		return strconv.Itoa(v * 2), nil
	})
	assert.NoError(t, err)

	out, err := Collect(doubled, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []string{"2", "4", "6"}, out.Values())

	recs := out.Records()
	assert.Equal(t, "numbers", recs[0].Metadata.Source)
	assert.Equal(t, time.UnixMilli(2).UnixNano(), recs[2].Metadata.Timestamp.UnixNano())
}

func TestUnionPreservesPerInputOrder(t *testing.T) {
	env := NewEnv()
	left, err := FromRecords(env, "left", records(1, 2, 3))
	assert.NoError(t, err)
	right, err := FromRecords(env, "right", records(10, 20))
	assert.NoError(t, err)

	merged, err := Union("merged", left, right)
	assert.NoError(t, err)
	out, err := Collect(merged, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))

	var small, large []int
	for _, v := range out.Values() {
		if v < 10 {
			small = append(small, v)
		} else {
			large = append(large, v)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, small)
	assert.Equal(t, []int{10, 20}, large)
}

func TestSelectChannel(t *testing.T) {
	env := NewEnv()
	in := []kprocessor.Record[string]{
		{Value: "a", Metadata: kprocessor.RecordMetadata{Channel: "words"}},
		{Value: "1", Metadata: kprocessor.RecordMetadata{Channel: "numbers"}},
		{Value: "b", Metadata: kprocessor.RecordMetadata{Channel: "words"}},
	}
	src, err := FromRecords(env, "mixed", in)
	assert.NoError(t, err)

	words, err := SelectChannel(src, "words-only", "words")
	assert.NoError(t, err)
	out, err := Collect(words, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []string{"a", "b"}, out.Values())
}

func TestKeyedTransform(t *testing.T) {
	t.Run("requires a key serde", func(t *testing.T) {
		env := NewEnv()
		src, err := FromRecords(env, "numbers", records(1))
		assert.NoError(t, err)

		_, err = KeyedTransform(src, "keyed",
			func(v int) (string, error) { return strconv.Itoa(v), nil },
			kserde.TypeInfo[string]{},
			kprocessor.Passthrough[int](),
		)
		assert.IsError(t, err, kserde.ErrNoSerde)
	})

	t.Run("equal keys share a slot", func(t *testing.T) {
		env := NewEnv(WithParallelism(3))
		values := make([]int, 0, 30)
		for i := range 30 {
			values = append(values, i)
		}
		src, err := FromRecords(env, "numbers", records(values...))
		assert.NoError(t, err)

		type placed struct {
			key  string
			slot int
		}
		keyed, err := KeyedTransform(src, "keyed",
			func(v int) (string, error) { return strconv.Itoa(v % 5), nil },
			kserde.StringType,
			kprocessor.NewFunc(func(octx kprocessor.OperatorContext[placed], ctx context.Context, r kprocessor.Record[int]) error {
				octx.Emit(ctx, kprocessor.WithValue(r, placed{key: strconv.Itoa(r.Value % 5), slot: octx.Info().Slot}))
				return nil
			}),
		)
		assert.NoError(t, err)
		out, err := Collect(keyed, "out")
		assert.NoError(t, err)

		assert.NoError(t, env.Execute(context.Background()))

		slots := map[string]int{}
		for _, p := range out.Values() {
			if prev, ok := slots[p.key]; ok {
				assert.Equal(t, prev, p.slot)
			}
			slots[p.key] = p.slot

			h, err := kserde.StringType.Hash(p.key)
			assert.NoError(t, err)
			assert.Equal(t, int(h%3), p.slot)
		}
		assert.Equal(t, 30, len(out.Values()))
	})
}

func TestEnvErrors(t *testing.T) {
	t.Run("execute twice", func(t *testing.T) {
		env := NewEnv()
		src, err := FromRecords(env, "numbers", records(1))
		assert.NoError(t, err)
		_, err = Collect(src, "out")
		assert.NoError(t, err)

		assert.NoError(t, env.Execute(context.Background()))
		assert.IsError(t, env.Execute(context.Background()), ErrAlreadyExecuted)

		_, err = Map(src, "late", func(v int) (int, error) { return v, nil })
		assert.IsError(t, err, ErrAlreadyExecuted)
	})

	t.Run("foreign stream", func(t *testing.T) {
		a, b := NewEnv(), NewEnv()
		left, err := FromRecords(a, "left", records(1))
		assert.NoError(t, err)
		right, err := FromRecords(b, "right", records(2))
		assert.NoError(t, err)

		_, err = Union("merged", left, right)
		assert.IsError(t, err, ErrForeignStream)
	})

	t.Run("duplicate names", func(t *testing.T) {
		env := NewEnv()
		_, err := FromRecords(env, "numbers", records(1))
		assert.NoError(t, err)
		_, err = FromRecords(env, "numbers", records(2))
		assert.IsError(t, err, kdag.ErrNodeAlreadyExists)
	})

	t.Run("operator failure fails the job", func(t *testing.T) {
		boom := errors.New("boom")
		env := NewEnv()
		src, err := FromRecords(env, "numbers", records(1))
		assert.NoError(t, err)
		failed, err := Map(src, "fail", func(int) (int, error) { return 0, boom })
		assert.NoError(t, err)
		assert.NoError(t, ForEach(failed, "out", func(context.Context, kprocessor.Record[int]) error { return nil }))

		assert.IsError(t, env.Execute(context.Background()), boom)
	})
}

func TestJobParametersAndInterceptors(t *testing.T) {
	var seen []string
	env := NewEnv(
		WithJobParameters(map[string]string{"region": "eu"}),
		WithInterceptors(func(ctx context.Context, info kprocessor.ElementInfo, next kprocessor.ElementHandler) error {
			seen = append(seen, info.Operator)
			return next(ctx)
		}),
	)
	src, err := FromRecords(env, "numbers", records(1))
	assert.NoError(t, err)

	tagged, err := Transform(src, "tag", kprocessor.NewFunc(func(octx kprocessor.OperatorContext[string], ctx context.Context, r kprocessor.Record[int]) error {
		octx.Emit(ctx, kprocessor.WithValue(r, octx.Info().JobParameters["region"]))
		return nil
	}))
	assert.NoError(t, err)
	out, err := Collect(tagged, "out")
	assert.NoError(t, err)

	assert.NoError(t, env.Execute(context.Background()))
	assert.Equal(t, []string{"eu"}, out.Values())
	assert.Equal(t, []string{"tag", "out"}, seen)
}

func TestWatermarker(t *testing.T) {
	t.Run("bounded out of orderness", func(t *testing.T) {
		w := newWatermarker([]SourceOption{WithOutOfOrderness(5 * time.Millisecond)})

		wm, ok := w.observe(time.UnixMilli(10))
		assert.True(t, ok)
		assert.Equal(t, time.UnixMilli(5).UnixNano()-1, wm.Time.UnixNano())

		_, ok = w.observe(time.UnixMilli(8))
		assert.False(t, ok)

		wm, ok = w.observe(time.UnixMilli(12))
		assert.True(t, ok)
		assert.Equal(t, time.UnixMilli(7).UnixNano()-1, wm.Time.UnixNano())
	})

	t.Run("disabled", func(t *testing.T) {
		w := newWatermarker([]SourceOption{WithoutWatermarks()})
		_, ok := w.observe(time.UnixMilli(10))
		assert.False(t, ok)
	})
}
