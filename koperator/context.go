package koperator

import (
	"time"

	"github.com/birdayz/kcogroup/kwindow"
)

// windowContext scopes timers and trigger state to one (key, window).
type windowContext[K comparable, T, OUT any] struct {
	op     *WindowOperator[K, T, OUT]
	key    K
	window kwindow.Window
}

func (c *windowContext[K, T, OUT]) CurrentWatermark() time.Time {
	return c.op.watermark
}

func (c *windowContext[K, T, OUT]) CurrentProcessingTime() time.Time {
	return c.op.octx.ProcessingTime()
}

func (c *windowContext[K, T, OUT]) RegisterEventTimeTimer(t time.Time) {
	c.op.eventTimers.register(timer[K]{at: t.UnixNano(), key: c.key, window: c.window})
}

func (c *windowContext[K, T, OUT]) DeleteEventTimeTimer(t time.Time) {
	c.op.eventTimers.delete(timer[K]{at: t.UnixNano(), key: c.key, window: c.window})
}

func (c *windowContext[K, T, OUT]) RegisterProcessingTimeTimer(t time.Time) {
	c.op.procTimers.register(timer[K]{at: t.UnixNano(), key: c.key, window: c.window})
}

func (c *windowContext[K, T, OUT]) DeleteProcessingTimeTimer(t time.Time) {
	c.op.procTimers.delete(timer[K]{at: t.UnixNano(), key: c.key, window: c.window})
}

func (c *windowContext[K, T, OUT]) Counter(name string) kwindow.Counter {
	return &counter[K]{
		counters: c.op.counters,
		scope:    windowKey[K]{key: c.key, window: c.window},
		name:     name,
	}
}

type counter[K comparable] struct {
	counters map[windowKey[K]]map[string]int64
	scope    windowKey[K]
	name     string
}

func (c *counter[K]) Get() int64 {
	return c.counters[c.scope][c.name]
}

func (c *counter[K]) Add(delta int64) int64 {
	m, ok := c.counters[c.scope]
	if !ok {
		m = make(map[string]int64)
		c.counters[c.scope] = m
	}
	m[c.name] += delta
	return m[c.name]
}

func (c *counter[K]) Clear() {
	m, ok := c.counters[c.scope]
	if !ok {
		return
	}
	delete(m, c.name)
	if len(m) == 0 {
		delete(c.counters, c.scope)
	}
}

var (
	_ kwindow.TriggerContext = (*windowContext[string, string, string])(nil)
	_ kwindow.EvictorContext = (*windowContext[string, string, string])(nil)
)
