package kwindow

import (
	"fmt"
	"time"
)

// TriggerResult tells the window operator what to do with a window.
type TriggerResult int

const (
	Continue TriggerResult = iota
	Fire
	Purge
	FireAndPurge
)

func (r TriggerResult) IsFire() bool {
	return r == Fire || r == FireAndPurge
}

func (r TriggerResult) IsPurge() bool {
	return r == Purge || r == FireAndPurge
}

func (r TriggerResult) String() string {
	switch r {
	case Continue:
		return "CONTINUE"
	case Fire:
		return "FIRE"
	case Purge:
		return "PURGE"
	case FireAndPurge:
		return "FIRE_AND_PURGE"
	default:
		return fmt.Sprintf("TriggerResult(%d)", int(r))
	}
}

// Counter is numeric trigger state scoped to one (key, window).
type Counter interface {
	Get() int64
	Add(delta int64) int64
	Clear()
}

// TriggerContext is scoped to the (key, window) a trigger call is about.
// Timers registered here call back into the trigger for the same window.
type TriggerContext interface {
	CurrentWatermark() time.Time
	CurrentProcessingTime() time.Time
	RegisterEventTimeTimer(t time.Time)
	DeleteEventTimeTimer(t time.Time)
	RegisterProcessingTimeTimer(t time.Time)
	DeleteProcessingTimeTimer(t time.Time)
	Counter(name string) Counter
}

// Trigger decides when a window's contents are handed to the window
// function.
type Trigger interface {
	OnElement(ts time.Time, w Window, ctx TriggerContext) TriggerResult
	OnEventTime(t time.Time, w Window, ctx TriggerContext) TriggerResult
	OnProcessingTime(t time.Time, w Window, ctx TriggerContext) TriggerResult
	// Clear removes timers and state the trigger holds for w.
	Clear(w Window, ctx TriggerContext)
	String() string
}

type eventTimeTrigger struct{}

// EventTimeTrigger fires once the watermark passes the window's max
// timestamp.
func EventTimeTrigger() Trigger {
	return eventTimeTrigger{}
}

func (eventTimeTrigger) OnElement(_ time.Time, w Window, ctx TriggerContext) TriggerResult {
	if !w.MaxTimestamp().After(ctx.CurrentWatermark()) {
		// late but within allowed lateness
		return Fire
	}
	ctx.RegisterEventTimeTimer(w.MaxTimestamp())
	return Continue
}

func (eventTimeTrigger) OnEventTime(t time.Time, w Window, _ TriggerContext) TriggerResult {
	if t.Equal(w.MaxTimestamp()) {
		return Fire
	}
	return Continue
}

func (eventTimeTrigger) OnProcessingTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (eventTimeTrigger) Clear(w Window, ctx TriggerContext) {
	ctx.DeleteEventTimeTimer(w.MaxTimestamp())
}

func (eventTimeTrigger) String() string {
	return "EventTimeTrigger"
}

type processingTimeTrigger struct{}

// ProcessingTimeTrigger fires once the processing-time clock passes the
// window's max timestamp.
func ProcessingTimeTrigger() Trigger {
	return processingTimeTrigger{}
}

func (processingTimeTrigger) OnElement(_ time.Time, w Window, ctx TriggerContext) TriggerResult {
	ctx.RegisterProcessingTimeTimer(w.MaxTimestamp())
	return Continue
}

func (processingTimeTrigger) OnEventTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (processingTimeTrigger) OnProcessingTime(time.Time, Window, TriggerContext) TriggerResult {
	return Fire
}

func (processingTimeTrigger) Clear(w Window, ctx TriggerContext) {
	ctx.DeleteProcessingTimeTimer(w.MaxTimestamp())
}

func (processingTimeTrigger) String() string {
	return "ProcessingTimeTrigger"
}

type countTrigger struct {
	max int64
}

const countState = "count"

// CountTrigger fires every time a window has received max elements since
// the last firing.
func CountTrigger(max int64) Trigger {
	return countTrigger{max: max}
}

func (t countTrigger) OnElement(_ time.Time, _ Window, ctx TriggerContext) TriggerResult {
	c := ctx.Counter(countState)
	if c.Add(1) >= t.max {
		c.Clear()
		return Fire
	}
	return Continue
}

func (countTrigger) OnEventTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (countTrigger) OnProcessingTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (countTrigger) Clear(_ Window, ctx TriggerContext) {
	ctx.Counter(countState).Clear()
}

func (t countTrigger) String() string {
	return fmt.Sprintf("CountTrigger(%d)", t.max)
}

type purgingTrigger struct {
	inner Trigger
}

// PurgingTrigger turns every FIRE of inner into FIRE_AND_PURGE.
func PurgingTrigger(inner Trigger) Trigger {
	return purgingTrigger{inner: inner}
}

func purge(r TriggerResult) TriggerResult {
	if r == Fire {
		return FireAndPurge
	}
	return r
}

func (t purgingTrigger) OnElement(ts time.Time, w Window, ctx TriggerContext) TriggerResult {
	return purge(t.inner.OnElement(ts, w, ctx))
}

func (t purgingTrigger) OnEventTime(ts time.Time, w Window, ctx TriggerContext) TriggerResult {
	return purge(t.inner.OnEventTime(ts, w, ctx))
}

func (t purgingTrigger) OnProcessingTime(ts time.Time, w Window, ctx TriggerContext) TriggerResult {
	return purge(t.inner.OnProcessingTime(ts, w, ctx))
}

func (t purgingTrigger) Clear(w Window, ctx TriggerContext) {
	t.inner.Clear(w, ctx)
}

func (t purgingTrigger) String() string {
	return "PurgingTrigger(" + t.inner.String() + ")"
}

type neverTrigger struct{}

// NeverTrigger never fires. It is the default of GlobalWindows.
func NeverTrigger() Trigger {
	return neverTrigger{}
}

func (neverTrigger) OnElement(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (neverTrigger) OnEventTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (neverTrigger) OnProcessingTime(time.Time, Window, TriggerContext) TriggerResult {
	return Continue
}

func (neverTrigger) Clear(Window, TriggerContext) {}

func (neverTrigger) String() string {
	return "NeverTrigger"
}
