package kwindow

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindowSize = errors.New("invalid window size")

// AssignerContext exposes the clock to processing-time assigners.
type AssignerContext interface {
	CurrentProcessingTime() time.Time
}

// Assigner maps an element to the windows it belongs to. The same assigner
// instance serves both inputs of a join.
type Assigner interface {
	AssignWindows(ts time.Time, ctx AssignerContext) []Window
	// DefaultTrigger is used when no trigger is configured explicitly.
	DefaultTrigger() Trigger
	IsEventTime() bool
	Validate() error
	String() string
}

// TumblingWindows assigns each element to exactly one fixed-size window.
type TumblingWindows struct {
	size      time.Duration
	offset    time.Duration
	eventTime bool
}

func TumblingEventTimeWindows(size time.Duration) TumblingWindows {
	return TumblingWindows{size: size, eventTime: true}
}

func TumblingProcessingTimeWindows(size time.Duration) TumblingWindows {
	return TumblingWindows{size: size}
}

// WithOffset shifts window boundaries, e.g. to align daily windows with a
// time zone.
func (a TumblingWindows) WithOffset(offset time.Duration) TumblingWindows {
	a.offset = offset
	return a
}

func (a TumblingWindows) Validate() error {
	if a.size <= 0 {
		return fmt.Errorf("%w: tumbling size %s must be positive", ErrInvalidWindowSize, a.size)
	}
	if a.offset <= -a.size || a.offset >= a.size {
		return fmt.Errorf("%w: offset %s must be within (-%s, %s)", ErrInvalidWindowSize, a.offset, a.size, a.size)
	}
	return nil
}

func (a TumblingWindows) AssignWindows(ts time.Time, ctx AssignerContext) []Window {
	if !a.eventTime {
		ts = ctx.CurrentProcessingTime()
	}
	start := windowStart(ts.UnixNano(), int64(a.offset), int64(a.size))
	return []Window{TimeWindow{start: start, end: start + int64(a.size)}}
}

func (a TumblingWindows) DefaultTrigger() Trigger {
	if a.eventTime {
		return EventTimeTrigger()
	}
	return ProcessingTimeTrigger()
}

func (a TumblingWindows) IsEventTime() bool {
	return a.eventTime
}

func (a TumblingWindows) String() string {
	return fmt.Sprintf("TumblingWindows(size=%s, offset=%s, eventTime=%t)", a.size, a.offset, a.eventTime)
}

// SlidingWindows assigns each element to size/slide overlapping windows.
type SlidingWindows struct {
	size      time.Duration
	slide     time.Duration
	offset    time.Duration
	eventTime bool
}

func SlidingEventTimeWindows(size, slide time.Duration) SlidingWindows {
	return SlidingWindows{size: size, slide: slide, eventTime: true}
}

func SlidingProcessingTimeWindows(size, slide time.Duration) SlidingWindows {
	return SlidingWindows{size: size, slide: slide}
}

func (a SlidingWindows) WithOffset(offset time.Duration) SlidingWindows {
	a.offset = offset
	return a
}

func (a SlidingWindows) Validate() error {
	if a.size <= 0 || a.slide <= 0 {
		return fmt.Errorf("%w: sliding size %s and slide %s must be positive", ErrInvalidWindowSize, a.size, a.slide)
	}
	if a.offset <= -a.slide || a.offset >= a.slide {
		return fmt.Errorf("%w: offset %s must be within (-%s, %s)", ErrInvalidWindowSize, a.offset, a.slide, a.slide)
	}
	return nil
}

// AssignWindows returns the windows containing ts in ascending start order.
func (a SlidingWindows) AssignWindows(ts time.Time, ctx AssignerContext) []Window {
	if !a.eventTime {
		ts = ctx.CurrentProcessingTime()
	}
	n := ts.UnixNano()
	size, slide := int64(a.size), int64(a.slide)

	var starts []int64
	for start := windowStart(n, int64(a.offset), slide); start > n-size; start -= slide {
		starts = append(starts, start)
	}

	windows := make([]Window, 0, len(starts))
	for i := len(starts) - 1; i >= 0; i-- {
		windows = append(windows, TimeWindow{start: starts[i], end: starts[i] + size})
	}
	return windows
}

func (a SlidingWindows) DefaultTrigger() Trigger {
	if a.eventTime {
		return EventTimeTrigger()
	}
	return ProcessingTimeTrigger()
}

func (a SlidingWindows) IsEventTime() bool {
	return a.eventTime
}

func (a SlidingWindows) String() string {
	return fmt.Sprintf("SlidingWindows(size=%s, slide=%s, offset=%s, eventTime=%t)", a.size, a.slide, a.offset, a.eventTime)
}

// GlobalWindows puts all elements of a key into one GlobalWindow. Combine it
// with a CountTrigger for count-based windows.
type GlobalWindows struct{}

func (GlobalWindows) AssignWindows(time.Time, AssignerContext) []Window {
	return []Window{GlobalWindow{}}
}

func (GlobalWindows) DefaultTrigger() Trigger {
	return NeverTrigger()
}

func (GlobalWindows) IsEventTime() bool {
	return false
}

func (GlobalWindows) Validate() error {
	return nil
}

func (GlobalWindows) String() string {
	return "GlobalWindows"
}
