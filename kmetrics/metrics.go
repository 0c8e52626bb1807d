// Package kmetrics holds the Prometheus collectors of the runtime. All
// collectors are registered with the default registry.
package kmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "kcogroup"

	LabelOperator = "operator"
	LabelSlot     = "slot"
	LabelChannel  = "channel"
)

// ElementsProcessed counts elements handed to an operator.
var ElementsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "operator",
	Name:      "elements_total",
	Help:      "Total number of elements processed by an operator",
}, []string{LabelOperator, LabelSlot})

// WindowsFired counts window function invocations per window.
var WindowsFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "window",
	Name:      "fired_total",
	Help:      "Total number of window firings",
}, []string{LabelOperator, LabelSlot})

// WindowsPurged counts buffers discarded by a purge or cleanup.
var WindowsPurged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "window",
	Name:      "purged_total",
	Help:      "Total number of window buffers purged",
}, []string{LabelOperator, LabelSlot})

// LateElementsDropped counts elements that arrived after all their windows
// were cleaned up.
var LateElementsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "window",
	Name:      "late_elements_dropped_total",
	Help:      "Total number of late elements dropped",
}, []string{LabelOperator, LabelSlot})

// JoinPairs counts invocations of a user join function.
var JoinPairs = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "join",
	Name:      "pairs_total",
	Help:      "Total number of joined pairs",
}, []string{LabelOperator})

// AdapterEmitted counts records emitted by an element adapter per channel.
var AdapterEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "adapter",
	Name:      "emitted_total",
	Help:      "Total number of records emitted by an element adapter",
}, []string{LabelOperator, LabelChannel})

// Slot renders a slot index as a label value.
func Slot(slot int) string {
	return strconv.Itoa(slot)
}
