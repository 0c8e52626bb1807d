// Package execution runs a built kdag.DAG in-process: one goroutine per node
// instance, bounded channels between instances.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
)

const (
	DefaultBufferSize   = 256
	DefaultTickInterval = 100 * time.Millisecond
)

// Config configures a Runner.
type Config struct {
	// Parallelism is the number of instances of keyed operators.
	Parallelism int
	// BufferSize is the capacity of each instance's input channel.
	BufferSize int
	// TickInterval is how often processing-time timers are checked. Zero
	// disables processing-time ticks.
	TickInterval  time.Duration
	Clock         clockz.Clock
	Logger        logr.Logger
	JobParameters map[string]string
	Interceptor   kprocessor.Interceptor
}

// Runner executes a DAG until all sources are exhausted, an instance fails
// or the context is cancelled.
type Runner struct {
	dag *kdag.DAG
	cfg Config
}

func NewRunner(dag *kdag.DAG, cfg Config) *Runner {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Runner{dag: dag, cfg: cfg}
}

// plan is the runtime view of one node.
type plan struct {
	node        *kdag.Node
	rt          runtimeNode
	parallelism int
	inboxes     []chan event
	producers   int
	edges       []edge
}

// Run blocks until the job is done. It returns the first instance error;
// all other instances are cancelled and closed.
func (r *Runner) Run(ctx context.Context) error {
	plans, order, err := r.plan()
	if err != nil {
		return err
	}

	log := r.cfg.Logger
	log.Info("Starting job", "nodes", len(order), "parallelism", r.cfg.Parallelism)

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range order {
		p := plans[id]
		for slot := 0; slot < p.parallelism; slot++ {
			env := taskEnv{
				name:          string(id),
				slot:          slot,
				parallelism:   p.parallelism,
				producers:     p.producers,
				router:        &router{edges: p.edges, slot: slot},
				clock:         r.cfg.Clock,
				tickInterval:  r.cfg.TickInterval,
				jobParameters: r.cfg.JobParameters,
				interceptor:   r.cfg.Interceptor,
				log:           log.WithName(string(id)).WithValues("slot", slot),
			}
			if p.inboxes != nil {
				env.inbox = p.inboxes[slot]
			}
			t := p.rt.newTask(env)
			g.Go(func() error {
				return t.run(ctx)
			})
		}
	}

	if err := g.Wait(); err != nil {
		log.Error(err, "Job failed")
		return err
	}
	log.Info("Job finished")
	return nil
}

func (r *Runner) plan() (map[kdag.NodeID]*plan, []kdag.NodeID, error) {
	order := r.dag.Order()
	plans := make(map[kdag.NodeID]*plan, len(order))

	for _, id := range order {
		node, _ := r.dag.Node(id)
		rt, ok := node.RuntimeBuilder.(runtimeNode)
		if !ok {
			return nil, nil, fmt.Errorf("%w: node %s has no runtime builder", kdag.ErrInvalidTopology, id)
		}
		if node.Keyed && rt.partitioner() == nil {
			return nil, nil, fmt.Errorf("%w: keyed node %s has no partitioner", kdag.ErrInvalidTopology, id)
		}

		p := &plan{node: node, rt: rt, parallelism: r.parallelismOf(node)}
		if node.Type != kdag.NodeTypeSource {
			p.inboxes = make([]chan event, p.parallelism)
			for i := range p.inboxes {
				p.inboxes[i] = make(chan event, r.cfg.BufferSize)
			}
		}
		plans[id] = p
	}

	// parents come first in order, so their parallelism is known here
	for _, id := range order {
		parent := plans[id]
		for _, childID := range parent.node.Children {
			child := plans[childID]
			parent.edges = append(parent.edges, edge{
				child:     string(childID),
				inboxes:   child.inboxes,
				partition: child.rt.partitioner(),
				base:      child.producers,
			})
			child.producers += parent.parallelism
		}
	}

	return plans, order, nil
}

func (r *Runner) parallelismOf(node *kdag.Node) int {
	switch {
	case node.Type != kdag.NodeTypeOperator:
		return 1
	case node.Parallelism > 0:
		return node.Parallelism
	case node.Keyed:
		return r.cfg.Parallelism
	default:
		return 1
	}
}
