package execution

import (
	"context"
	"fmt"

	"github.com/birdayz/kcogroup/kprocessor"
)

// partitionFunc returns the partition hash of a boxed record.
type partitionFunc func(record any) (uint64, error)

// edge connects one parent node to one child node. Instance s of the parent
// is producer base+s for every instance of the child.
type edge struct {
	child     string
	inboxes   []chan event
	partition partitionFunc
	base      int
}

// router delivers the output of one node instance to its children.
// Records go to one child instance: keyed children by hash, others round
// robin. Watermarks and end-of-input go to all child instances.
type router struct {
	edges []edge
	slot  int
	next  int
}

func (r *router) sendRecord(ctx context.Context, record any) error {
	rr := r.next
	r.next++

	for _, e := range r.edges {
		n := len(e.inboxes)
		target := rr % n
		if e.partition != nil {
			h, err := e.partition(record)
			if err != nil {
				return fmt.Errorf("partition record for %s: %w", e.child, err)
			}
			target = int(h % uint64(n))
		}
		if err := send(ctx, e.inboxes[target], event{kind: eventElement, producer: e.base + r.slot, record: record}); err != nil {
			return err
		}
	}
	return nil
}

func (r *router) broadcastWatermark(ctx context.Context, wm kprocessor.Watermark) error {
	return r.broadcast(ctx, eventWatermark, wm)
}

func (r *router) broadcastEnd(ctx context.Context) error {
	return r.broadcast(ctx, eventEnd, kprocessor.MaxWatermark)
}

func (r *router) broadcast(ctx context.Context, kind eventKind, wm kprocessor.Watermark) error {
	for _, e := range r.edges {
		for _, inbox := range e.inboxes {
			if err := send(ctx, inbox, event{kind: kind, producer: e.base + r.slot, watermark: wm}); err != nil {
				return err
			}
		}
	}
	return nil
}

func send(ctx context.Context, inbox chan<- event, ev event) error {
	select {
	case inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
