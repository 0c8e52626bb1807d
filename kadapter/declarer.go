package kadapter

import (
	"fmt"
	"maps"
	"slices"
)

// OutputDeclarer collects the output streams a handler declares.
type OutputDeclarer interface {
	// Declare declares the default stream.
	Declare(fields Fields)
	DeclareStream(streamID string, fields Fields)
}

type declarer struct {
	streams map[string]Fields
}

func newDeclarer() *declarer {
	return &declarer{streams: make(map[string]Fields)}
}

func (d *declarer) Declare(fields Fields) {
	d.DeclareStream(DefaultStreamID, fields)
}

func (d *declarer) DeclareStream(streamID string, fields Fields) {
	d.streams[streamID] = fields
}

// arities validates the declared streams and returns the number of
// attributes per stream.
func (d *declarer) arities(raw []string) (map[string]int, error) {
	if len(d.streams) == 0 {
		return nil, fmt.Errorf("%w: handler declares no output streams", ErrIllegalArgument)
	}

	out := make(map[string]int, len(d.streams))
	for _, id := range slices.Sorted(maps.Keys(d.streams)) {
		n := len(d.streams[id])
		if n > MaxArity {
			return nil, fmt.Errorf("%w: stream %q declares %d attributes, at most %d are supported",
				ErrIllegalArgument, id, n, MaxArity)
		}
		out[id] = n
	}

	for _, id := range raw {
		n, ok := out[id]
		if !ok {
			return nil, fmt.Errorf("%w: raw output %q is not declared", ErrIllegalArgument, id)
		}
		if n != 1 {
			return nil, fmt.Errorf("%w: raw output %q must declare exactly one attribute, has %d",
				ErrIllegalArgument, id, n)
		}
	}
	return out, nil
}
