package kadapter

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-logr/logr"
)

// TopologyContext tells a handler where it runs.
type TopologyContext struct {
	// TaskID is the slot of the adapter instance.
	TaskID      int
	ComponentID string
	// InstanceID is unique per adapter instance and run.
	InstanceID       string
	InputStreamID    string
	InputComponentID string
	Parallelism      int
	// OutputFields holds the declared output streams.
	OutputFields map[string]Fields
	Logger       logr.Logger
}

// Input is one element handed to Handler.Execute.
type Input[In any] struct {
	Value       In
	Schema      Fields
	TaskID      int
	StreamID    string
	ComponentID string
	Timestamp   time.Time
}

// Field returns the attribute called name. Tuple values are looked up via
// Schema, structs and struct pointers by exported field name.
func (in Input[In]) Field(name string) (any, error) {
	if t, ok := any(in.Value).(Tuple); ok {
		if in.Schema == nil {
			return nil, fmt.Errorf("%w: %q, input has no schema", ErrNoSuchField, name)
		}
		return t.Get(in.Schema, name)
	}

	v := reflect.ValueOf(in.Value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: %q on nil value", ErrNoSuchField, name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %q on %s", ErrNoSuchField, name, v.Kind())
	}

	sf, ok := v.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, fmt.Errorf("%w: %q on %s", ErrNoSuchField, name, v.Type())
	}
	return v.FieldByIndex(sf.Index).Interface(), nil
}
