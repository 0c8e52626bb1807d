package execution

import (
	"fmt"
)

// ProcessingStage indicates where in the pipeline an error occurred
type ProcessingStage string

const (
	StageOpen       ProcessingStage = "open"
	StageSource     ProcessingStage = "source"
	StageProcessing ProcessingStage = "processing"
	StageWatermark  ProcessingStage = "watermark"
	StageTimer      ProcessingStage = "timer"
	StageForward    ProcessingStage = "forward"
)

// ProcessingError wraps an error with the node instance that failed.
type ProcessingError struct {
	Cause error
	Stage ProcessingStage
	Node  string
	Slot  int
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s error in node %q (slot=%d): %v", e.Stage, e.Node, e.Slot, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func newProcessingError(cause error, stage ProcessingStage, node string, slot int) *ProcessingError {
	return &ProcessingError{
		Cause: cause,
		Stage: stage,
		Node:  node,
		Slot:  slot,
	}
}
