// Package progress defines the event type emitted by long-running
// operations. Events are transient: they are handed to the callback and
// never retained by the emitter.
package progress

// Stage identifies where in an operation an event was emitted.
type Stage string

const (
	StageStarting       Stage = "starting"
	StageValidating     Stage = "validating"
	StagePatching       Stage = "patching"
	StageReplacingFiles Stage = "replacing-files"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

// Event describes the current state of an operation.
type Event struct {
	Stage   Stage   `json:"stage"`
	Percent float64 `json:"percent"` // 0-100
	Message string  `json:"message,omitempty"`
}

// Callback receives progress updates. A nil Callback is always allowed.
type Callback func(event Event)

// Emit invokes cb if it is non-nil.
func Emit(cb Callback, stage Stage, percent float64, message string) {
	if cb == nil {
		return
	}
	cb(Event{Stage: stage, Percent: percent, Message: message})
}
