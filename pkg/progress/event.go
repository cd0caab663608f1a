package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageStart  Stage = "START"
	StageRedraw Stage = "REDRAW"
	StageSkip   Stage = "SKIP"
	StageFault  Stage = "FAULT"
	StageStop   Stage = "STOP"
)

// Kind names the renderer that emitted an Event.
type Kind string

// Supported renderer kinds.
const (
	KindPercentage Kind = "percentage"
	KindTime       Kind = "time"
)

// Event captures a single renderer milestone.
type Event struct {
	// RendererID identifies the renderer instance using the 16-byte UUID form.
	RendererID [16]byte
	// TS is the timestamp recorded by the renderer's clock.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Kind is the emitting renderer's kind.
	Kind Kind
	// Text is the rendered line for redraw and skip events.
	Text string
	// Fraction is the completion fraction for percentage renderers.
	Fraction float64
	// Elapsed is the time since start for time renderers.
	Elapsed time.Duration
	// Note carries low-volume context such as fault text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RendererID == [16]byte{} {
		return errors.New("renderer id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindPercentage, KindTime:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	switch e.Stage {
	case StageStart, StageRedraw, StageSkip, StageStop:
	case StageFault:
		if e.Note == "" {
			return errors.New("fault requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Fraction < 0 || e.Fraction > 1 {
		return errors.New("fraction must be within [0, 1]")
	}
	if e.Elapsed < 0 {
		return errors.New("elapsed must be >= 0")
	}
	return nil
}

// RendererUUID converts the binary renderer ID to uuid.UUID.
func (e Event) RendererUUID() uuid.UUID {
	return uuid.UUID(e.RendererID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
