package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// StaticInvoker is a deterministic agent that echoes its input.
// It backs the default roster and dry runs, and is handy in tests.
type StaticInvoker struct {
	AgentID      string
	Capabilities models.CapabilitySet
	// Confidence is reported on every result. Nil reports no confidence.
	Confidence *float64
	// Delay simulates work. The call returns early if ctx is done.
	Delay time.Duration
}

// NewStaticInvoker builds a StaticInvoker from a roster entry.
func NewStaticInvoker(spec models.AgentSpec) *StaticInvoker {
	return &StaticInvoker{
		AgentID:      spec.ID,
		Capabilities: spec.Capabilities.Normalize(),
		Confidence:   spec.Confidence,
		Delay:        spec.Delay,
	}
}

// Invoke returns a payload with one entry per expected write plus a summary
// of the inputs it saw.
func (s *StaticInvoker) Invoke(ctx context.Context, in Input) (*models.Result, error) {
	if !s.Capabilities.Covers(in.Capabilities) {
		return nil, fmt.Errorf("%w: %s lacks %s", ErrCapabilityMismatch, s.AgentID, in.Capabilities)
	}

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
	}

	inputs := make([]string, 0, len(in.Artifacts))
	for k := range in.Artifacts {
		inputs = append(inputs, k)
	}
	sort.Strings(inputs)

	payload := map[string]any{
		"task_id": in.TaskID,
		"agent":   s.AgentID,
		"attempt": in.Attempt,
		"inputs":  inputs,
	}
	for _, key := range in.Writes {
		payload[key] = fmt.Sprintf("%s:%s", s.AgentID, in.TaskID)
	}

	var conf *float64
	if s.Confidence != nil {
		conf = models.Confidence(*s.Confidence)
	}
	return &models.Result{
		Payload:    payload,
		Confidence: conf,
		Writes:     append([]string(nil), in.Writes...),
	}, nil
}

var _ Invoker = (*StaticInvoker)(nil)
