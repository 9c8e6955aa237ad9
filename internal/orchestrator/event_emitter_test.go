package orchestrator

import (
	"testing"
	"time"
)

func TestEventEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter(2)
	for i := 0; i < 5; i++ {
		e.Emit(Event{Type: EventTaskReady, Timestamp: time.Now()})
	}

	if e.DroppedCount() != 3 {
		t.Errorf("DroppedCount() = %d, want 3", e.DroppedCount())
	}
	if len(e.Events()) != 2 {
		t.Errorf("buffered = %d, want 2", len(e.Events()))
	}
}

func TestEventEmitterCloseIsIdempotent(t *testing.T) {
	e := NewEventEmitter(1)
	e.Close()
	e.Close()
	e.Emit(Event{Type: EventSessionDone})

	if _, ok := <-e.Events(); ok {
		t.Error("expected closed channel")
	}
}
