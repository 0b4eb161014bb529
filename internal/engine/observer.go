package engine

import "time"

// OperationStatus is the outcome of one step of a run.
type OperationStatus string

const (
	StatusSucceeded OperationStatus = "succeeded"
	StatusCached    OperationStatus = "cached"
	StatusFailed    OperationStatus = "failed"
	StatusSkipped   OperationStatus = "skipped"
)

// OperationEvent reports a finished (or skipped) step.
type OperationEvent struct {
	Position  int
	Operation *Operation
	Status    OperationStatus
	Summary   string
	Duration  time.Duration
	Rows      int // total rows across tables after the step
	Err       error
}

// Observer receives an event for every step of a run, in order.
// Observers are called synchronously from the run loop.
type Observer interface {
	OperationFinished(ev OperationEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev OperationEvent)

func (f ObserverFunc) OperationFinished(ev OperationEvent) { f(ev) }

type noopObserver struct{}

func (noopObserver) OperationFinished(OperationEvent) {}
