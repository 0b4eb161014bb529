// Package state persists templates and run history in SQLite.
package state

import "time"

// RunStatus is the lifecycle state of a dataflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of a dataflow. A run started from a file has an
// empty TemplateName and the file path in Source.
type Run struct {
	ID              string
	TemplateName    string
	TemplateVersion string
	Source          string
	Parameters      map[string]string
	Status          RunStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	Error           string
}

// OperationRun records the outcome of one step of a run.
type OperationRun struct {
	ID       string
	RunID    string
	Position int
	Name     string
	Summary  string
	Status   string
	Rows     int
	Duration time.Duration
	Error    string
}
