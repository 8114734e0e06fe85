// -- pkg/agent/models.go --
package agent

import (
	"time"

	"github.com/xkilldash9x/prospector-cli/pkg/extract"
)

// Status is the run's position in its lifecycle. A run starts Running
// and ends in exactly one of the three terminal statuses; terminal
// statuses never transition further.
type Status string

const (
	StatusRunning        Status = "Running"
	StatusSucceeded      Status = "Succeeded"
	StatusStoppedAtLimit Status = "StoppedAtLimit"
	StatusFailed         Status = "Failed"
)

// Terminal reports whether the status ends the run.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusStoppedAtLimit || s == StatusFailed
}

// Task describes one job handed to the loop.
type Task struct {
	// ID identifies the run in logs and events; Run assigns one when empty.
	ID string `json:"id"`
	// Instruction is the free-text objective given to the model.
	Instruction string `json:"instruction"`
	// StartURL is where the browser session begins.
	StartURL string `json:"start_url"`
}

// runState is the loop's private per-run record. It exists from task
// start to task end and is mutated only by the loop goroutine.
type runState struct {
	task      Task
	stepIndex int
	maxSteps  int
	actionLog []string
	contacts  []extract.Contact
	status    Status
	summary   string
	startedAt time.Time
	lastErr   error
}

// StepEvent is the progress notification emitted after each loop step.
type StepEvent struct {
	RunID      string `json:"run_id"`
	StepIndex  int    `json:"step_index"`
	Action     string `json:"action"`
	StatusLine string `json:"status_line"`
	Contacts   int    `json:"contacts"`
}

// Result is the terminal outcome of one run. It always carries the
// partial progress made before the run ended, whatever the status.
type Result struct {
	RunID    string            `json:"run_id"`
	Status   Status            `json:"status"`
	Success  bool              `json:"success"`
	Summary  string            `json:"summary"`
	Steps    int               `json:"steps"`
	Contacts []extract.Contact `json:"contacts"`
	FinalURL string            `json:"final_url"`
	Error    string            `json:"error,omitempty"`
	Elapsed  time.Duration     `json:"elapsed"`
}
