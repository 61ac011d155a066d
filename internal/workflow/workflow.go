// Package workflow implements the machine wizards: adding a machine,
// installing it and updating it. Each flow owns a stepper and a modal slot;
// the UI renders the current step and calls the step's submit method, which
// validates its own input before advancing.
package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/five82/clanboard/internal/model"
)

// Step ids shared by the flows.
const (
	StepGeneral       = "general"
	StepCreate        = "create"
	StepAddress       = "address"
	StepCheckHardware = "check-hardware"
	StepDisk          = "disk"
	StepData          = "data"
	StepSummary       = "summary"
	StepProgress      = "progress"
	StepDone          = "done"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnreachable  = errors.New("machine is not reachable over ssh")
	ErrWrongStep    = errors.New("action not allowed at this step")
	ErrNotRunning   = errors.New("no task is running")
)

// Canceller cancels a running host task. *rpc.Client implements it.
type Canceller interface {
	Cancel(ctx context.Context, taskID string) error
}

// tracker records the task id and progress of a running install or update.
// Progress arrives from transport goroutines while the UI reads it.
type tracker struct {
	mu      sync.Mutex
	taskID  string
	steps   []model.InstallProgress
	running bool
	err     error
}

func (t *tracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taskID, t.steps, t.running, t.err = "", nil, true, nil
}

func (t *tracker) setTask(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taskID = id
}

func (t *tracker) add(p model.InstallProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, p)
}

func (t *tracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running, t.err = false, err
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Progress{
		TaskID:  t.taskID,
		Steps:   append([]model.InstallProgress(nil), t.steps...),
		Running: t.running,
		Err:     t.err,
	}
}

// abort cancels the running task through c.
func (t *tracker) abort(ctx context.Context, c Canceller) error {
	p := t.snapshot()
	if !p.Running || p.TaskID == "" {
		return ErrNotRunning
	}
	return c.Cancel(ctx, p.TaskID)
}

// Progress is a copy of the state of a running or finished task.
type Progress struct {
	TaskID  string
	Steps   []model.InstallProgress
	Running bool
	Err     error
}

// Last returns the most recent step.
func (p Progress) Last() (model.InstallProgress, bool) {
	if len(p.Steps) == 0 {
		return "", false
	}
	return p.Steps[len(p.Steps)-1], true
}
