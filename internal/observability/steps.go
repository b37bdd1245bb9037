package observability

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// StepStatus is the outcome of a pipeline step.
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// Step is one recorded pipeline step.
type Step struct {
	Number   int
	Name     string
	Status   StepStatus
	Detail   string
	Duration time.Duration
	Err      error
}

// Recorder numbers, times and logs pipeline steps.
type Recorder struct {
	log   logrus.FieldLogger
	now   func() time.Time
	steps []Step
}

// NewRecorder creates a recorder logging to log.
func NewRecorder(log logrus.FieldLogger) *Recorder {
	return &Recorder{log: log, now: time.Now}
}

// Run executes fn as the next step. fn returns a short detail for the
// summary. The step's error is returned unchanged.
func (r *Recorder) Run(name string, fn func() (string, error)) error {
	n := len(r.steps) + 1
	log := r.log.WithField("step", n)
	log.Info(fmt.Sprintf("STEP %d: %s", n, name))

	start := r.now()
	detail, err := fn()
	step := Step{Number: n, Name: name, Status: StepDone, Detail: detail, Duration: r.now().Sub(start), Err: err}
	if err != nil {
		step.Status = StepFailed
		log.WithError(err).WithField("duration", step.Duration.Round(time.Millisecond)).Error("step failed")
	} else {
		log.WithField("duration", step.Duration.Round(time.Millisecond)).Info("step completed")
	}
	r.steps = append(r.steps, step)
	return err
}

// Skip records a step that did not run.
func (r *Recorder) Skip(name, reason string) {
	n := len(r.steps) + 1
	r.log.WithField("step", n).Info(fmt.Sprintf("STEP %d: %s skipped (%s)", n, name, reason))
	r.steps = append(r.steps, Step{Number: n, Name: name, Status: StepSkipped, Detail: reason})
}

// Steps returns the recorded steps in order.
func (r *Recorder) Steps() []Step {
	return append([]Step(nil), r.steps...)
}

// Total is the summed duration of all steps.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, s := range r.steps {
		total += s.Duration
	}
	return total
}
