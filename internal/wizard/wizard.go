// Package wizard is the UI-facing projection of the pipeline: a linear
// five-step navigation model. It holds no pipeline logic and never talks
// to the store; callers feed it step outcomes and read its state.
package wizard

import (
	"fmt"
	"sync"
)

// Step identifies one wizard step. The set is closed, so step state lives
// in a fixed-size array indexed by Step rather than a map.
type Step int

const (
	StepUpload Step = iota
	StepExtract
	StepStitch
	StepOCRUpdate
	StepMatchDisplay

	stepCount
)

var stepIDs = [stepCount]string{
	StepUpload:       "upload",
	StepExtract:      "extract",
	StepStitch:       "stitch",
	StepOCRUpdate:    "ocr_update",
	StepMatchDisplay: "match_display",
}

// ID returns the stable string id used as the GlobalData key.
func (s Step) ID() string {
	if s < 0 || s >= stepCount {
		return "unknown"
	}
	return stepIDs[s]
}

// StepState is the UI state of one step. Steps are never disabled:
// navigation is deliberately ungated so any step can be revisited.
type StepState struct {
	Active    bool
	Completed bool
	Disabled  bool
	Data      any
	Errors    []string
}

// Workflow is the five-step navigation state machine.
type Workflow struct {
	mu         sync.Mutex
	steps      [stepCount]StepState
	globalData map[string]any
}

func NewWorkflow() *Workflow {
	w := &Workflow{}
	w.reset()
	return w
}

func (w *Workflow) reset() {
	w.steps = [stepCount]StepState{}
	w.steps[StepUpload].Active = true
	w.globalData = make(map[string]any)
}

// GoToStep activates the target step and deactivates every other one.
// Completion of prior steps is not required.
func (w *Workflow) GoToStep(step Step) error {
	if step < 0 || step >= stepCount {
		return fmt.Errorf("unknown step %d", step)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.steps {
		w.steps[i].Active = Step(i) == step
	}
	return nil
}

// CompleteStep marks a step completed, clears its errors, and stores its
// payload in the global data map keyed by step id. Nothing else changes:
// all steps are always enabled, so there is no cascade.
func (w *Workflow) CompleteStep(step Step, payload any) error {
	if step < 0 || step >= stepCount {
		return fmt.Errorf("unknown step %d", step)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.steps[step].Completed = true
	w.steps[step].Data = payload
	w.steps[step].Errors = nil
	w.globalData[step.ID()] = payload
	return nil
}

// SetStepError records an error on a step without changing navigation or
// completion state.
func (w *Workflow) SetStepError(step Step, message string) error {
	if step < 0 || step >= stepCount {
		return fmt.Errorf("unknown step %d", step)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.steps[step].Errors = append(w.steps[step].Errors, message)
	return nil
}

// ResetWorkflow restores the exact initial state: first step active, no
// completions, no errors, empty global data.
func (w *Workflow) ResetWorkflow() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

// StepStates returns a snapshot of all step states in order.
func (w *Workflow) StepStates() [stepCount]StepState {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out [stepCount]StepState
	for i, s := range w.steps {
		s.Errors = append([]string(nil), s.Errors...)
		out[i] = s
	}
	return out
}

// GlobalData returns a snapshot of the step payload map.
func (w *Workflow) GlobalData() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]any, len(w.globalData))
	for k, v := range w.globalData {
		out[k] = v
	}
	return out
}
