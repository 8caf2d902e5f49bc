package wizard

import (
	"reflect"
	"testing"
)

func TestNewWorkflowInitialState(t *testing.T) {
	w := NewWorkflow()
	states := w.StepStates()

	if !states[StepUpload].Active {
		t.Error("first step must start active")
	}
	for step, state := range states {
		if Step(step) != StepUpload && state.Active {
			t.Errorf("step %s unexpectedly active", Step(step).ID())
		}
		if state.Completed || state.Disabled || len(state.Errors) != 0 {
			t.Errorf("step %s not in pristine state: %+v", Step(step).ID(), state)
		}
	}
	if len(w.GlobalData()) != 0 {
		t.Error("global data must start empty")
	}
}

func TestGoToStepIsUngated(t *testing.T) {
	w := NewWorkflow()

	// Jumping straight to the last step is allowed: navigation never
	// depends on prior completion.
	if err := w.GoToStep(StepMatchDisplay); err != nil {
		t.Fatalf("GoToStep failed: %v", err)
	}
	states := w.StepStates()
	for step, state := range states {
		want := Step(step) == StepMatchDisplay
		if state.Active != want {
			t.Errorf("step %s: active = %v, want %v", Step(step).ID(), state.Active, want)
		}
	}

	if err := w.GoToStep(Step(99)); err == nil {
		t.Error("expected unknown step to be rejected")
	}
}

func TestCompleteStepStoresPayload(t *testing.T) {
	w := NewWorkflow()

	payload := map[string]int{"successful": 3}
	if err := w.CompleteStep(StepExtract, payload); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}

	states := w.StepStates()
	if !states[StepExtract].Completed {
		t.Error("step not marked completed")
	}
	data := w.GlobalData()
	if got, ok := data["extract"]; !ok || !reflect.DeepEqual(got, payload) {
		t.Errorf("payload not stored under step id: %+v", data)
	}

	// Completing a step does not move the active marker.
	if !states[StepUpload].Active {
		t.Error("active step changed on completion")
	}
}

func TestSetStepErrorAccumulates(t *testing.T) {
	w := NewWorkflow()

	if err := w.SetStepError(StepStitch, "no extracted scans"); err != nil {
		t.Fatalf("SetStepError failed: %v", err)
	}
	if err := w.SetStepError(StepStitch, "composite too large"); err != nil {
		t.Fatalf("SetStepError failed: %v", err)
	}

	states := w.StepStates()
	if len(states[StepStitch].Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", states[StepStitch].Errors)
	}

	// Completing the step clears its errors.
	if err := w.CompleteStep(StepStitch, nil); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	if errs := w.StepStates()[StepStitch].Errors; len(errs) != 0 {
		t.Errorf("expected errors cleared on completion, got %v", errs)
	}
}

func TestResetWorkflowRestoresInitialStateExactly(t *testing.T) {
	w := NewWorkflow()
	pristine := NewWorkflow()

	w.GoToStep(StepOCRUpdate)
	w.CompleteStep(StepUpload, "ids")
	w.CompleteStep(StepExtract, 42)
	w.SetStepError(StepMatchDisplay, "boom")

	w.ResetWorkflow()

	if !reflect.DeepEqual(w.StepStates(), pristine.StepStates()) {
		t.Errorf("step states differ from pristine workflow:\n%+v\n%+v",
			w.StepStates(), pristine.StepStates())
	}
	if len(w.GlobalData()) != 0 {
		t.Errorf("global data not cleared: %+v", w.GlobalData())
	}
}

func TestStepIDs(t *testing.T) {
	want := map[Step]string{
		StepUpload:       "upload",
		StepExtract:      "extract",
		StepStitch:       "stitch",
		StepOCRUpdate:    "ocr_update",
		StepMatchDisplay: "match_display",
	}
	for step, id := range want {
		if step.ID() != id {
			t.Errorf("step %d: expected id %s, got %s", step, id, step.ID())
		}
	}
	if Step(99).ID() != "unknown" {
		t.Error("out-of-range step must report unknown")
	}
}
