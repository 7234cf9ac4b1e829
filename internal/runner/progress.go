package runner

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Step is a stage of a run. Steps happen in declaration order and never
// repeat.
type Step int

const (
	StepPrerequisites Step = iota
	StepInventoryCredential
	StepMailCredential
	StepConnect
	StepEnumerate
	StepRender
	StepDispatch
	StepDisconnect
	StepDone
)

var stepNames = [...]string{
	StepPrerequisites:       "check prerequisites",
	StepInventoryCredential: "inventory credential",
	StepMailCredential:      "mail credential",
	StepConnect:             "connect",
	StepEnumerate:           "enumerate",
	StepRender:              "render",
	StepDispatch:            "dispatch",
	StepDisconnect:          "disconnect",
	StepDone:                "done",
}

var stepPercent = [...]int{
	StepPrerequisites:       5,
	StepInventoryCredential: 15,
	StepMailCredential:      25,
	StepConnect:             40,
	StepEnumerate:           60,
	StepRender:              75,
	StepDispatch:            90,
	StepDisconnect:          95,
	StepDone:                100,
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Percent is the coarse completion reported when s starts.
func (s Step) Percent() int {
	if s < 0 || int(s) >= len(stepPercent) {
		return 0
	}
	return stepPercent[s]
}

// Observer is told when each step starts. It is for operator feedback only.
type Observer interface {
	Progress(step Step, percent int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step Step, percent int)

func (f ObserverFunc) Progress(step Step, percent int) { f(step, percent) }

// LogObserver reports progress as log lines.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) Progress(step Step, percent int) {
	o.Log.Info().Int("percent", percent).Msg(step.String())
}

type nopObserver struct{}

func (nopObserver) Progress(Step, int) {}
