package models

import "fmt"

type StepStatus string

const (
	StatusAdjusting StepStatus = "ADJUSTING"
	StatusConverged StepStatus = "CONVERGED"
	StatusFailed    StepStatus = "FAILED"
)

// Terminal reports whether the status ends a session.
func (s StepStatus) Terminal() bool {
	return s == StatusConverged || s == StatusFailed
}

// CalibrationParams is the single request sent when a session opens.
type CalibrationParams struct {
	TargetGV      float64 `json:"target_gv"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
}

// CalibrationStep is one progress report from the vision service.
type CalibrationStep struct {
	Step              int        `json:"step"`
	CurrentGV         float64    `json:"current_gv"`
	TargetGV          float64    `json:"target_gv"`
	AppliedGain       float64    `json:"applied_gain"`
	AppliedBlackLevel float64    `json:"applied_black_level"`
	Status            StepStatus `json:"status"`
	Message           string     `json:"message"`
	ImageURL          string     `json:"image_url"`
	RawImageID        *int       `json:"raw_image_id"`
	InspectionID      *int       `json:"inspection_id"`
}

// LogLine renders the step the way the console log pane shows it.
func (s CalibrationStep) LogLine() string {
	return fmt.Sprintf("#%d gv=%.2f gain=%.2f black=%v %s",
		s.Step, s.CurrentGV, s.AppliedGain, s.AppliedBlackLevel, s.Status)
}
