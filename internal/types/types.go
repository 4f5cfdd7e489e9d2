package types

import (
	"strings"
	"time"
)

// Dataset names used to locate fixture payloads
const (
	DatasetValid   = "valid"
	DatasetInvalid = "invalid"
)

// Status is the overall outcome of an executed path
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// EndpointSpec describes one invokable API operation and its data dependencies
type EndpointSpec struct {
	Name     string   `yaml:"-" json:"name"`
	Method   string   `yaml:"method" json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Path     string   `yaml:"path" json:"path" validate:"required,startswith=/"`
	Provides string   `yaml:"provides,omitempty" json:"provides,omitempty"`
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty" validate:"unique,dive,required"`
	DataKey  string   `yaml:"data_key" json:"data_key" validate:"required"`
}

// Path is an ordered sequence of endpoint names
type Path []string

// String renders the path as "A -> B -> C"
func (p Path) String() string {
	return strings.Join(p, " -> ")
}

// StepResult captures one HTTP call made while executing a path
type StepResult struct {
	Step       string                 `json:"step"`
	StatusCode int                    `json:"status_code"`
	Payload    map[string]interface{} `json:"payload"`
	Response   interface{}            `json:"response"`
	Duration   time.Duration          `json:"duration"`
}

// Verdict is the PASS/FAIL classification of one executed path
type Verdict struct {
	Status   Status                 `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
	Details  []StepResult           `json:"details"`
	Warnings []string               `json:"warnings,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// Passed reports whether the verdict status is PASSED
func (v Verdict) Passed() bool {
	return v.Status == StatusPassed
}
