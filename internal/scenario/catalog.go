// Package scenario combines generated paths with expected verdicts into a test matrix.
package scenario

import (
	"fmt"
	"time"

	"api-path-tester/internal/pathgen"
	"api-path-tester/internal/types"
)

// Kind says which family of paths a scenario came from.
type Kind string

const (
	KindValidPath   Kind = "VALID_PATH"
	KindInvalidPath Kind = "INVALID_PATH"
)

// Scenario is one path to execute with a data-validity flag and the verdict it should produce.
type Scenario struct {
	Kind           Kind                 `json:"kind"`
	Path           types.Path           `json:"path"`
	UseInvalidData bool                 `json:"use_invalid_data"`
	Expected       types.Status         `json:"expected"`
	InvalidClass   pathgen.InvalidClass `json:"invalid_class,omitempty"`
	Description    string               `json:"description"`
}

// Outcome is an executed scenario.
type Outcome struct {
	Scenario Scenario      `json:"scenario"`
	RunID    string        `json:"run_id"`
	Verdict  types.Verdict `json:"verdict"`
	Duration time.Duration `json:"duration"`
}

// Matched reports whether the verdict equals the expected status.
func (o Outcome) Matched() bool {
	return o.Verdict.Status == o.Scenario.Expected
}

// CoincidentallyValid reports whether a random permutation, expected to fail, happened
// to be a dependency-respecting order and passed. Such paths are not re-checked at generation.
func (o Outcome) CoincidentallyValid() bool {
	return o.Scenario.InvalidClass == pathgen.ClassPermutation && o.Verdict.Passed()
}

// BuildCatalog returns, in order: every valid path with valid data (expect PASSED),
// every valid path with invalid data (expect FAILED), and every invalid path with
// valid data (expect FAILED).
func BuildCatalog(valid []types.Path, invalid []pathgen.InvalidPath) []Scenario {
	scenarios := make([]Scenario, 0, 2*len(valid)+len(invalid))

	for _, path := range valid {
		scenarios = append(scenarios, Scenario{
			Kind:        KindValidPath,
			Path:        path,
			Expected:    types.StatusPassed,
			Description: fmt.Sprintf("%s | %s | valid_data", KindValidPath, path),
		})
	}

	for _, path := range valid {
		scenarios = append(scenarios, Scenario{
			Kind:           KindValidPath,
			Path:           path,
			UseInvalidData: true,
			Expected:       types.StatusFailed,
			Description:    fmt.Sprintf("%s | %s | invalid_data", KindValidPath, path),
		})
	}

	for _, p := range invalid {
		scenarios = append(scenarios, Scenario{
			Kind:         KindInvalidPath,
			Path:         p.Path,
			Expected:     types.StatusFailed,
			InvalidClass: p.Class,
			Description:  fmt.Sprintf("%s | %s | %s", KindInvalidPath, p.Path, p.Class),
		})
	}

	return scenarios
}
