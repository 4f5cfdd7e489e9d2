package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"api-path-tester/internal/scenario"
	"api-path-tester/internal/types"
)

// Report represents the test execution report
type Report struct {
	SuiteID         string    `json:"suite_id"`
	Timestamp       time.Time `json:"timestamp"`
	TotalScenarios  int       `json:"total_scenarios"`
	PassedScenarios int       `json:"passed_scenarios"`
	FailedScenarios int       `json:"failed_scenarios"`
	Mismatched      int       `json:"mismatched"`

	// Mismatches from random permutations that turned out to be valid orders
	CoincidentallyValid int              `json:"coincidentally_valid"`
	Duration            time.Duration    `json:"duration"`
	Results             []ScenarioResult `json:"results"`
}

// Unexpected is the number of mismatches that indicate a real problem with the API
func (r Report) Unexpected() int {
	return r.Mismatched - r.CoincidentallyValid
}

// ScenarioResult represents a single executed scenario
type ScenarioResult struct {
	RunID          string             `json:"run_id"`
	Description    string             `json:"description"`
	Kind           scenario.Kind      `json:"kind"`
	Path           types.Path         `json:"path"`
	UseInvalidData bool               `json:"use_invalid_data"`
	Expected       types.Status       `json:"expected"`
	Actual         types.Status       `json:"actual"`
	Matched        bool               `json:"matched"`
	Reason         string             `json:"reason,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	Duration       time.Duration      `json:"duration"`
	Steps          []types.StepResult `json:"steps,omitempty"`
}

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
	out    io.Writer
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
	Detailed  bool
}

// NewReporter creates a new instance of Reporter. Console output goes to out, or stdout if nil.
func NewReporter(config ReportingConfig, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		config: config,
		out:    out,
	}
}

// BuildReport summarizes scenario outcomes. Step details are kept only in detailed mode.
func (r *Reporter) BuildReport(suiteID string, outcomes []scenario.Outcome, duration time.Duration) Report {
	report := Report{
		SuiteID:        suiteID,
		Timestamp:      time.Now(),
		TotalScenarios: len(outcomes),
		Duration:       duration,
		Results:        make([]ScenarioResult, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		if o.Verdict.Passed() {
			report.PassedScenarios++
		} else {
			report.FailedScenarios++
		}
		if !o.Matched() {
			report.Mismatched++
		}
		if o.CoincidentallyValid() {
			report.CoincidentallyValid++
		}

		result := ScenarioResult{
			RunID:          o.RunID,
			Description:    o.Scenario.Description,
			Kind:           o.Scenario.Kind,
			Path:           o.Scenario.Path,
			UseInvalidData: o.Scenario.UseInvalidData,
			Expected:       o.Scenario.Expected,
			Actual:         o.Verdict.Status,
			Matched:        o.Matched(),
			Reason:         o.Verdict.Reason,
			Warnings:       o.Verdict.Warnings,
			Duration:       o.Duration,
		}
		if r.config.Detailed {
			result.Steps = o.Verdict.Details
		}
		report.Results = append(report.Results, result)
	}

	return report
}

// GenerateReport writes the report in every configured format and returns the files written
func (r *Reporter) GenerateReport(report Report) ([]string, error) {
	var written []string

	for _, format := range r.config.Format {
		switch format {
		case "json":
			path, err := r.generateJSONReport(report)
			if err != nil {
				return written, fmt.Errorf("failed to generate JSON report: %w", err)
			}
			written = append(written, path)
		case "html":
			path, err := r.generateHTMLReport(report)
			if err != nil {
				return written, fmt.Errorf("failed to generate HTML report: %w", err)
			}
			written = append(written, path)
		case "console":
			if _, err := io.WriteString(r.out, RenderConsole(report)); err != nil {
				return written, fmt.Errorf("failed to write console report: %w", err)
			}
		default:
			return written, fmt.Errorf("unsupported report format: %s", format)
		}
	}

	return written, nil
}

func (r *Reporter) reportPath(report Report, ext string) string {
	id := report.SuiteID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("report_%s_%s.%s", report.Timestamp.Format("20060102_150405"), id, ext)
	return filepath.Join(r.config.OutputDir, name)
}

// generateJSONReport generates a JSON format report
func (r *Reporter) generateJSONReport(report Report) (string, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}

	reportPath := r.reportPath(report, "json")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	return reportPath, os.WriteFile(reportPath, data, 0644)
}
