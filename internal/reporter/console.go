package reporter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"api-path-tester/internal/types"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle     = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// RenderConsole formats a terminal summary: one line per scenario followed by totals
func RenderConsole(report Report) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("API PATH TEST REPORT"))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("suite %s    %s", report.SuiteID, report.Duration)))
	sb.WriteString("\n\n")

	for _, result := range report.Results {
		icon := successStyle.Render("✓")
		if !result.Matched {
			icon = errorStyle.Render("✗")
		}

		status := successStyle.Render(string(result.Actual))
		if result.Actual != result.Expected {
			status = errorStyle.Render(fmt.Sprintf("%s (expected %s)", result.Actual, result.Expected))
		} else if result.Actual != types.StatusPassed {
			status = warningStyle.Render(string(result.Actual))
		}

		fmt.Fprintf(&sb, "%s %s  %s\n", icon, result.Description, status)
		if result.Reason != "" {
			sb.WriteString("    ")
			sb.WriteString(mutedStyle.Render(result.Reason))
			sb.WriteString("\n")
		}
	}

	summary := fmt.Sprintf("Scenarios: %d    Passed: %s    Failed: %s    Unexpected: %s",
		report.TotalScenarios,
		successStyle.Render(fmt.Sprint(report.PassedScenarios)),
		warningStyle.Render(fmt.Sprint(report.FailedScenarios)),
		mismatchStyle(report.Mismatched).Render(fmt.Sprint(report.Mismatched)),
	)
	if report.CoincidentallyValid > 0 {
		summary += mutedStyle.Render(fmt.Sprintf("  (%d random permutations were valid orders)", report.CoincidentallyValid))
	}
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(summary))
	sb.WriteString("\n")

	return sb.String()
}

func mismatchStyle(n int) lipgloss.Style {
	if n == 0 {
		return successStyle
	}
	return errorStyle
}
