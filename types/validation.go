package types

import "time"

// Severity grades a validation finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// OverallStatus summarizes a whole validation report.
type OverallStatus string

const (
	ValidationPassed       OverallStatus = "passed"
	ValidationPassedWarn   OverallStatus = "passed_with_warnings"
	ValidationFailed       OverallStatus = "failed"
)

// ValidationResult records the outcome of one rule evaluation.
type ValidationResult struct {
	RuleKind  RuleKind       `json:"rule_kind"`
	Column    string         `json:"column,omitempty"`
	Passed    bool           `json:"passed"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// ValidationReport aggregates every rule outcome for one dataset run.
type ValidationReport struct {
	Results []ValidationResult `json:"results"`
	Overall OverallStatus      `json:"overall"`
}

// BuildReport computes the overall status from individual results.
// Any critical failure fails the report; warning-only failures downgrade
// it to passed_with_warnings.
func BuildReport(results []ValidationResult) ValidationReport {
	overall := ValidationPassed
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Severity == SeverityCritical {
			overall = ValidationFailed
			break
		}
		overall = ValidationPassedWarn
	}
	return ValidationReport{Results: results, Overall: overall}
}

// CriticalFailures counts failed results with critical severity.
func (rep ValidationReport) CriticalFailures() int {
	n := 0
	for _, r := range rep.Results {
		if !r.Passed && r.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// WarningFailures counts failed results with warning severity.
func (rep ValidationReport) WarningFailures() int {
	n := 0
	for _, r := range rep.Results {
		if !r.Passed && r.Severity == SeverityWarning {
			n++
		}
	}
	return n
}
