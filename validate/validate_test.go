package validate

import (
	"testing"
	"time"

	"github.com/stratumhq/sluice/types"
)

func ptr(f float64) *float64 { return &f }

func testFrame(t *testing.T, cols []string, rows []map[string]any) *Frame {
	t.Helper()
	f := NewFrame()
	if err := f.Append(&types.Batch{Index: 0, Columns: cols, Rows: rows}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return f
}

func TestFrameRejectsColumnDrift(t *testing.T) {
	f := NewFrame()
	if err := f.Append(&types.Batch{Columns: []string{"id", "name"}}); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	err := f.Append(&types.Batch{Index: 1, Columns: []string{"id", "email"}})
	if err == nil {
		t.Fatal("Append() with drifted columns succeeded, want error")
	}
}

func TestRulesAreIndependent(t *testing.T) {
	f := testFrame(t, []string{"id", "age"}, []map[string]any{
		{"id": int64(1), "age": int64(30)},
		{"id": int64(1), "age": int64(150)},
	})
	rules := []types.ValidationRule{
		{Kind: types.RulePrimaryKeyUnique, Column: "id"},
		{Kind: types.RuleNumericRange, Column: "age", Min: ptr(0), Max: ptr(120)},
	}
	results := Validate(f, rules, time.Now())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Passed {
			t.Errorf("result[%d] passed, want failure", i)
		}
	}
}

func TestPrimaryKeyUniqueCountsDuplicates(t *testing.T) {
	f := testFrame(t, []string{"id"}, []map[string]any{
		{"id": int64(1)}, {"id": int64(2)}, {"id": int64(2)}, {"id": int64(3)},
	})
	results := Validate(f, []types.ValidationRule{
		{Kind: types.RulePrimaryKeyUnique, Column: "id"},
	}, time.Now())
	r := results[0]
	if r.Passed || r.Severity != types.SeverityCritical {
		t.Fatalf("got passed=%v severity=%v, want critical failure", r.Passed, r.Severity)
	}
	if got := r.Details["duplicates"]; got != int64(1) {
		t.Errorf("duplicates = %v, want 1", got)
	}
}

func TestNumericRangeWarnsWithSamples(t *testing.T) {
	f := testFrame(t, []string{"id", "age"}, []map[string]any{
		{"id": int64(1), "age": int64(34)},
		{"id": int64(2), "age": int64(212)},
		{"id": int64(3), "age": int64(7)},
	})
	results := Validate(f, []types.ValidationRule{
		{Kind: types.RuleNumericRange, Column: "age", Min: ptr(0), Max: ptr(120)},
	}, time.Now())
	r := results[0]
	if r.Passed {
		t.Fatal("rule passed, want warning failure")
	}
	if r.Severity != types.SeverityWarning {
		t.Errorf("severity = %v, want warning", r.Severity)
	}
	samples, ok := r.Details["sample_rows"].([]map[string]any)
	if !ok || len(samples) != 1 {
		t.Fatalf("sample_rows = %v, want one offending row", r.Details["sample_rows"])
	}
	if samples[0]["id"] != int64(2) {
		t.Errorf("offending row id = %v, want 2", samples[0]["id"])
	}
}

func TestNonNullSeverityDependsOnPrimaryKey(t *testing.T) {
	f := testFrame(t, []string{"id", "name"}, []map[string]any{
		{"id": int64(1), "name": nil},
		{"id": nil, "name": "b"},
	})

	warn := Validate(f, []types.ValidationRule{
		{Kind: types.RuleNonNull, Columns: []string{"name"}},
	}, time.Now())[0]
	if warn.Passed || warn.Severity != types.SeverityWarning {
		t.Errorf("non-key nulls: passed=%v severity=%v, want warning failure", warn.Passed, warn.Severity)
	}

	crit := Validate(f, []types.ValidationRule{
		{Kind: types.RuleNonNull, Columns: []string{"id", "name"}, PrimaryKey: "id"},
	}, time.Now())[0]
	if crit.Passed || crit.Severity != types.SeverityCritical {
		t.Errorf("key nulls: passed=%v severity=%v, want critical failure", crit.Passed, crit.Severity)
	}
}

func TestSchemaMatch(t *testing.T) {
	f := testFrame(t, []string{"id", "name", "debug"}, nil)

	missing := Validate(f, []types.ValidationRule{
		{Kind: types.RuleSchemaMatch, Columns: []string{"id", "name", "email"}},
	}, time.Now())[0]
	if missing.Passed || missing.Severity != types.SeverityCritical {
		t.Errorf("missing column: passed=%v severity=%v, want critical failure", missing.Passed, missing.Severity)
	}

	extra := Validate(f, []types.ValidationRule{
		{Kind: types.RuleSchemaMatch, Columns: []string{"id", "name"}},
	}, time.Now())[0]
	if extra.Passed || extra.Severity != types.SeverityWarning {
		t.Errorf("extra column: passed=%v severity=%v, want warning failure", extra.Passed, extra.Severity)
	}
}

func TestDateRange(t *testing.T) {
	f := testFrame(t, []string{"visit_date"}, []map[string]any{
		{"visit_date": "2026-01-15"},
		{"visit_date": "2019-06-01"},
		{"visit_date": nil},
	})
	r := Validate(f, []types.ValidationRule{
		{Kind: types.RuleDateRange, Column: "visit_date", Start: "2026-01-01", End: "2026-01-31"},
	}, time.Now())[0]
	if r.Passed || r.Severity != types.SeverityWarning {
		t.Fatalf("passed=%v severity=%v, want warning failure", r.Passed, r.Severity)
	}
	if got := r.Details["out_of_range"]; got != int64(1) {
		t.Errorf("out_of_range = %v, want 1", got)
	}
}

func TestReferentialKey(t *testing.T) {
	f := testFrame(t, []string{"clinic_id"}, []map[string]any{
		{"clinic_id": "C01"}, {"clinic_id": "C02"}, {"clinic_id": "ZZZ"},
	})
	r := Validate(f, []types.ValidationRule{
		{Kind: types.RuleReferentialKey, Column: "clinic_id", Values: []string{"C01", "C02"}},
	}, time.Now())[0]
	if r.Passed || r.Severity != types.SeverityCritical {
		t.Fatalf("passed=%v severity=%v, want critical failure", r.Passed, r.Severity)
	}
}

func TestRowCountBounds(t *testing.T) {
	f := testFrame(t, []string{"id"}, []map[string]any{{"id": int64(1)}})
	r := Validate(f, []types.ValidationRule{
		{Kind: types.RuleRowCountBounds, MinRows: 10},
	}, time.Now())[0]
	if r.Passed || r.Severity != types.SeverityCritical {
		t.Fatalf("passed=%v severity=%v, want critical failure", r.Passed, r.Severity)
	}
}

func TestBuildReportAggregation(t *testing.T) {
	now := time.Now()
	warnOnly := types.BuildReport([]types.ValidationResult{
		{Passed: true, Severity: types.SeverityInfo, CheckedAt: now},
		{Passed: false, Severity: types.SeverityWarning, CheckedAt: now},
	})
	if warnOnly.Overall != types.ValidationPassedWarn {
		t.Errorf("overall = %v, want passed_with_warnings", warnOnly.Overall)
	}

	withCritical := types.BuildReport([]types.ValidationResult{
		{Passed: false, Severity: types.SeverityWarning, CheckedAt: now},
		{Passed: false, Severity: types.SeverityCritical, CheckedAt: now},
	})
	if withCritical.Overall != types.ValidationFailed {
		t.Errorf("overall = %v, want failed", withCritical.Overall)
	}
}
