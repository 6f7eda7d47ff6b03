package validate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/stratumhq/sluice/types"
)

const sampleRowLimit = 3

// Validate evaluates every rule against the frame. Rules are independent:
// a failed rule never short-circuits the rest. The caller aggregates
// results with types.BuildReport.
func Validate(f *Frame, rules []types.ValidationRule, now time.Time) []types.ValidationResult {
	results := make([]types.ValidationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, evaluate(f, rule, now))
	}
	return results
}

func evaluate(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	switch rule.Kind {
	case types.RuleSchemaMatch:
		return checkSchemaMatch(f, rule, now)
	case types.RulePrimaryKeyUnique:
		return checkPrimaryKeyUnique(f, rule, now)
	case types.RuleNonNull:
		return checkNonNull(f, rule, now)
	case types.RuleRowCountBounds:
		return checkRowCountBounds(f, rule, now)
	case types.RuleDateRange:
		return checkDateRange(f, rule, now)
	case types.RuleNumericRange:
		return checkNumericRange(f, rule, now)
	case types.RuleReferentialKey:
		return checkReferentialKey(f, rule, now)
	default:
		return types.ValidationResult{
			RuleKind:  rule.Kind,
			Passed:    false,
			Severity:  types.SeverityCritical,
			Message:   fmt.Sprintf("unknown rule kind %q", rule.Kind),
			CheckedAt: now,
		}
	}
}

func pass(rule types.ValidationRule, now time.Time, msg string) types.ValidationResult {
	return types.ValidationResult{
		RuleKind:  rule.Kind,
		Column:    rule.Column,
		Passed:    true,
		Severity:  types.SeverityInfo,
		Message:   msg,
		CheckedAt: now,
	}
}

func fail(rule types.ValidationRule, now time.Time, sev types.Severity, msg string, details map[string]any) types.ValidationResult {
	return types.ValidationResult{
		RuleKind:  rule.Kind,
		Column:    rule.Column,
		Passed:    false,
		Severity:  sev,
		Message:   msg,
		Details:   details,
		CheckedAt: now,
	}
}

func checkSchemaMatch(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	expected := make(map[string]struct{}, len(rule.Columns))
	for _, c := range rule.Columns {
		expected[c] = struct{}{}
	}
	var missing, extra []string
	for _, c := range rule.Columns {
		if !f.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	for _, c := range f.Columns() {
		if _, ok := expected[c]; !ok {
			extra = append(extra, c)
		}
	}
	switch {
	case len(missing) > 0:
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("%d expected column(s) missing", len(missing)),
			map[string]any{"missing": missing, "extra": extra})
	case len(extra) > 0:
		return fail(rule, now, types.SeverityWarning,
			fmt.Sprintf("%d unexpected column(s) present", len(extra)),
			map[string]any{"extra": extra})
	default:
		return pass(rule, now, "schema matches expected columns")
	}
}

func checkPrimaryKeyUnique(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	if !f.HasColumn(rule.Column) {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("column %q not present", rule.Column), nil)
	}
	distinct := make(map[string]struct{})
	var nonNull int64
	for _, row := range f.Rows() {
		v := row[rule.Column]
		if isNull(v) {
			continue
		}
		nonNull++
		distinct[valueKey(v)] = struct{}{}
	}
	dupes := nonNull - int64(len(distinct))
	if dupes > 0 {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("%d duplicate value(s) in %q", dupes, rule.Column),
			map[string]any{"duplicates": dupes})
	}
	return pass(rule, now, fmt.Sprintf("all values in %q are unique", rule.Column))
}

func checkNonNull(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	nullCounts := map[string]int64{}
	keyViolated := false
	for _, col := range rule.Columns {
		if !f.HasColumn(col) {
			continue
		}
		var n int64
		for _, row := range f.Rows() {
			if isNull(row[col]) {
				n++
			}
		}
		if n > 0 {
			nullCounts[col] = n
			if col == rule.PrimaryKey {
				keyViolated = true
			}
		}
	}
	if len(nullCounts) == 0 {
		return pass(rule, now, "no nulls in checked columns")
	}
	sev := types.SeverityWarning
	if keyViolated {
		sev = types.SeverityCritical
	}
	return fail(rule, now, sev,
		fmt.Sprintf("%d column(s) contain nulls", len(nullCounts)),
		map[string]any{"null_counts": nullCounts})
}

func checkRowCountBounds(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	n := f.RowCount()
	details := map[string]any{"row_count": n}
	if n < rule.MinRows {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("row count %d below minimum %d", n, rule.MinRows), details)
	}
	if rule.MaxRows > 0 && n > rule.MaxRows {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("row count %d above maximum %d", n, rule.MaxRows), details)
	}
	return pass(rule, now, fmt.Sprintf("row count %d within bounds", n))
}

func checkDateRange(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	if !f.HasColumn(rule.Column) {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("column %q not present", rule.Column), nil)
	}
	var lo, hi time.Time
	var haveLo, haveHi bool
	if rule.Start != "" {
		t, ok := asTime(rule.Start)
		if !ok {
			return fail(rule, now, types.SeverityCritical,
				fmt.Sprintf("unparseable range start %q", rule.Start), nil)
		}
		lo, haveLo = t, true
	}
	if rule.End != "" {
		t, ok := asTime(rule.End)
		if !ok {
			return fail(rule, now, types.SeverityCritical,
				fmt.Sprintf("unparseable range end %q", rule.End), nil)
		}
		hi, haveHi = t, true
	}
	var outOfRange, unparseable int64
	for _, row := range f.Rows() {
		v := row[rule.Column]
		if isNull(v) {
			continue
		}
		t, ok := asTimeValue(v)
		if !ok {
			unparseable++
			continue
		}
		if (haveLo && t.Before(lo)) || (haveHi && t.After(hi)) {
			outOfRange++
		}
	}
	if outOfRange == 0 && unparseable == 0 {
		return pass(rule, now, fmt.Sprintf("all %q values within range", rule.Column))
	}
	return fail(rule, now, types.SeverityWarning,
		fmt.Sprintf("%d value(s) in %q outside range", outOfRange+unparseable, rule.Column),
		map[string]any{"out_of_range": outOfRange, "unparseable": unparseable})
}

func checkNumericRange(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	if !f.HasColumn(rule.Column) {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("column %q not present", rule.Column), nil)
	}
	var offending int64
	var samples []map[string]any
	for _, row := range f.Rows() {
		v := row[rule.Column]
		if isNull(v) {
			continue
		}
		x, ok := asFloat(v)
		if !ok {
			continue
		}
		if (rule.Min != nil && x < *rule.Min) || (rule.Max != nil && x > *rule.Max) {
			offending++
			if len(samples) < sampleRowLimit {
				samples = append(samples, row)
			}
		}
	}
	if offending == 0 {
		return pass(rule, now, fmt.Sprintf("all %q values within range", rule.Column))
	}
	return fail(rule, now, types.SeverityWarning,
		fmt.Sprintf("%d value(s) in %q outside numeric range", offending, rule.Column),
		map[string]any{"out_of_range": offending, "sample_rows": samples})
}

func checkReferentialKey(f *Frame, rule types.ValidationRule, now time.Time) types.ValidationResult {
	if !f.HasColumn(rule.Column) {
		return fail(rule, now, types.SeverityCritical,
			fmt.Sprintf("column %q not present", rule.Column), nil)
	}
	allowed := make(map[string]struct{}, len(rule.Values))
	for _, v := range rule.Values {
		allowed[v] = struct{}{}
	}
	invalid := map[string]int64{}
	for _, row := range f.Rows() {
		v := row[rule.Column]
		if isNull(v) {
			continue
		}
		key := valueKey(v)
		if _, ok := allowed[key]; !ok {
			invalid[key]++
		}
	}
	if len(invalid) == 0 {
		return pass(rule, now, fmt.Sprintf("all %q values reference known keys", rule.Column))
	}
	return fail(rule, now, types.SeverityCritical,
		fmt.Sprintf("%d distinct unknown value(s) in %q", len(invalid), rule.Column),
		map[string]any{"invalid_values": invalid})
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asTimeValue(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return asTime(x)
	default:
		return time.Time{}, false
	}
}

func valueKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}
