package types

import "fmt"

// RuleKind discriminates the closed set of validation rule variants.
type RuleKind string

const (
	RuleSchemaMatch      RuleKind = "schema_match"
	RulePrimaryKeyUnique RuleKind = "primary_key_unique"
	RuleNonNull          RuleKind = "non_null"
	RuleRowCountBounds   RuleKind = "row_count_bounds"
	RuleDateRange        RuleKind = "date_range"
	RuleNumericRange     RuleKind = "numeric_range"
	RuleReferentialKey   RuleKind = "referential_key"
)

// ValidationRule is a declarative check applied to an extracted dataset.
// Kind selects the variant; the remaining fields parameterize it and only
// a subset is meaningful for any given kind.
type ValidationRule struct {
	Kind RuleKind `yaml:"kind" json:"kind"`

	// SchemaMatch, NonNull: columns the rule applies to.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// PrimaryKeyUnique, DateRange, NumericRange, ReferentialKey: single
	// target column.
	Column string `yaml:"column,omitempty" json:"column,omitempty"`

	// NonNull: column treated as the primary key, nulls there are critical.
	PrimaryKey string `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`

	// RowCountBounds.
	MinRows int64 `yaml:"min_rows,omitempty" json:"min_rows,omitempty"`
	MaxRows int64 `yaml:"max_rows,omitempty" json:"max_rows,omitempty"`

	// DateRange, inclusive RFC 3339 or date-only bounds. Empty means open.
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`

	// NumericRange, inclusive.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// ReferentialKey: the allowed value set.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// Validate checks that the rule is well formed for its kind.
func (r ValidationRule) Validate() error {
	switch r.Kind {
	case RuleSchemaMatch:
		if len(r.Columns) == 0 {
			return fmt.Errorf("schema_match rule requires columns")
		}
	case RulePrimaryKeyUnique:
		if r.Column == "" {
			return fmt.Errorf("primary_key_unique rule requires column")
		}
	case RuleNonNull:
		if len(r.Columns) == 0 {
			return fmt.Errorf("non_null rule requires columns")
		}
	case RuleRowCountBounds:
		if r.MinRows < 0 || (r.MaxRows > 0 && r.MaxRows < r.MinRows) {
			return fmt.Errorf("row_count_bounds rule has inverted bounds")
		}
	case RuleDateRange:
		if r.Column == "" {
			return fmt.Errorf("date_range rule requires column")
		}
	case RuleNumericRange:
		if r.Column == "" {
			return fmt.Errorf("numeric_range rule requires column")
		}
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("numeric_range rule requires min or max")
		}
	case RuleReferentialKey:
		if r.Column == "" || len(r.Values) == 0 {
			return fmt.Errorf("referential_key rule requires column and values")
		}
	default:
		return fmt.Errorf("unknown rule kind: %q", r.Kind)
	}
	return nil
}
