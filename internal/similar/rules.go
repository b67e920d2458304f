// Package similar finds elements resembling a single reference element
// according to a configurable set of matching rules.
package similar

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RuleType names one matching criterion.
type RuleType string

const (
	SameClass         RuleType = "same_class"
	SameUserLabel     RuleType = "same_user_label"
	SameCategory      RuleType = "same_category"
	SameParent        RuleType = "same_parent"
	SameModel         RuleType = "same_model"
	SameCodeValue     RuleType = "same_code_value"
	SameGeometry      RuleType = "same_geometry"
	SameGeometrySize  RuleType = "same_geometry_size"
	SameBBoxHeight    RuleType = "same_bbox_height"
	SameBBoxVolume    RuleType = "same_bbox_volume"
	SameElementAspect RuleType = "same_element_aspect"
)

var knownRules = map[RuleType]bool{
	SameClass: true, SameUserLabel: true, SameCategory: true, SameParent: true,
	SameModel: true, SameCodeValue: true, SameGeometry: true, SameGeometrySize: true,
	SameBBoxHeight: true, SameBBoxVolume: true, SameElementAspect: true,
}

// Operator combines the active rule predicates.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

var (
	ErrInvalidConfig = errors.New("invalid finder configuration")
	ErrInvalidNumber = errors.New("invalid number")
)

// RuleEntry toggles one rule.
type RuleEntry struct {
	Wanted bool     `json:"wanted" yaml:"wanted"`
	Type   RuleType `json:"type" yaml:"type"`
}

// Rule is a flat list of rules joined by a single operator.
type Rule struct {
	ChildRules []RuleEntry `json:"child_rules" yaml:"child_rules"`
	Operator   Operator    `json:"operator" yaml:"operator"`
}

// Config is the finder configuration. It is replaced as a whole.
type Config struct {
	VisibleInViewOnly bool    `json:"visible_in_view_only" yaml:"visible_in_view_only"`
	MaxDistEnabled    bool    `json:"max_dist_enabled" yaml:"max_dist_enabled"`
	MaxDistValue      float64 `json:"max_dist_value" yaml:"max_dist_value"`
	MaxCountEnabled   bool    `json:"max_count_enabled" yaml:"max_count_enabled"`
	MaxCountValue     int     `json:"max_count_value" yaml:"max_count_value"`
	Rule              Rule    `json:"rule" yaml:"rule"`
	EnableAuxData     bool    `json:"enable_aux_data" yaml:"enable_aux_data"`
}

// DefaultConfig returns the initial finder configuration.
func DefaultConfig() Config {
	return Config{
		MaxDistValue:  4.0,
		MaxCountValue: 1000,
		Rule: Rule{
			ChildRules: []RuleEntry{
				{Wanted: false, Type: SameElementAspect},
				{Wanted: true, Type: SameUserLabel},
				{Wanted: false, Type: SameCategory},
				{Wanted: false, Type: SameClass},
				{Wanted: false, Type: SameBBoxHeight},
				{Wanted: true, Type: SameBBoxVolume},
				{Wanted: true, Type: SameModel},
				{Wanted: false, Type: SameParent},
				{Wanted: false, Type: SameGeometry},
				{Wanted: false, Type: SameGeometrySize},
			},
			Operator: And,
		},
	}
}

// Clone deep-copies the rule list.
func (c Config) Clone() Config {
	c.Rule.ChildRules = append([]RuleEntry(nil), c.Rule.ChildRules...)
	return c
}

// Validate checks operator, rule names and numeric ranges.
func (c Config) Validate() error {
	switch Operator(strings.ToUpper(string(c.Rule.Operator))) {
	case And, Or:
	default:
		return fmt.Errorf("%w: operator %q", ErrInvalidConfig, c.Rule.Operator)
	}
	for _, r := range c.Rule.ChildRules {
		if !knownRules[r.Type] {
			return fmt.Errorf("%w: rule %q", ErrInvalidConfig, r.Type)
		}
	}
	if c.MaxDistValue < 0 || math.IsNaN(c.MaxDistValue) || math.IsInf(c.MaxDistValue, 0) {
		return fmt.Errorf("%w: max distance %v", ErrInvalidConfig, c.MaxDistValue)
	}
	if c.MaxCountValue < 1 {
		return fmt.Errorf("%w: max count %d", ErrInvalidConfig, c.MaxCountValue)
	}
	return nil
}

// ValidateNumber parses a user-entered field value. Integers are rounded.
// On failure the last valid value is returned with ErrInvalidNumber.
func ValidateNumber(raw string, isFloat bool, min, max, last float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return last, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	if !isFloat {
		v = math.Round(v)
	}
	if v < min || v > max {
		return last, fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidNumber, v, min, max)
	}
	return v, nil
}
