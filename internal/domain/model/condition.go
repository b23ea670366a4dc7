package model

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

type (
	Operator string
	Mode     string
)

const (
	OpEq    Operator = "="
	OpNotEq Operator = "!="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpIn    Operator = "in"

	ModeAnd Mode = "AND"
	ModeOr  Mode = "OR"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is a node of a condition tree. Leaves are *Condition values and
// inner nodes are *ConditionGroup values.
type Filter interface {
	IsComposite() bool
	Children() []Filter
	Operator() Operator
	Mode() Mode
	Field() string
	Value() any
}

// Condition compares a single column against a value.
type Condition struct {
	field string
	op    Operator
	value any
}

// ConditionGroup combines its filters with AND or OR. It is never empty.
type ConditionGroup struct {
	mode    Mode
	filters []Filter
}

func ParseOperator(s string) (Operator, error) {
	switch op := Operator(strings.ToLower(strings.TrimSpace(s))); op {
	case OpEq, OpNotEq, OpLt, OpLte, OpGt, OpGte, OpIn:
		return op, nil
	case "==":
		return OpEq, nil
	case "<>":
		return OpNotEq, nil
	}

	return "", newValidationError("op", fmt.Sprintf("unsupported operator %q", s), codeInvalidOp)
}

func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToUpper(strings.TrimSpace(s))); mode {
	case ModeAnd, ModeOr:
		return mode, nil
	}

	return "", newValidationError("mode", fmt.Sprintf("unsupported group mode %q", s), codeInvalidMode)
}

func ValidateIdentifier(field, name string) error {
	if !identifierPattern.MatchString(name) {
		return newValidationError(field, fmt.Sprintf("invalid identifier %q", name), codeInvalidField)
	}

	return nil
}

// NewCondition validates and builds a leaf filter. The "in" operator takes any
// non-empty slice, every other operator takes a scalar.
func NewCondition(field string, op Operator, value any) (*Condition, error) {
	if err := ValidateIdentifier("field", field); err != nil {
		return nil, err
	}

	if _, err := ParseOperator(string(op)); err != nil {
		return nil, err
	}

	values, isList := asList(value)

	if op == OpIn {
		if !isList {
			return nil, newValidationError(field, "operator in requires a list value", codeInvalidValue)
		}

		if len(values) == 0 {
			return nil, newValidationError(field, "operator in requires a non-empty list", codeInvalidValue)
		}

		return &Condition{field: field, op: op, value: values}, nil
	}

	if isList {
		return nil, newValidationError(field, fmt.Sprintf("operator %s requires a scalar value", op), codeInvalidValue)
	}

	return &Condition{field: field, op: op, value: value}, nil
}

func Eq(field string, value any) (*Condition, error) { return NewCondition(field, OpEq, value) }
func Gt(field string, value any) (*Condition, error) { return NewCondition(field, OpGt, value) }
func Lt(field string, value any) (*Condition, error) { return NewCondition(field, OpLt, value) }
func In(field string, values ...any) (*Condition, error) {
	return NewCondition(field, OpIn, values)
}

func (c *Condition) IsComposite() bool  { return false }
func (c *Condition) Children() []Filter { return nil }
func (c *Condition) Operator() Operator { return c.op }
func (c *Condition) Mode() Mode         { return "" }
func (c *Condition) Field() string      { return c.field }
func (c *Condition) Value() any         { return c.value }

// Values returns the operand list of an "in" condition, or the single scalar
// wrapped in a slice for any other operator.
func (c *Condition) Values() []any {
	if values, ok := c.value.([]any); ok {
		return values
	}

	return []any{c.value}
}

func NewConditionGroup(mode Mode, filters ...Filter) (*ConditionGroup, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	if len(filters) == 0 {
		return nil, newValidationError("filters", "condition group requires at least one filter", codeEmptyFilters)
	}

	for index, f := range filters {
		if isNilFilter(f) {
			return nil, newValidationError(fmt.Sprintf("filters[%d]", index), "filter is required", codeRequired)
		}
	}

	return &ConditionGroup{mode: mode, filters: append([]Filter(nil), filters...)}, nil
}

func And(filters ...Filter) (*ConditionGroup, error) { return NewConditionGroup(ModeAnd, filters...) }
func Or(filters ...Filter) (*ConditionGroup, error)  { return NewConditionGroup(ModeOr, filters...) }

func (g *ConditionGroup) IsComposite() bool  { return true }
func (g *ConditionGroup) Children() []Filter { return g.filters }
func (g *ConditionGroup) Operator() Operator { return "" }
func (g *ConditionGroup) Mode() Mode         { return g.mode }
func (g *ConditionGroup) Field() string      { return "" }
func (g *ConditionGroup) Value() any         { return nil }

func isNilFilter(f Filter) bool {
	if f == nil {
		return true
	}

	v := reflect.ValueOf(f)

	return v.Kind() == reflect.Pointer && v.IsNil()
}

// asList reports whether value is a list operand. Byte slices are scalars.
func asList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}

	switch v := value.(type) {
	case []any:
		return v, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	values := make([]any, rv.Len())
	for i := range rv.Len() {
		values[i] = rv.Index(i).Interface()
	}

	return values, true
}
