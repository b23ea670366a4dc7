package datasources

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

type (
	// conditionClause renders one leaf with "?" placeholders. The statement
	// builder's placeholder format rewrites them for the target driver, so
	// numbering is assigned once over the whole statement.
	conditionClause struct {
		condition *model.Condition
	}

	// groupClause parenthesizes each rendered child and joins them with the
	// group's mode.
	groupClause struct {
		mode     model.Mode
		children []sq.Sqlizer
	}
)

// BuildWhere translates a filter tree into a squirrel predicate. A nil filter
// yields a nil predicate.
func BuildWhere(filter model.Filter) (sq.Sqlizer, error) {
	if filter == nil {
		return nil, nil
	}

	if !filter.IsComposite() {
		condition, ok := filter.(*model.Condition)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported filter node %T", model.ErrInvalidSpec, filter)
		}

		return conditionClause{condition: condition}, nil
	}

	children := filter.Children()
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: condition group requires at least one filter", model.ErrInvalidSpec)
	}

	group := groupClause{mode: filter.Mode(), children: make([]sq.Sqlizer, 0, len(children))}

	for _, child := range children {
		clause, err := BuildWhere(child)
		if err != nil {
			return nil, err
		}

		group.children = append(group.children, clause)
	}

	return group, nil
}

// RenderWhere renders a filter on its own using the given placeholder format.
func RenderWhere(filter model.Filter, format sq.PlaceholderFormat) (string, []any, error) {
	clause, err := BuildWhere(filter)
	if err != nil {
		return "", nil, err
	}

	if clause == nil {
		return "", nil, nil
	}

	query, args, err := clause.ToSql()
	if err != nil {
		return "", nil, err
	}

	query, err = format.ReplacePlaceholders(query)
	if err != nil {
		return "", nil, fmt.Errorf("failed to replace placeholders: %w", err)
	}

	return query, args, nil
}

func (c conditionClause) ToSql() (string, []any, error) {
	field := c.condition.Field()

	switch op := c.condition.Operator(); op {
	case model.OpIn:
		values := c.condition.Values()

		return fmt.Sprintf("%s IN (%s)", field, sq.Placeholders(len(values))), values, nil

	case model.OpEq, model.OpNotEq:
		if c.condition.Value() == nil {
			if op == model.OpEq {
				return field + " IS NULL", nil, nil
			}

			return field + " IS NOT NULL", nil, nil
		}

		return fmt.Sprintf("%s %s ?", field, op), []any{c.condition.Value()}, nil

	case model.OpLt, model.OpLte, model.OpGt, model.OpGte:
		return fmt.Sprintf("%s %s ?", field, op), []any{c.condition.Value()}, nil

	default:
		return "", nil, fmt.Errorf("%w: unsupported operator %q", model.ErrInvalidSpec, op)
	}
}

func (g groupClause) ToSql() (string, []any, error) {
	var joiner string

	switch g.mode {
	case model.ModeAnd:
		joiner = " AND "
	case model.ModeOr:
		joiner = " OR "
	default:
		return "", nil, fmt.Errorf("%w: unsupported group mode %q", model.ErrInvalidSpec, g.mode)
	}

	parts := make([]string, 0, len(g.children))
	args := make([]any, 0, len(g.children))

	for _, child := range g.children {
		query, childArgs, err := child.ToSql()
		if err != nil {
			return "", nil, err
		}

		parts = append(parts, "("+query+")")
		args = append(args, childArgs...)
	}

	return strings.Join(parts, joiner), args, nil
}
