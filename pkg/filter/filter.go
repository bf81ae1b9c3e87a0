// Package filter defines the metadata filter tree accepted by every
// filtered operation: a comparison leaf or a logical combination of
// sub-filters. Store providers translate the tree into their native
// filter representation.
package filter

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a filter that could not be parsed or validated.
var ErrInvalid = errors.New("invalid filter")

// Comparison operators.
const (
	OpEq    = "=="
	OpNe    = "!="
	OpGt    = ">"
	OpGte   = ">="
	OpLt    = "<"
	OpLte   = "<="
	OpIn    = "in"
	OpNotIn = "not in"
)

// Logic operators.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
	LogicNot = "NOT"
)

var comparisonOps = map[string]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpIn: true, OpNotIn: true,
}

// Node is a filter tree node: either a *Comparison or a *Logic.
type Node interface {
	isNode()
}

// Comparison matches a single field against a value. Dotted field
// paths (meta.category) pass through to the store untouched.
type Comparison struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

func (*Comparison) isNode() {}

// Logic combines sub-filters with AND, OR or NOT.
type Logic struct {
	Operator   string `json:"operator"`
	Conditions []Node `json:"conditions"`
}

func (*Logic) isNode() {}

// Eq builds an equality comparison.
func Eq(field string, value any) *Comparison {
	return &Comparison{Field: field, Operator: OpEq, Value: value}
}

// In builds a membership comparison.
func In(field string, values ...any) *Comparison {
	return &Comparison{Field: field, Operator: OpIn, Value: values}
}

// And combines nodes conjunctively, skipping nils.
func And(nodes ...Node) Node {
	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &Logic{Operator: LogicAnd, Conditions: kept}
	}
}

// Parse converts the JSON filter shape into a filter tree.
//
// Two shapes are accepted:
//
//	{"field": "meta.category", "operator": "==", "value": "user_rule"}
//	{"operator": "AND", "conditions": [ ... ]}
//
// A comparison without an operator defaults to equality.
func Parse(raw map[string]any) (Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if field, ok := raw["field"]; ok {
		return parseComparison(field, raw)
	}

	if op, ok := raw["operator"]; ok {
		if _, ok := raw["conditions"]; ok {
			return parseLogic(op, raw)
		}
	}

	return nil, fmt.Errorf("%w: node needs either field or operator+conditions", ErrInvalid)
}

func parseComparison(field any, raw map[string]any) (Node, error) {
	name, ok := field.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: field must be a non-empty string", ErrInvalid)
	}

	op := OpEq
	if rawOp, ok := raw["operator"]; ok {
		opStr, ok := rawOp.(string)
		if !ok {
			return nil, fmt.Errorf("%w: operator must be a string", ErrInvalid)
		}
		op = opStr
	}
	if !comparisonOps[op] {
		return nil, fmt.Errorf("%w: unknown comparison operator %q", ErrInvalid, op)
	}

	value, ok := raw["value"]
	if !ok {
		return nil, fmt.Errorf("%w: comparison on %q is missing a value", ErrInvalid, name)
	}

	return &Comparison{Field: name, Operator: op, Value: value}, nil
}

func parseLogic(op any, raw map[string]any) (Node, error) {
	opStr, ok := op.(string)
	if !ok {
		return nil, fmt.Errorf("%w: operator must be a string", ErrInvalid)
	}
	switch opStr {
	case LogicAnd, LogicOr, LogicNot:
	default:
		return nil, fmt.Errorf("%w: unknown logic operator %q", ErrInvalid, opStr)
	}

	rawConditions, ok := raw["conditions"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: conditions must be a list", ErrInvalid)
	}
	if len(rawConditions) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one condition", ErrInvalid, opStr)
	}

	conditions := make([]Node, 0, len(rawConditions))
	for i, rawCond := range rawConditions {
		condMap, ok := rawCond.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: condition %d is not an object", ErrInvalid, i)
		}
		node, err := Parse(condMap)
		if err != nil {
			return nil, err
		}
		if node != nil {
			conditions = append(conditions, node)
		}
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("%w: %s resolved to no conditions", ErrInvalid, opStr)
	}

	return &Logic{Operator: opStr, Conditions: conditions}, nil
}
