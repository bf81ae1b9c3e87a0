package databases

import (
	"fmt"
	"math"

	"github.com/qdrant/go-client/qdrant"

	"github.com/Dhana009/haystack/pkg/filter"
)

// clauses collects translated conditions before they are folded into a
// qdrant.Filter. Keeping the three arrays separate lets AND merge
// children and NOT swap polarity without re-walking the tree.
type clauses struct {
	must    []*qdrant.Condition
	mustNot []*qdrant.Condition
	should  []*qdrant.Condition
}

func (c clauses) empty() bool {
	return len(c.must) == 0 && len(c.mustNot) == 0 && len(c.should) == 0
}

func (c clauses) merge(other clauses) clauses {
	return clauses{
		must:    append(c.must, other.must...),
		mustNot: append(c.mustNot, other.mustNot...),
		should:  append(c.should, other.should...),
	}
}

// toFilter folds the clause sets into a native filter.
func (c clauses) toFilter() *qdrant.Filter {
	if c.empty() {
		return nil
	}
	return &qdrant.Filter{
		Must:    c.must,
		MustNot: c.mustNot,
		Should:  c.should,
	}
}

// toCondition wraps the clause sets as a single nested condition, used
// for OR branches.
func (c clauses) toCondition() *qdrant.Condition {
	if len(c.must) == 1 && len(c.mustNot) == 0 && len(c.should) == 0 {
		return c.must[0]
	}
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Filter{
			Filter: c.toFilter(),
		},
	}
}

// TranslateFilter converts a filter tree into the store-native filter:
// equality lands in must, inequality in must_not, ranges in must,
// membership in match-any; AND merges child clause sets, OR produces
// should, NOT swaps must and must_not. A nil tree yields a nil filter.
func TranslateFilter(node filter.Node) (*qdrant.Filter, error) {
	if node == nil {
		return nil, nil
	}
	c, err := translateNode(node)
	if err != nil {
		return nil, err
	}
	return c.toFilter(), nil
}

func translateNode(node filter.Node) (clauses, error) {
	switch n := node.(type) {
	case *filter.Comparison:
		return translateComparison(n)
	case *filter.Logic:
		return translateLogic(n)
	default:
		return clauses{}, fmt.Errorf("%w: unsupported filter node %T", filter.ErrInvalid, node)
	}
}

func translateComparison(n *filter.Comparison) (clauses, error) {
	switch n.Operator {
	case filter.OpEq:
		cond, err := matchCondition(n.Field, n.Value)
		if err != nil {
			return clauses{}, err
		}
		return clauses{must: []*qdrant.Condition{cond}}, nil

	case filter.OpNe:
		cond, err := matchCondition(n.Field, n.Value)
		if err != nil {
			return clauses{}, err
		}
		return clauses{mustNot: []*qdrant.Condition{cond}}, nil

	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		cond, err := rangeCondition(n.Field, n.Operator, n.Value)
		if err != nil {
			return clauses{}, err
		}
		return clauses{must: []*qdrant.Condition{cond}}, nil

	case filter.OpIn:
		cond, err := matchAnyCondition(n.Field, n.Value)
		if err != nil {
			return clauses{}, err
		}
		return clauses{must: []*qdrant.Condition{cond}}, nil

	case filter.OpNotIn:
		cond, err := matchAnyCondition(n.Field, n.Value)
		if err != nil {
			return clauses{}, err
		}
		return clauses{mustNot: []*qdrant.Condition{cond}}, nil

	default:
		return clauses{}, fmt.Errorf("%w: unsupported comparison operator %q", filter.ErrInvalid, n.Operator)
	}
}

func translateLogic(n *filter.Logic) (clauses, error) {
	switch n.Operator {
	case filter.LogicAnd:
		var merged clauses
		for _, cond := range n.Conditions {
			c, err := translateNode(cond)
			if err != nil {
				return clauses{}, err
			}
			merged = merged.merge(c)
		}
		return merged, nil

	case filter.LogicOr:
		var should []*qdrant.Condition
		for _, cond := range n.Conditions {
			c, err := translateNode(cond)
			if err != nil {
				return clauses{}, err
			}
			if c.empty() {
				continue
			}
			should = append(should, c.toCondition())
		}
		return clauses{should: should}, nil

	case filter.LogicNot:
		var merged clauses
		for _, cond := range n.Conditions {
			c, err := translateNode(cond)
			if err != nil {
				return clauses{}, err
			}
			merged = merged.merge(c)
		}
		// Swap polarity. A should under NOT means "none of these",
		// which is must_not.
		return clauses{
			must:    merged.mustNot,
			mustNot: append(merged.must, merged.should...),
		}, nil

	default:
		return clauses{}, fmt.Errorf("%w: unsupported logic operator %q", filter.ErrInvalid, n.Operator)
	}
}

func fieldCondition(field *qdrant.FieldCondition) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{Field: field},
	}
}

// matchCondition builds an exact match, typed by the value: strings
// match as keywords, bools and integers as their native match kinds.
// A fractional float has no native match and becomes a closed range.
func matchCondition(key string, value any) (*qdrant.Condition, error) {
	switch v := value.(type) {
	case string:
		return fieldCondition(&qdrant.FieldCondition{
			Key: key,
			Match: &qdrant.Match{
				MatchValue: &qdrant.Match_Keyword{Keyword: v},
			},
		}), nil
	case bool:
		return fieldCondition(&qdrant.FieldCondition{
			Key: key,
			Match: &qdrant.Match{
				MatchValue: &qdrant.Match_Boolean{Boolean: v},
			},
		}), nil
	case int:
		return integerMatch(key, int64(v)), nil
	case int32:
		return integerMatch(key, int64(v)), nil
	case int64:
		return integerMatch(key, v), nil
	case float32:
		return matchCondition(key, float64(v))
	case float64:
		if v == math.Trunc(v) {
			return integerMatch(key, int64(v)), nil
		}
		return fieldCondition(&qdrant.FieldCondition{
			Key:   key,
			Range: &qdrant.Range{Gte: &v, Lte: &v},
		}), nil
	default:
		return nil, fmt.Errorf("%w: cannot match value of type %T on field %q", filter.ErrInvalid, value, key)
	}
}

func integerMatch(key string, v int64) *qdrant.Condition {
	return fieldCondition(&qdrant.FieldCondition{
		Key: key,
		Match: &qdrant.Match{
			MatchValue: &qdrant.Match_Integer{Integer: v},
		},
	})
}

// matchAnyCondition builds a membership match. The member list must be
// homogeneous: all strings or all integers.
func matchAnyCondition(key string, value any) (*qdrant.Condition, error) {
	members, ok := anySlice(value)
	if !ok || len(members) == 0 {
		return nil, fmt.Errorf("%w: membership on %q needs a non-empty list", filter.ErrInvalid, key)
	}

	if s, ok := stringMembers(members); ok {
		return fieldCondition(&qdrant.FieldCondition{
			Key: key,
			Match: &qdrant.Match{
				MatchValue: &qdrant.Match_Keywords{
					Keywords: &qdrant.RepeatedStrings{Strings: s},
				},
			},
		}), nil
	}

	if ints, ok := integerMembers(members); ok {
		return fieldCondition(&qdrant.FieldCondition{
			Key: key,
			Match: &qdrant.Match{
				MatchValue: &qdrant.Match_Integers{
					Integers: &qdrant.RepeatedIntegers{Integers: ints},
				},
			},
		}), nil
	}

	return nil, fmt.Errorf("%w: membership on %q needs all-string or all-integer members", filter.ErrInvalid, key)
}

func anySlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func stringMembers(members []any) ([]string, bool) {
	out := make([]string, len(members))
	for i, m := range members {
		s, ok := m.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func integerMembers(members []any) ([]int64, bool) {
	out := make([]int64, len(members))
	for i, m := range members {
		switch v := m.(type) {
		case int:
			out[i] = int64(v)
		case int32:
			out[i] = int64(v)
		case int64:
			out[i] = v
		case float64:
			if v != math.Trunc(v) {
				return nil, false
			}
			out[i] = int64(v)
		default:
			return nil, false
		}
	}
	return out, true
}

// rangeCondition builds a numeric range for >, >=, <, <=.
func rangeCondition(key, operator string, value any) (*qdrant.Condition, error) {
	num, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: range on %q needs a numeric value, got %T", filter.ErrInvalid, key, value)
	}

	r := &qdrant.Range{}
	switch operator {
	case filter.OpGt:
		r.Gt = &num
	case filter.OpGte:
		r.Gte = &num
	case filter.OpLt:
		r.Lt = &num
	case filter.OpLte:
		r.Lte = &num
	}

	return fieldCondition(&qdrant.FieldCondition{Key: key, Range: r}), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
