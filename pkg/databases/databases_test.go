package databases

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/schema"
)

func TestTranslateFilterNil(t *testing.T) {
	f, err := TranslateFilter(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != nil {
		t.Errorf("nil node should translate to nil filter, got %+v", f)
	}
}

func TestTranslateEquality(t *testing.T) {
	f, err := TranslateFilter(filter.Eq("meta.category", "user_rule"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 1 || len(f.MustNot) != 0 || len(f.Should) != 0 {
		t.Fatalf("expected single must condition, got %+v", f)
	}

	field := f.Must[0].GetField()
	if field.GetKey() != "meta.category" {
		t.Errorf("unexpected key %q", field.GetKey())
	}
	if field.GetMatch().GetKeyword() != "user_rule" {
		t.Errorf("unexpected keyword %q", field.GetMatch().GetKeyword())
	}
}

func TestTranslateTypedMatches(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicAnd,
		Conditions: []filter.Node{
			filter.Eq("meta.is_chunk", true),
			filter.Eq("meta.chunk_index", 3),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 2 {
		t.Fatalf("expected 2 must conditions, got %d", len(f.Must))
	}
	if !f.Must[0].GetField().GetMatch().GetBoolean() {
		t.Errorf("expected boolean match")
	}
	if f.Must[1].GetField().GetMatch().GetInteger() != 3 {
		t.Errorf("expected integer match of 3")
	}
}

func TestTranslateInequality(t *testing.T) {
	f, err := TranslateFilter(&filter.Comparison{
		Field: "meta.status", Operator: filter.OpNe, Value: "deprecated",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 0 || len(f.MustNot) != 1 {
		t.Fatalf("inequality should land in must_not, got %+v", f)
	}
	if f.MustNot[0].GetField().GetMatch().GetKeyword() != "deprecated" {
		t.Errorf("unexpected must_not condition")
	}
}

func TestTranslateRange(t *testing.T) {
	f, err := TranslateFilter(&filter.Comparison{
		Field: "meta.total_chunks", Operator: filter.OpGte, Value: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := f.Must[0].GetField().GetRange()
	if r == nil || r.GetGte() != 5 {
		t.Fatalf("expected gte range of 5, got %+v", r)
	}
}

func TestTranslateFractionalEquality(t *testing.T) {
	f, err := TranslateFilter(filter.Eq("score", 2.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := f.Must[0].GetField().GetRange()
	if r == nil || r.GetGte() != 2.5 || r.GetLte() != 2.5 {
		t.Fatalf("fractional equality should become a closed range, got %+v", r)
	}
}

func TestTranslateMembership(t *testing.T) {
	f, err := TranslateFilter(filter.In("meta.category", "user_rule", "project_rule"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keywords := f.Must[0].GetField().GetMatch().GetKeywords()
	if keywords == nil || len(keywords.Strings) != 2 {
		t.Fatalf("expected keywords match, got %+v", f.Must[0])
	}

	notIn, err := TranslateFilter(&filter.Comparison{
		Field: "meta.status", Operator: filter.OpNotIn, Value: []any{"draft", "deprecated"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notIn.MustNot) != 1 {
		t.Fatalf("not-in should land in must_not, got %+v", notIn)
	}
}

func TestTranslateIntegerMembership(t *testing.T) {
	f, err := TranslateFilter(&filter.Comparison{
		Field: "meta.chunk_index", Operator: filter.OpIn, Value: []any{0, 1, float64(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ints := f.Must[0].GetField().GetMatch().GetIntegers()
	if ints == nil || !reflect.DeepEqual(ints.Integers, []int64{0, 1, 2}) {
		t.Fatalf("expected integer membership, got %+v", f.Must[0])
	}
}

func TestTranslateAndMerges(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicAnd,
		Conditions: []filter.Node{
			filter.Eq("meta.category", "user_rule"),
			&filter.Comparison{Field: "meta.status", Operator: filter.OpNe, Value: "deprecated"},
			&filter.Comparison{Field: "meta.chunk_index", Operator: filter.OpLt, Value: 10},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 2 {
		t.Errorf("expected 2 must conditions (match + range), got %d", len(f.Must))
	}
	if len(f.MustNot) != 1 {
		t.Errorf("expected 1 must_not condition, got %d", len(f.MustNot))
	}
}

func TestTranslateOrProducesShould(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicOr,
		Conditions: []filter.Node{
			filter.Eq("meta.category", "user_rule"),
			filter.Eq("meta.category", "project_rule"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Should) != 2 || len(f.Must) != 0 || len(f.MustNot) != 0 {
		t.Fatalf("OR should produce should-only clauses, got %+v", f)
	}
	// Single comparisons stay flat instead of nesting one-element filters.
	if f.Should[0].GetField() == nil {
		t.Errorf("expected flat field condition in should, got %+v", f.Should[0])
	}
}

func TestTranslateOrNestsCompoundBranches(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicOr,
		Conditions: []filter.Node{
			&filter.Logic{
				Operator: filter.LogicAnd,
				Conditions: []filter.Node{
					filter.Eq("meta.category", "user_rule"),
					filter.Eq("meta.status", "active"),
				},
			},
			filter.Eq("meta.category", "project_rule"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Should) != 2 {
		t.Fatalf("expected 2 should branches, got %d", len(f.Should))
	}
	nested := f.Should[0].GetFilter()
	if nested == nil || len(nested.Must) != 2 {
		t.Errorf("compound OR branch should nest a filter, got %+v", f.Should[0])
	}
}

func TestTranslateNotFlipsPolarity(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator:   filter.LogicNot,
		Conditions: []filter.Node{filter.Eq("meta.status", "deprecated")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 0 || len(f.MustNot) != 1 {
		t.Fatalf("NOT of equality should be must_not, got %+v", f)
	}
}

func TestTranslateDoubleNegation(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicNot,
		Conditions: []filter.Node{
			&filter.Logic{
				Operator:   filter.LogicNot,
				Conditions: []filter.Node{filter.Eq("meta.status", "active")},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Must) != 1 || len(f.MustNot) != 0 {
		t.Fatalf("double negation should restore must, got %+v", f)
	}
	if f.Must[0].GetField().GetMatch().GetKeyword() != "active" {
		t.Errorf("unexpected condition after double negation")
	}
}

func TestTranslateNotOverOr(t *testing.T) {
	f, err := TranslateFilter(&filter.Logic{
		Operator: filter.LogicNot,
		Conditions: []filter.Node{
			&filter.Logic{
				Operator: filter.LogicOr,
				Conditions: []filter.Node{
					filter.Eq("meta.category", "other"),
					filter.Eq("meta.category", "debug_summary"),
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// NOT(a OR b) = NOT a AND NOT b.
	if len(f.MustNot) != 2 || len(f.Must) != 0 || len(f.Should) != 0 {
		t.Fatalf("expected both branches in must_not, got %+v", f)
	}
}

func TestTranslateInvalid(t *testing.T) {
	tests := []struct {
		name string
		node filter.Node
	}{
		{"unknown operator", &filter.Comparison{Field: "f", Operator: "~", Value: 1}},
		{"empty membership", &filter.Comparison{Field: "f", Operator: filter.OpIn, Value: []any{}}},
		{"non-list membership", &filter.Comparison{Field: "f", Operator: filter.OpIn, Value: "x"}},
		{"mixed membership", &filter.Comparison{Field: "f", Operator: filter.OpIn, Value: []any{"a", 1}}},
		{"string range", &filter.Comparison{Field: "f", Operator: filter.OpGt, Value: "high"}},
		{"unmatchable value", &filter.Comparison{Field: "f", Operator: filter.OpEq, Value: map[string]any{}}},
		{"unknown logic", &filter.Logic{Operator: "XOR", Conditions: []filter.Node{filter.Eq("f", 1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateFilter(tt.node)
			if !errors.Is(err, filter.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), KindUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "timed out"), KindUnavailable},
		{"not found", status.Error(codes.NotFound, "collection missing"), KindNotFound},
		{"index required", status.Error(codes.FailedPrecondition, "Index required but not found for \"meta.doc_id\""), KindIndexRequired},
		{"bad argument with index", status.Error(codes.InvalidArgument, "field has no index"), KindIndexRequired},
		{"bad argument", status.Error(codes.InvalidArgument, "malformed vector"), KindInternal},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoreErrorWrapping(t *testing.T) {
	base := status.Error(codes.Unavailable, "connection refused")
	err := wrapErr("scroll", fmt.Errorf("failed to scroll points: %w", base))

	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %T", err)
	}
	if se.Op != "scroll" || se.Kind != KindUnavailable {
		t.Errorf("unexpected wrapped error: %+v", se)
	}
	if !IsUnavailable(err) {
		t.Errorf("IsUnavailable should report true")
	}
	if IsNotFound(err) {
		t.Errorf("IsNotFound should report false")
	}
	if wrapErr("noop", nil) != nil {
		t.Errorf("wrapping nil should stay nil")
	}
}

func TestPointIDConversion(t *testing.T) {
	uuid := "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	if got := pointIDString(pointIDFromString(uuid)); got != uuid {
		t.Errorf("uuid round trip failed: %q", got)
	}
	if got := pointIDString(pointIDFromString("42")); got != "42" {
		t.Errorf("numeric round trip failed: %q", got)
	}
	if pointIDFromString("42").GetNum() != 42 {
		t.Errorf("decimal string should map to a numeric ID")
	}
	if pointIDString(nil) != "" {
		t.Errorf("nil ID should stringify empty")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := map[string]any{
		"content": "some document text",
		"score":   1.5,
		"meta": map[string]any{
			"doc_id":      "rule-001",
			"chunk_index": int64(3),
			"is_chunk":    true,
			"tags":        []any{"alpha", "beta"},
		},
	}

	converted := make(map[string]*qdrant.Value, len(payload))
	for key, value := range payload {
		val, err := qdrant.NewValue(value)
		if err != nil {
			t.Fatalf("NewValue(%s) failed: %v", key, err)
		}
		converted[key] = val
	}

	back := payloadFromQdrant(converted)

	if back["content"] != "some document text" {
		t.Errorf("content did not survive: %v", back["content"])
	}
	if back["score"] != 1.5 {
		t.Errorf("score did not survive: %v", back["score"])
	}

	meta, ok := back["meta"].(map[string]any)
	if !ok {
		t.Fatalf("meta should round-trip as a map, got %T", back["meta"])
	}
	if meta["doc_id"] != "rule-001" {
		t.Errorf("nested doc_id did not survive: %v", meta["doc_id"])
	}
	if meta["chunk_index"] != int64(3) {
		t.Errorf("nested integer did not survive: %v (%T)", meta["chunk_index"], meta["chunk_index"])
	}
	if meta["is_chunk"] != true {
		t.Errorf("nested bool did not survive: %v", meta["is_chunk"])
	}
	tags, ok := meta["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "alpha" {
		t.Errorf("nested list did not survive: %v", meta["tags"])
	}
}

// fakeStore lets the index assertion tests script store behavior.
type fakeStore struct {
	StoreAdapter
	infoFn        func(ctx context.Context, collection string) (*CollectionInfo, error)
	ensureIndexFn func(ctx context.Context, collection, field string) error
}

func (f *fakeStore) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	return f.infoFn(ctx, collection)
}

func (f *fakeStore) EnsureKeywordIndex(ctx context.Context, collection, field string) error {
	return f.ensureIndexFn(ctx, collection, field)
}

func TestAssertIndexesCreatesMissing(t *testing.T) {
	indexed := []string{"meta.doc_id", "meta.category"}
	var created []string

	store := &fakeStore{
		infoFn: func(ctx context.Context, collection string) (*CollectionInfo, error) {
			return &CollectionInfo{IndexedFields: indexed}, nil
		},
		ensureIndexFn: func(ctx context.Context, collection, field string) error {
			created = append(created, field)
			return nil
		},
	}

	got := AssertIndexes(context.Background(), store, "haystack_mcp")

	want := len(schema.IndexedFields) - len(indexed)
	if len(got) != want {
		t.Fatalf("expected %d created indexes, got %d: %v", want, len(got), got)
	}
	for _, field := range got {
		if field == "meta.doc_id" || field == "meta.category" {
			t.Errorf("recreated an existing index: %s", field)
		}
	}
	if !reflect.DeepEqual(created, got) {
		t.Errorf("returned fields do not match issued calls")
	}
}

func TestAssertIndexesToleratesFailures(t *testing.T) {
	store := &fakeStore{
		infoFn: func(ctx context.Context, collection string) (*CollectionInfo, error) {
			return nil, errors.New("unreachable")
		},
		ensureIndexFn: func(ctx context.Context, collection, field string) error {
			if field == "meta.status" {
				return errors.New("index creation failed")
			}
			return nil
		},
	}

	got := AssertIndexes(context.Background(), store, "haystack_mcp")

	if len(got) != len(schema.IndexedFields)-1 {
		t.Fatalf("expected all but one index created, got %d", len(got))
	}
	for _, field := range got {
		if field == "meta.status" {
			t.Errorf("failed field should not be reported as created")
		}
	}
}
