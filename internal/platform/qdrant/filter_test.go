package qdrant

import (
	"errors"
	"testing"
)

func TestFilterBodyAlwaysScopesNamespace(t *testing.T) {
	got, err := Filter{}.body("hc:hotel-1")
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	must, ok := got["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("must: want one namespace condition, got=%v", got["must"])
	}
	if _, exists := got["must_not"]; exists {
		t.Fatalf("must_not should be omitted for an empty filter")
	}
	nsCond := findConditionByKey(must, payloadNamespaceKey)
	if nsCond == nil {
		t.Fatalf("missing namespace condition")
	}
	match, _ := nsCond["match"].(map[string]any)
	if match["value"] != "hc:hotel-1" {
		t.Fatalf("namespace match: got=%v", nsCond["match"])
	}
}

func TestFilterBodyMatchAndMatchAny(t *testing.T) {
	f := Filter{
		Must:    []Condition{MatchAny("document_id", "doc-1", "doc-2")},
		MustNot: []Condition{Match("archived", true)},
	}
	got, err := f.body("hc:hotel-1")
	if err != nil {
		t.Fatalf("body: %v", err)
	}

	must, _ := got["must"].([]any)
	docCond := findConditionByKey(must, "document_id")
	if docCond == nil {
		t.Fatalf("missing document_id condition")
	}
	docMatch, _ := docCond["match"].(map[string]any)
	anyVals, ok := docMatch["any"].([]any)
	if !ok || len(anyVals) != 2 || anyVals[0] != "doc-1" || anyVals[1] != "doc-2" {
		t.Fatalf("document_id any values: got=%v", docMatch["any"])
	}

	mustNot, ok := got["must_not"].([]any)
	if !ok || len(mustNot) != 1 {
		t.Fatalf("must_not: got=%v", got["must_not"])
	}
	archived := findConditionByKey(mustNot, "archived")
	if archived == nil {
		t.Fatalf("missing archived condition")
	}
}

func TestFilterBodyRejectsInvalidConditions(t *testing.T) {
	cases := map[string]Filter{
		"empty key":    {Must: []Condition{Match("", "x")}},
		"nil value":    {Must: []Condition{Match("document_id", nil)}},
		"empty any":    {Must: []Condition{MatchAny[string]("document_id")}},
		"bad must_not": {MustNot: []Condition{{Key: "archived"}}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.body("hc:hotel-1")
			var opErr *OperationError
			if !errors.As(err, &opErr) {
				t.Fatalf("expected OperationError, got=%T (%v)", err, err)
			}
			if opErr.Code != OperationErrorValidation {
				t.Fatalf("code: want=%q got=%q", OperationErrorValidation, opErr.Code)
			}
		})
	}
}

func findConditionByKey(items []any, key string) map[string]any {
	for _, raw := range items {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condKey, _ := cond["key"].(string); condKey == key {
			return cond
		}
	}
	return nil
}
