package qdrant

// Condition matches one payload key, either against a single value or, when
// Any is set, against any of several values.
type Condition struct {
	Key   string
	Value any
	Any   []any
}

func Match(key string, value any) Condition { return Condition{Key: key, Value: value} }

func MatchAny[T any](key string, values ...T) Condition {
	anyVals := make([]any, 0, len(values))
	for _, v := range values {
		anyVals = append(anyVals, v)
	}
	return Condition{Key: key, Any: anyVals}
}

// Filter is a conjunction of Must conditions and negated MustNot conditions.
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

func (c Condition) valid() bool {
	if c.Key == "" {
		return false
	}
	if c.Any != nil {
		return len(c.Any) > 0
	}
	return c.Value != nil
}

func (c Condition) body() map[string]any {
	match := map[string]any{"value": c.Value}
	if c.Any != nil {
		match = map[string]any{"any": c.Any}
	}
	return map[string]any{"key": c.Key, "match": match}
}

// body renders the filter in qdrant's JSON form with the namespace condition
// always present.
func (f Filter) body(qualifiedNS string) (map[string]any, error) {
	must := []any{Match(payloadNamespaceKey, qualifiedNS).body()}
	for _, c := range f.Must {
		if !c.valid() {
			return nil, opErr("filter", OperationErrorValidation, "invalid condition for key "+c.Key, nil)
		}
		must = append(must, c.body())
	}
	out := map[string]any{"must": must}
	if len(f.MustNot) > 0 {
		mustNot := make([]any, 0, len(f.MustNot))
		for _, c := range f.MustNot {
			if !c.valid() {
				return nil, opErr("filter", OperationErrorValidation, "invalid condition for key "+c.Key, nil)
			}
			mustNot = append(mustNot, c.body())
		}
		out["must_not"] = mustNot
	}
	return out, nil
}
