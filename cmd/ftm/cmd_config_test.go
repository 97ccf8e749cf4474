package ftm

import "testing"

func TestLookupDottedFindsNestedKey(t *testing.T) {
	m := map[string]any{
		"watch": map[string]any{
			"patterns": []any{"**/*"},
		},
	}
	v, ok := lookupDotted(m, "watch.patterns")
	if !ok {
		t.Fatalf("expected watch.patterns to resolve")
	}
	if _, ok := v.([]any); !ok {
		t.Fatalf("expected a slice value, got %T", v)
	}
}

func TestLookupDottedMissingKey(t *testing.T) {
	m := map[string]any{"watch": map[string]any{}}
	if _, ok := lookupDotted(m, "watch.nope"); ok {
		t.Fatalf("expected missing key to report not found")
	}
	if _, ok := lookupDotted(m, "nope.at.all"); ok {
		t.Fatalf("expected missing top-level key to report not found")
	}
}

func TestParseScalarCoercesTypes(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"3.14", 3.14},
		{"hello", "hello"},
	}
	for _, c := range cases {
		got := parseScalar(c.in)
		if got != c.want {
			t.Errorf("parseScalar(%q) = %v (%T), want %v (%T)", c.in, got, got, c.want, c.want)
		}
	}
}
