package normalize

import (
	"reflect"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```JSON\n[1,2]\n```  \n", `[1,2]`},
		{"```python\n[1]\n```", `[1]`},
		{"```json\n{\"a\":1}", `{"a":1}`}, // truncated before closing fence
		{"{\"a\":1}\n```", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
		{"```json{\"a\":1}```", `{"a":1}`},
		{"{\"a\":1}", `{"a":1}`},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, c := range cases {
		if got := StripFences(c.in); got != c.want {
			t.Errorf("StripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParse_FencedEqualsBare(t *testing.T) {
	fenced := Parse("```json\n{\"a\":1}\n```")
	bare := Parse(`{"a":1}`)
	if fenced.Kind != Object || bare.Kind != Object {
		t.Fatalf("kinds = %v, %v; want object", fenced.Kind, bare.Kind)
	}
	if !reflect.DeepEqual(fenced.Value, bare.Value) {
		t.Errorf("fenced value %v != bare value %v", fenced.Value, bare.Value)
	}
	want := map[string]any{"a": float64(1)}
	if !reflect.DeepEqual(bare.Value, want) {
		t.Errorf("value = %v, want %v", bare.Value, want)
	}
}

func TestParse_PreservesShape(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{`{"x":[1,2]}`, Object},
		{`["a","b"]`, List},
		{`"just a string"`, Text},
		{`42`, Scalar},
		{`null`, Scalar},
	}
	for _, c := range cases {
		r := Parse(c.in)
		if r.Kind != c.kind {
			t.Errorf("Parse(%q).Kind = %v, want %v", c.in, r.Kind, c.kind)
		}
		if r.Failed() {
			t.Errorf("Parse(%q) reported failure", c.in)
		}
	}
}

func TestParse_FailureKeepsRawText(t *testing.T) {
	raw := "```json\nHere is my analysis: {broken\n```"
	r := Parse(raw)
	if !r.Failed() {
		t.Fatalf("expected parse failure, got kind %v", r.Kind)
	}
	if r.Raw != raw {
		t.Errorf("Raw = %q, want untouched original %q", r.Raw, raw)
	}
	if r.Value != nil {
		t.Errorf("Value = %v, want nil on failure", r.Value)
	}
}

func TestParse_RejectsTrailingData(t *testing.T) {
	if r := Parse(`{"a":1} and some commentary`); !r.Failed() {
		t.Errorf("expected failure for trailing prose, got %v", r.Kind)
	}
	if r := Parse("   "); !r.Failed() {
		t.Error("expected failure for blank reply")
	}
}

func TestParse_FixesInvalidEscapes(t *testing.T) {
	r := Parse(`{"pattern":"\d+ days"}`)
	if r.Failed() {
		t.Fatal("expected sanitized parse to succeed")
	}
	m, _ := r.Object()
	if m["pattern"] != `\d+ days` {
		t.Errorf("pattern = %q, want %q", m["pattern"], `\d+ days`)
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		`{"a":1,"b":["x","y"],"c":{"d":null}}`,
		`[{"clause":"c1"},{"clause":"c2"}]`,
		"```json\n{\"nested\":{\"k\":true}}\n```",
		`"text"`,
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(Canonical(first))
		if first.Kind != second.Kind || !reflect.DeepEqual(first.Value, second.Value) {
			t.Errorf("Parse not stable for %q: %v/%v vs %v/%v",
				in, first.Kind, first.Value, second.Kind, second.Value)
		}
		third := Parse(Canonical(second))
		if Canonical(second) != Canonical(third) {
			t.Errorf("Canonical not a fixed point for %q", in)
		}
	}
}

func TestCanonical_FailureReturnsRaw(t *testing.T) {
	r := Parse("nope")
	if got := Canonical(r); got != "nope" {
		t.Errorf("Canonical(failure) = %q, want raw", got)
	}
}

func TestResult_List(t *testing.T) {
	bare := Parse(`["a","b"]`)
	wrapped := Parse(`{"unfavorable_clauses":["a","b"]}`)

	l1, ok1 := bare.List("unfavorable_clauses")
	l2, ok2 := wrapped.List("unfavorable_clauses")
	if !ok1 || !ok2 {
		t.Fatalf("List ok = %v, %v; want true, true", ok1, ok2)
	}
	want := []any{"a", "b"}
	if !reflect.DeepEqual(l1, want) || !reflect.DeepEqual(l2, want) {
		t.Errorf("lists = %v, %v; want %v", l1, l2, want)
	}

	if _, ok := wrapped.List("alternatives"); ok {
		t.Error("List with wrong key should fail")
	}
	if _, ok := Parse(`"s"`).List("x"); ok {
		t.Error("List on text should fail")
	}
}
