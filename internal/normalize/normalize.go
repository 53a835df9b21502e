// Package normalize turns raw model replies into typed JSON values. It is the
// single boundary that absorbs malformed model output: Parse never returns an
// error and never panics.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind tags the shape of a parsed reply.
type Kind int

const (
	// ParseFailure means the reply was not valid JSON after fence stripping.
	ParseFailure Kind = iota
	Object
	List
	Text
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case List:
		return "list"
	case Text:
		return "text"
	case Scalar:
		return "scalar"
	default:
		return "parse_failure"
	}
}

// Result is the outcome of normalizing one model reply. Value holds the decoded
// JSON (map[string]any, []any, string, float64, bool, or nil) and is nil for
// ParseFailure. Raw always holds the reply exactly as received.
type Result struct {
	Kind  Kind
	Value any
	Raw   string
}

// Failed reports whether the reply could not be parsed.
func (r Result) Failed() bool { return r.Kind == ParseFailure }

// Object returns the value as a JSON object.
func (r Result) Object() (map[string]any, bool) {
	m, ok := r.Value.(map[string]any)
	return m, ok
}

// List returns the value when it is a list, or the list nested under key when
// the value is an object. Models asked for an array often wrap it in an object
// such as {"alternatives": [...]}.
func (r Result) List(key string) ([]any, bool) {
	switch v := r.Value.(type) {
	case []any:
		return v, true
	case map[string]any:
		if key == "" {
			return nil, false
		}
		l, ok := v[key].([]any)
		return l, ok
	}
	return nil, false
}

// Canonical re-encodes a parsed value as compact JSON. For a ParseFailure it
// returns the raw reply unchanged.
func Canonical(r Result) string {
	if r.Failed() {
		return r.Raw
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return r.Raw
	}
	return string(b)
}

// Parse strips one optional leading and one optional trailing code fence from
// raw and decodes the remainder as a single JSON value.
func Parse(raw string) Result {
	cleaned := StripFences(raw)

	v, err := decode(cleaned)
	if err != nil {
		// LLMs sometimes emit regex-like text (\d, \w) unescaped inside JSON
		// strings; retry once with those escapes doubled.
		fixed := fixInvalidJSONEscapes(cleaned)
		if fixed == cleaned {
			return Result{Kind: ParseFailure, Raw: raw}
		}
		if v, err = decode(fixed); err != nil {
			return Result{Kind: ParseFailure, Raw: raw}
		}
	}
	return Result{Kind: kindOf(v), Value: v, Raw: raw}
}

func decode(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("normalize: empty reply")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func kindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return Object
	case []any:
		return List
	case string:
		return Text
	default:
		return Scalar
	}
}

const fence = "```"

// langTagRe matches the info string that may follow an opening fence.
var langTagRe = regexp.MustCompile(`^[A-Za-z0-9_+.-]*$`)

// StripFences trims whitespace and removes a single leading fence marker (with
// or without a language tag) and a single trailing fence marker. A reply
// truncated before its closing fence only loses the opening one.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			if langTagRe.MatchString(strings.TrimSpace(s[:i])) {
				s = s[i+1:]
			}
		} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// invalidJSONEscapeRe matches a backslash followed by any character that is
// not a valid JSON string escape character ("\/bfnrtu).
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}
