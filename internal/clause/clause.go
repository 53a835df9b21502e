// Package clause segments contract text into numbered clauses so that a
// single clause can be selected and explained.
package clause

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Clause is one segment of a contract.
type Clause struct {
	ID        string `json:"id"`               // CLAUSE-001, CLAUSE-002, ...
	Number    string `json:"number,omitempty"` // "5", "5.1", "IV"; empty for the preamble
	Heading   string `json:"heading,omitempty"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Text      string `json:"text"`
}

// Title returns the clause number and heading for display.
func (c Clause) Title() string {
	switch {
	case c.Number != "" && c.Heading != "":
		return c.Number + " " + c.Heading
	case c.Number != "":
		return c.Number
	case c.Heading != "":
		return c.Heading
	}
	return c.ID
}

var (
	// numberedRe matches "5. ", "5) ", "5.1 ", "5.1.2. ". A single-level
	// number needs a "." or ")" so that dates such as "1 January" do not
	// start a clause.
	numberedRe = regexp.MustCompile(`^\s{0,3}(\d{1,3}(?:\.\d{1,3})+\.?|\d{1,3}[.)])\s+(\S.*)$`)
	// keywordRe matches "Clause 7", "SECTION 3.2:", "Article IV -".
	keywordRe = regexp.MustCompile(`(?i)^\s{0,3}(?:clause|section|article)\s+([0-9]{1,3}(?:\.[0-9]{1,3})*|[IVXLC]{1,7})\b[.:)\-\s]*(.*)$`)
)

// Segment splits text into clauses. Text before the first numbered line
// becomes a preamble clause with no number. A clause runs until the next
// clause start; blank lines and lettered sub-items such as "(a)" stay inside
// the clause.
func Segment(text string) []Clause {
	clauses, _ := SegmentReader(strings.NewReader(text))
	return clauses
}

// SegmentReader reads from r and segments it like Segment.
func SegmentReader(r io.Reader) ([]Clause, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	// Extracted PDF text can produce very long lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("clause: scan: %w", err)
	}
	return segment(lines), nil
}

func segment(lines []string) []Clause {
	var clauses []Clause

	type pending struct {
		number    string
		heading   string
		lineStart int
		lineEnd   int
		buf       []string
	}

	flush := func(p *pending) {
		if p == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(p.buf, "\n"))
		if text == "" && p.heading == "" {
			return
		}
		if text == "" {
			text = p.heading
		}
		clauses = append(clauses, Clause{
			ID:        fmt.Sprintf("CLAUSE-%03d", len(clauses)+1),
			Number:    p.number,
			Heading:   p.heading,
			LineStart: p.lineStart,
			LineEnd:   p.lineEnd,
			Text:      text,
		})
	}

	var cur *pending
	// heading holds a standalone caps heading waiting for the clause it titles.
	heading := ""
	headingLine := 0

	for i, line := range lines {
		lineNum := i + 1

		if isDecorator(line) {
			continue
		}

		if number, rest, ok := clauseStart(line); ok {
			flush(cur)
			cur = &pending{number: number, lineStart: lineNum, lineEnd: lineNum}
			if heading != "" {
				cur.heading = heading
				cur.lineStart = headingLine
				cur.buf = append(cur.buf, heading)
				heading = ""
			} else {
				cur.heading = headingOf(rest)
			}
			cur.buf = append(cur.buf, strings.TrimSpace(line))
			continue
		}

		if isStandaloneHeading(line) {
			// A heading between clauses titles the next one.
			flush(cur)
			cur = nil
			if heading != "" {
				// Two headings in a row: the first becomes its own clause.
				flush(&pending{heading: heading, lineStart: headingLine, lineEnd: headingLine})
			}
			heading = strings.TrimSpace(line)
			headingLine = lineNum
			continue
		}

		if strings.TrimSpace(line) == "" {
			if cur != nil {
				cur.buf = append(cur.buf, "")
			}
			continue
		}

		if cur == nil {
			cur = &pending{lineStart: lineNum}
			if heading != "" {
				cur.heading = heading
				cur.lineStart = headingLine
				cur.buf = append(cur.buf, heading)
				heading = ""
			}
		}
		cur.buf = append(cur.buf, strings.TrimRightFunc(line, unicode.IsSpace))
		cur.lineEnd = lineNum
	}
	flush(cur)
	if heading != "" {
		flush(&pending{heading: heading, lineStart: headingLine, lineEnd: headingLine})
	}
	return clauses
}

// clauseStart reports whether line opens a new clause and returns its number
// and the text after the number.
func clauseStart(line string) (number, rest string, ok bool) {
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return strings.TrimRight(m[1], ".)"), strings.TrimSpace(m[2]), true
	}
	if m := keywordRe.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", "", false
}

// headingOf extracts a heading from the text following a clause number:
// "CONFIDENTIALITY", "Term:", "Governing Law. This...",
// "Payment Terms - The Client shall...".
func headingOf(rest string) string {
	if rest == "" {
		return ""
	}
	for _, sep := range []string{":", " - ", " – ", " — "} {
		if i := strings.Index(rest, sep); i > 0 && wordCount(rest[:i]) <= 6 {
			return strings.TrimSpace(rest[:i])
		}
	}
	// "Indemnity. The Receiving Party shall..."
	if i := strings.Index(rest, ". "); i > 0 && wordCount(rest[:i]) <= 4 && isTitle(rest[:i]) {
		return rest[:i]
	}
	if isCaps(rest) && wordCount(rest) <= 8 {
		return strings.TrimRight(rest, ".")
	}
	if wordCount(rest) <= 6 && !strings.HasSuffix(rest, ".") && !strings.HasSuffix(rest, ",") {
		return rest
	}
	return ""
}

// isStandaloneHeading matches short all-caps lines such as
// "TERMINATION" or "GOVERNING LAW AND JURISDICTION".
func isStandaloneHeading(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" || strings.HasSuffix(t, ".") || strings.HasSuffix(t, ",") {
		return false
	}
	return isCaps(t) && wordCount(t) <= 8
}

// isCaps reports whether s has at least two letters and no lower-case ones.
func isCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			letters++
		}
	}
	return letters >= 2
}

// isTitle reports whether every word of s starts with an upper-case letter.
func isTitle(s string) bool {
	for _, w := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// isDecorator returns true for lines made of one separator character repeated
// at least 3 times.
func isDecorator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) == 0 {
		return false
	}
	var first rune
	count := 0
	for _, ch := range trimmed {
		if count == 0 {
			first = ch
		}
		if ch != first {
			return false
		}
		count++
	}
	if first != '-' && first != '=' && first != '*' && first != '_' && first != '⸻' && first != '—' {
		return false
	}
	return count >= 3
}

// Find returns the clause matching ref. ref may be a clause ID ("CLAUSE-003"),
// its ordinal ("3" when no clause is numbered "3"), or a clause number
// ("5.1", "iv"). Matching ignores case.
func Find(clauses []Clause, ref string) (Clause, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Clause{}, false
	}
	for _, c := range clauses {
		if strings.EqualFold(c.ID, ref) {
			return c, true
		}
	}
	for _, c := range clauses {
		if c.Number != "" && strings.EqualFold(c.Number, ref) {
			return c, true
		}
	}
	var n int
	if _, err := fmt.Sscanf(ref, "%d", &n); err == nil && fmt.Sprint(n) == ref && n >= 1 && n <= len(clauses) {
		return clauses[n-1], true
	}
	return Clause{}, false
}
