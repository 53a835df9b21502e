// Package document extracts plain text from contract files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dshills/contractcheck/internal/schema"
)

// ErrUnsupportedFormat is returned for file extensions other than .pdf,
// .docx, and .txt.
var ErrUnsupportedFormat = errors.New("document: unsupported format")

// ErrCorruptDocument is returned when a file has a supported extension but
// cannot be decoded.
var ErrCorruptDocument = errors.New("document: corrupt document")

// ErrNoText is returned when a document decodes but holds no text, as with a
// scanned PDF without a text layer.
var ErrNoText = errors.New("document: no extractable text")

// MaxSize caps the number of bytes read from any single document.
const MaxSize = 50 << 20

// Extensions lists the supported file extensions.
var Extensions = []string{".pdf", ".docx", ".txt"}

// Supported reports whether name has a supported extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}

// ExtractFile reads the file at path and returns its text.
func ExtractFile(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("document: open: %w", err)
	}
	defer f.Close()
	return Extract(filepath.Base(path), f)
}

// Extract returns the text of the document read from r. The format is chosen
// by the extension of name. The result is trimmed of surrounding whitespace.
func Extract(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !Supported(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("document: read: %w", err)
	}
	if len(data) > MaxSize {
		return "", fmt.Errorf("document: %s exceeds %d bytes", name, MaxSize)
	}

	var text string
	switch ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	default:
		text = decodeText(data)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, name)
	}
	return text, nil
}

// decodeText returns data as UTF-8. Input that is not valid UTF-8 is treated
// as Latin-1, which maps every byte to the code point of the same value.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return normalizeNewlines(string(data))
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return normalizeNewlines(sb.String())
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// devanagari is the Unicode block used by Hindi.
const (
	devanagariFirst = 0x0900
	devanagariLast  = 0x097F
)

// hindiThreshold is the share of Devanagari characters above which a text is
// classified as Hindi.
const hindiThreshold = 0.3

// DetectLanguage classifies text by script. It counts non-whitespace runes and
// reports hindi when more than 30% of them are Devanagari.
func DetectLanguage(text string) schema.Language {
	var total, deva int
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', 0x00A0:
			continue
		}
		total++
		if r >= devanagariFirst && r <= devanagariLast {
			deva++
		}
	}
	if total == 0 {
		return schema.LanguageUnknown
	}
	if float64(deva)/float64(total) > hindiThreshold {
		return schema.LanguageHindi
	}
	return schema.LanguageEnglish
}
