package document

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dslipak/pdf"
)

// extractPDF returns the plain text layer of a PDF.
func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, r)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, err)
	}
	plain, err := rd.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %v", ErrCorruptDocument, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %v", ErrCorruptDocument, err)
	}
	return string(b), nil
}
