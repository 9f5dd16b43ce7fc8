// Package document provides the Document entity and its source contract.
package document

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrOpen          = errors.New("failed to open document")
	ErrEmptyDocument = errors.New("document has no pages")
	ErrPageRange     = errors.New("page index out of range")
	ErrExtraction    = errors.New("failed to extract page text")
	ErrClosed        = errors.New("document is closed")
)

// Document is an opened file with page-indexed text extraction.
// Implementations hold file resources until Close is called.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageText returns the text of the page at index (0-based).
	PageText(index int) (string, error)
	// Close releases the underlying file.
	Close() error
}

// Source opens documents.
type Source interface {
	Open(path string) (Document, error)
}

// Page is the extracted text of a single page.
type Page struct {
	Index int    // 0-based page index
	Text  string // Extracted text
}

// IsBlank reports whether the page carries no speakable text.
func (p Page) IsBlank() bool {
	return strings.TrimSpace(p.Text) == ""
}
