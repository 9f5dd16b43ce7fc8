// Package pdf provides a document source backed by rsc.io/pdf.
package pdf

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"rsc.io/pdf"

	"github.com/osa030/readaloud/internal/domain/document"
)

// Source opens PDF files.
type Source struct{}

// NewSource creates a new PDF source.
func NewSource() *Source {
	return &Source{}
}

// Open opens the PDF at path. The file stays open until the returned
// document is closed.
func (s *Source) Open(path string) (document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), document.ErrOpen)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Mark(errors.Wrapf(err, "stat %s", path), document.ErrOpen)
	}

	reader, pages, err := newReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, errors.Mark(errors.Wrapf(err, "parse %s", path), document.ErrOpen)
	}
	if pages == 0 {
		_ = f.Close()
		return nil, errors.Wrapf(document.ErrEmptyDocument, "%s", path)
	}

	zlog.Debug().Msgf("pdf: opened document: path=%s pages=%d", path, pages)

	return &Document{
		path:   path,
		file:   f,
		reader: reader,
		pages:  pages,
	}, nil
}

// newReader parses the cross-reference table. rsc.io/pdf reports malformed
// input by panicking, so panics are converted to errors.
func newReader(f *os.File, size int64) (r *pdf.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("malformed pdf: %v", rec)
		}
	}()

	r, err = pdf.NewReader(f, size)
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

// Document is an opened PDF file.
type Document struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	reader *pdf.Reader
	pages  int
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.pages
}

// PageText extracts the text of the page at index (0-based).
func (d *Document) PageText(index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reader == nil {
		return "", document.ErrClosed
	}
	if index < 0 || index >= d.pages {
		return "", errors.Wrapf(document.ErrPageRange, "page %d of %d", index, d.pages)
	}

	text, err := extractPage(d.reader, index+1)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "page %d of %s", index, d.path), document.ErrExtraction)
	}
	return text, nil
}

// Close releases the file handle. Closing twice is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reader == nil {
		return nil
	}
	d.reader = nil
	if err := d.file.Close(); err != nil {
		return errors.Wrapf(err, "close %s", d.path)
	}
	zlog.Debug().Msgf("pdf: closed document: path=%s", d.path)
	return nil
}

// extractPage returns the text of page num (1-based).
func extractPage(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("malformed page content: %v", rec)
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return "", errors.Newf("page %d not found", num)
	}
	return assembleText(page.Content().Text), nil
}
