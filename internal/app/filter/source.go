package filter

import (
	"github.com/osa030/readaloud/internal/domain/document"
)

// Source opens documents whose page text passes through a chain.
type Source struct {
	source document.Source
	chain  *Chain
}

// NewSource wraps source so every page is filtered by chain.
func NewSource(source document.Source, chain *Chain) *Source {
	return &Source{source: source, chain: chain}
}

// Open opens path with the wrapped source.
func (s *Source) Open(path string) (document.Document, error) {
	doc, err := s.source.Open(path)
	if err != nil {
		return nil, err
	}
	return &filteredDocument{Document: doc, chain: s.chain}, nil
}

type filteredDocument struct {
	document.Document
	chain *Chain
}

func (d *filteredDocument) PageText(index int) (string, error) {
	text, err := d.Document.PageText(index)
	if err != nil {
		return "", err
	}
	return d.chain.Apply(text), nil
}
