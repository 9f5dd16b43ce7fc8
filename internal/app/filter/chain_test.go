package filter

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/infra/config"
)

type upperFilter struct{}

func (upperFilter) Name() string                        { return "upper" }
func (upperFilter) Description() string                 { return "upper" }
func (upperFilter) ValidateConfig(map[string]any) error { return nil }
func (upperFilter) Apply(text string) string            { return strings.ToUpper(text) }

type suffixFilter struct{ suffix string }

func (f suffixFilter) Name() string                        { return "suffix" }
func (f suffixFilter) Description() string                 { return "suffix" }
func (f suffixFilter) ValidateConfig(map[string]any) error { return nil }
func (f suffixFilter) Apply(text string) string            { return text + f.suffix }

func TestChain_Apply(t *testing.T) {
	chain := NewChain()
	assert.Equal(t, "as is", chain.Apply("as is"))

	chain.Add(upperFilter{})
	chain.Add(suffixFilter{suffix: "!"})
	assert.Equal(t, "HELLO!", chain.Apply("hello"))
	assert.Len(t, chain.Filters(), 2)
}

func TestNewChainFromConfig(t *testing.T) {
	t.Run("default filters in order", func(t *testing.T) {
		cfg, err := config.Default()
		require.NoError(t, err)

		chain, err := NewChainFromConfig(cfg)
		require.NoError(t, err)

		var names []string
		for _, f := range chain.Filters() {
			names = append(names, f.Name())
		}
		assert.Equal(t, []string{
			"ligature_filter",
			"page_number_filter",
			"dehyphenate_filter",
			"join_lines_filter",
		}, names)

		got := chain.Apply("The ﬁrst narra-\ntion line\ncontinues.\n\n- 4 -\n")
		assert.Equal(t, "The first narration line continues.", got)
	})

	t.Run("unknown filter", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"shout_filter": {Enabled: true},
		}}
		_, err := NewChainFromConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown filter: shout_filter")
	})

	t.Run("unknown but disabled filter is ignored", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"shout_filter": {Enabled: false},
		}}
		chain, err := NewChainFromConfig(cfg)
		require.NoError(t, err)
		assert.Empty(t, chain.Filters())
	})

	t.Run("invalid settings", func(t *testing.T) {
		cfg := &config.Config{Filters: map[string]config.FilterConfig{
			"replace_filter": {Enabled: true},
		}}
		_, err := NewChainFromConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "filter replace_filter")
	})
}

type stubDocument struct {
	pages  []string
	closed bool
}

func (d *stubDocument) PageCount() int { return len(d.pages) }

func (d *stubDocument) PageText(index int) (string, error) {
	if index < 0 || index >= len(d.pages) {
		return "", document.ErrPageRange
	}
	return d.pages[index], nil
}

func (d *stubDocument) Close() error {
	d.closed = true
	return nil
}

type stubSource struct {
	doc *stubDocument
	err error
}

func (s *stubSource) Open(path string) (document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func TestSource(t *testing.T) {
	chain := NewChain()
	chain.Add(upperFilter{})

	t.Run("filters page text", func(t *testing.T) {
		inner := &stubDocument{pages: []string{"one", "two"}}
		doc, err := NewSource(&stubSource{doc: inner}, chain).Open("book.pdf")
		require.NoError(t, err)

		assert.Equal(t, 2, doc.PageCount())
		text, err := doc.PageText(1)
		require.NoError(t, err)
		assert.Equal(t, "TWO", text)

		_, err = doc.PageText(2)
		assert.True(t, errors.Is(err, document.ErrPageRange))

		require.NoError(t, doc.Close())
		assert.True(t, inner.closed)
	})

	t.Run("open error passes through", func(t *testing.T) {
		_, err := NewSource(&stubSource{err: document.ErrOpen}, chain).Open("missing.pdf")
		assert.True(t, errors.Is(err, document.ErrOpen))
	})
}
