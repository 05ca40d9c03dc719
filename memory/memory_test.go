package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()

	id := s.Store(Document{Content: "first"})
	assert.Equal(t, "doc_1", id)
	assert.Equal(t, "named", s.Store(Document{ID: "named", Content: "second"}))
	assert.Equal(t, 2, s.Len())

	s.Store(Document{ID: "named", Content: "replaced"})
	assert.Equal(t, 2, s.Len())

	d, err := s.Get("named")
	require.NoError(t, err)
	assert.Equal(t, "replaced", d.Content)

	require.NoError(t, s.Delete("doc_1"))
	require.ErrorIs(t, s.Delete("doc_1"), ErrNotFound)

	_, err = s.Get("doc_1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	s := NewInMemoryStore(DefaultDocuments(time.Date(2025, 2, 13, 0, 0, 0, 0, time.UTC))...)

	res := s.Search("When does the financial year start?", 0)
	require.NotEmpty(t, res)
	assert.Equal(t, "fiscal_year", res[0].ID)

	res = s.Search("invoice_date format", 1)
	require.Len(t, res, 1)
	assert.Equal(t, "invoice_date_format", res[0].ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)

	res = s.Search("date", 0)
	require.Len(t, res, 2)
	assert.Equal(t, "invoice_date_format", res[0].ID, "ties keep insertion order")
	assert.Equal(t, "today", res[1].ID)
	assert.Contains(t, res[1].Content, "2025-02-13")

	assert.Empty(t, s.Search("kubernetes", 0))
	assert.Len(t, s.Search("", 2), 2)
}

func TestLoadDocuments(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "docs.yaml", []byte(`
documents:
  - id: churn
    content: A customer is churned after 90 days without a purchase
    tags: [customers]
  - content: Prices are in Turkish lira
`), 0o644))

	docs, err := LoadDocuments(fs, "docs.yaml")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "churn", docs[0].ID)
	assert.Equal(t, []string{"customers"}, docs[0].Tags)

	s := NewInMemoryStore(docs...)
	res := s.Search("currency lira", 0)
	require.Len(t, res, 1)
	assert.Equal(t, "doc_2", res[0].ID)
}

func TestParseDocumentsErrors(t *testing.T) {
	_, err := ParseDocuments(strings.NewReader("documents:\n  - id: empty\n"))
	require.Error(t, err)

	_, err = ParseDocuments(strings.NewReader("docs: []\n"))
	require.Error(t, err, "unknown fields are rejected")

	docs, err := ParseDocuments(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = LoadDocuments(afero.NewMemMapFs(), "missing.yaml")
	require.Error(t, err)
}
