package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

// Document is a single documentation snippet.
type Document struct {
	ID       string         `yaml:"id" json:"id"`
	Content  string         `yaml:"content" json:"content"`
	Tags     []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// SearchResult is a matching document and its relevance score in (0, 1].
type SearchResult struct {
	Document
	Score float64 `json:"score"`
}

// InMemoryStore keeps documents in insertion order.
//
// Search tokenizes the query and scores each document by the share of query
// terms found in its content or tags. Ties keep insertion order. Safe for
// concurrent use.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs []Document
	seq  int
}

// NewInMemoryStore creates a store holding docs.
func NewInMemoryStore(docs ...Document) *InMemoryStore {
	s := &InMemoryStore{}
	for _, d := range docs {
		s.Store(d)
	}
	return s
}

// Store adds a document and returns its id. Documents without an id get
// "doc_<n>"; a document with an existing id replaces it.
func (s *InMemoryStore) Store(doc Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc_%d", s.seq)
	}
	doc.Tags = append([]string(nil), doc.Tags...)

	for i := range s.docs {
		if s.docs[i].ID == doc.ID {
			s.docs[i] = doc
			return doc.ID
		}
	}

	s.docs = append(s.docs, doc)

	return doc.ID
}

// Get returns the document with the given id.
func (s *InMemoryStore) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}

	return Document{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// All returns every document in insertion order.
func (s *InMemoryStore) All() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Document(nil), s.docs...)
}

// Len returns the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Delete removes a document by id.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.docs {
		if d.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Search returns up to limit documents matching query, best first. An empty
// query matches every document with score 1. A limit <= 0 means no limit.
func (s *InMemoryStore) Search(query string, limit int) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := tokenize(query)

	results := make([]SearchResult, 0, len(s.docs))
	for _, d := range s.docs {
		score := 1.0
		if len(terms) > 0 {
			score = overlap(terms, tokenize(d.Content+" "+strings.Join(d.Tags, " ")))
		}
		if score > 0 {
			results = append(results, SearchResult{Document: d, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results
}

func overlap(query []string, doc []string) float64 {
	words := make(map[string]struct{}, len(doc))
	for _, w := range doc {
		words[w] = struct{}{}
	}

	hits := 0
	for _, q := range query {
		if _, ok := words[q]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(query))
}

// tokenize lowercases s and splits it into unique words of at least two
// letters or digits.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	return out
}
