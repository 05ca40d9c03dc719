package memory

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type documentFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadDocuments reads documents from a YAML file on fsys:
//
//	documents:
//	  - id: fiscal_year
//	    content: Our business defines financial year start with april to mar of each year
//	    tags: [finance]
func LoadDocuments(fsys afero.Fs, path string) ([]Document, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read documentation %s: %w", path, err)
	}

	return ParseDocuments(bytes.NewReader(data))
}

// ParseDocuments decodes the YAML document format read by LoadDocuments.
// Documents with empty content are rejected.
func ParseDocuments(r io.Reader) ([]Document, error) {
	var f documentFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode documentation: %w", err)
	}

	for i, d := range f.Documents {
		if d.Content == "" {
			return nil, fmt.Errorf("decode documentation: document %d has no content", i)
		}
	}

	return f.Documents, nil
}

// DefaultDocuments returns the built-in documentation for the sales and
// customer dataset, dated at now.
func DefaultDocuments(now time.Time) []Document {
	return []Document{
		{
			ID:      "fiscal_year",
			Content: "Our business defines financial year start with april to mar of each year",
			Tags:    []string{"finance", "fiscal"},
		},
		{
			ID:      "invoice_date_format",
			Content: "The invoice_date of sales_data is in dd-MM-yyyy format",
			Tags:    []string{"sales", "date"},
		},
		{
			ID:      "today",
			Content: fmt.Sprintf("Today's date is %s", now.Format("2006-01-02")),
			Tags:    []string{"date"},
		},
	}
}
