package uploader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PageRecord is one page to create or update.
type PageRecord struct {
	ID   string `yaml:"id" json:"id" jsonschema:"Full page title, e.g. Template:Infobox"`
	Body string `yaml:"body" json:"body" jsonschema:"Page content in wikitext"`
}

// pageFile accepts either a bare list or {pages: [...]}.
type pageFile struct {
	Pages []PageRecord `yaml:"pages"`
}

// LoadPages reads page records from a YAML or JSON file.
func LoadPages(path string) ([]PageRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePages(b)
}

// ParsePages decodes page records. Every record needs a non-empty id.
func ParsePages(data []byte) ([]PageRecord, error) {
	var pages []PageRecord
	if err := yaml.Unmarshal(data, &pages); err != nil {
		var wrapped pageFile
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse pages: %w", err)
		}
		pages = wrapped.Pages
	}

	for i, p := range pages {
		if p.ID == "" {
			return nil, fmt.Errorf("page %d: id is required", i)
		}
	}
	return pages, nil
}
