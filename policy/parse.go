package policy

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the YAML container for administrator-authored policies.
// It carries a version identifier and the list of policies.
type Document struct {
	Version  string    `yaml:"version" json:"version"`
	Policies []*Policy `yaml:"policies" json:"policies"`
}

// ParseDocument parses a YAML byte slice into a Document.
// It returns an error if the input is empty, contains invalid YAML syntax,
// or is missing the version field.
func ParseDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty policy document")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("missing version field")
	}

	return &doc, nil
}

// ParseDocumentFromReader parses a Document from an io.Reader.
// It reads the entire contents and delegates to ParseDocument.
func ParseDocumentFromReader(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}
	return ParseDocument(data)
}
