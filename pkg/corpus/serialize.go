package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	documentsKey       = "documents"
	legacyDocumentsKey = "laws"
)

// MarshalJSON writes the corpus under the documents key it was loaded with.
func (c *Corpus) MarshalJSON() ([]byte, error) {
	key := c.documentsKey
	if key == "" {
		key = documentsKey
	}

	documents := c.Documents
	if documents == nil {
		documents = []*LegalDocument{}
	}

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, err
	}
	documentsJSON, err := json.Marshal(documents)
	if err != nil {
		return nil, err
	}

	// metadata first, then the document list
	var buffer bytes.Buffer
	buffer.WriteString(`{"metadata":`)
	buffer.Write(metadataJSON)
	fmt.Fprintf(&buffer, ",%q:", key)
	buffer.Write(documentsJSON)
	buffer.WriteByte('}')

	if len(c.Extra) == 0 {
		return buffer.Bytes(), nil
	}
	return appendExtra(buffer.Bytes(), c.Extra, map[string]bool{
		"metadata":         true,
		documentsKey:       true,
		legacyDocumentsKey: true,
	})
}

// UnmarshalJSON accepts both the "documents" and the legacy "laws" layout.
func (c *Corpus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Metadata  Metadata         `json:"metadata"`
		Documents []*LegalDocument `json:"documents"`
		Laws      []*LegalDocument `json:"laws"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var topLevel map[string]json.RawMessage
	if err := json.Unmarshal(data, &topLevel); err != nil {
		return err
	}
	c.Extra = nil
	for key, value := range topLevel {
		switch key {
		case "metadata", documentsKey, legacyDocumentsKey:
			continue
		}
		if c.Extra == nil {
			c.Extra = make(Extra)
		}
		c.Extra[key] = value
	}

	c.Metadata = raw.Metadata
	switch {
	case raw.Documents != nil:
		c.Documents = raw.Documents
		c.documentsKey = documentsKey
	case raw.Laws != nil:
		c.Documents = raw.Laws
		c.documentsKey = legacyDocumentsKey
	default:
		return fmt.Errorf("neither %q nor %q present", documentsKey, legacyDocumentsKey)
	}

	for index, document := range c.Documents {
		if document == nil {
			return fmt.Errorf("document %d is null", index)
		}
	}
	return nil
}

// DocumentsKey returns the JSON key the documents list is stored under.
func (c *Corpus) DocumentsKey() string {
	if c.documentsKey == "" {
		return documentsKey
	}
	return c.documentsKey
}

// Encode serializes the corpus as indented JSON with a trailing newline.
func Encode(corpus *Corpus) ([]byte, error) {
	if corpus == nil {
		return nil, fmt.Errorf("corpus is nil")
	}
	corpus.Metadata.DocumentCount = len(corpus.Documents)

	data, err := json.MarshalIndent(corpus, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a corpus file.
func Decode(data []byte) (*Corpus, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	var corpus Corpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, err
	}
	return &corpus, nil
}
