package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Extra holds JSON keys a type does not model. They are kept on decode and
// written back on encode so a save never loses scraper data.
type Extra map[string]json.RawMessage

var knownFieldsCache sync.Map

// knownFields returns the JSON keys of a struct type's exported fields.
func knownFields(t reflect.Type) map[string]bool {
	if cached, ok := knownFieldsCache.Load(t); ok {
		return cached.(map[string]bool)
	}

	fields := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		fields[name] = true
	}

	knownFieldsCache.Store(t, fields)
	return fields
}

// decodeExtra unmarshals data into target (a pointer to a struct without
// custom JSON methods) and returns the keys target does not know.
func decodeExtra(data []byte, target any) (Extra, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := knownFields(reflect.TypeOf(target).Elem())
	var extra Extra
	for key, value := range raw {
		if known[key] {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[key] = value
	}
	return extra, nil
}

// encodeExtra marshals value and appends the extra keys after the modelled
// ones, in sorted order. Keys the value already writes take precedence.
func encodeExtra(value any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	return appendExtra(data, extra, knownFields(reflect.TypeOf(value)))
}

func appendExtra(data []byte, extra Extra, known map[string]bool) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return nil, fmt.Errorf("cannot add extra keys to non-object JSON")
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		if !known[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	buffer.Write(trimmed[:len(trimmed)-1])
	empty := len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
	for _, key := range keys {
		if !empty {
			buffer.WriteByte(',')
		}
		empty = false

		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buffer.Write(name)
		buffer.WriteByte(':')
		buffer.Write(extra[key])
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// MarshalJSON writes the section with its unmodelled keys.
func (s Section) MarshalJSON() ([]byte, error) {
	type plain Section
	return encodeExtra(plain(s), s.Extra)
}

// UnmarshalJSON reads the section and keeps unmodelled keys in Extra.
func (s *Section) UnmarshalJSON(data []byte) error {
	type plain Section
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*s = Section(decoded)
	s.Extra = extra
	return nil
}

// MarshalJSON writes the chapter; a nil section list is written as [].
func (c Chapter) MarshalJSON() ([]byte, error) {
	type plain Chapter
	if c.Sections == nil {
		c.Sections = []Section{}
	}
	return encodeExtra(plain(c), c.Extra)
}

// UnmarshalJSON reads the chapter and keeps unmodelled keys in Extra.
func (c *Chapter) UnmarshalJSON(data []byte) error {
	type plain Chapter
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*c = Chapter(decoded)
	c.Extra = extra
	return nil
}

// MarshalJSON writes the source with its unmodelled keys.
func (s Source) MarshalJSON() ([]byte, error) {
	type plain Source
	return encodeExtra(plain(s), s.Extra)
}

// UnmarshalJSON reads the source and keeps unmodelled keys in Extra.
func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*s = Source(decoded)
	s.Extra = extra
	return nil
}

// MarshalJSON writes the document metadata with its unmodelled keys.
func (m DocumentMetadata) MarshalJSON() ([]byte, error) {
	type plain DocumentMetadata
	return encodeExtra(plain(m), m.Extra)
}

// UnmarshalJSON reads the document metadata and keeps unmodelled keys in Extra.
func (m *DocumentMetadata) UnmarshalJSON(data []byte) error {
	type plain DocumentMetadata
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*m = DocumentMetadata(decoded)
	m.Extra = extra
	return nil
}

// MarshalJSON writes the document; a nil chapter list is written as [].
func (d LegalDocument) MarshalJSON() ([]byte, error) {
	type plain LegalDocument
	if d.Chapters == nil {
		d.Chapters = []Chapter{}
	}
	return encodeExtra(plain(d), d.Extra)
}

// UnmarshalJSON reads the document and keeps unmodelled keys in Extra.
func (d *LegalDocument) UnmarshalJSON(data []byte) error {
	type plain LegalDocument
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*d = LegalDocument(decoded)
	d.Extra = extra
	return nil
}

// MarshalJSON writes the corpus metadata with its unmodelled keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	return encodeExtra(plain(m), m.Extra)
}

// UnmarshalJSON reads the corpus metadata and keeps unmodelled keys in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var decoded plain
	extra, err := decodeExtra(data, &decoded)
	if err != nil {
		return err
	}
	*m = Metadata(decoded)
	m.Extra = extra
	return nil
}
