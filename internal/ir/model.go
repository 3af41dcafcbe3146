package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoSection is returned when an intermediate does not carry exactly one
// section to bind.
var ErrNoSection = errors.New("intermediate must contain exactly one section")

// SectionType is the kind of package a section describes.
type SectionType string

const (
	SectionProduct SectionType = "product"
	SectionModule  SectionType = "module"
	SectionPatch   SectionType = "patch"
)

// Placeholder is the sentinel value for identities the binder must generate.
const Placeholder = "*"

// Intermediate is the resolved, pre-bind representation of a package.
type Intermediate struct {
	ID            string                 `msgpack:"id"`
	Sections      []*Section             `msgpack:"sections"`
	DelayedFields []DelayedField         `msgpack:"delayed_fields"`
	EmbeddedFiles []ExpectedEmbeddedFile `msgpack:"embedded_files"`
}

// Section returns the single section of the intermediate.
func (in *Intermediate) Section() (*Section, error) {
	if in == nil || len(in.Sections) != 1 {
		return nil, ErrNoSection
	}
	return in.Sections[0], nil
}

// Section is an ordered collection of records.
type Section struct {
	ID       string      `msgpack:"id"`
	Type     SectionType `msgpack:"type"`
	Codepage int         `msgpack:"codepage"`
	Records  []*Record   `msgpack:"records"`
}

// Add appends records to the section.
func (s *Section) Add(recs ...*Record) {
	s.Records = append(s.Records, recs...)
}

// OfType returns the records of the given type in declaration order.
func (s *Section) OfType(recordType string) []*Record {
	var out []*Record
	for _, r := range s.Records {
		if r.Type == recordType {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the first record with the given type and id.
func (s *Section) Find(recordType, id string) *Record {
	for _, r := range s.Records {
		if r.Type == recordType && r.ID == id {
			return r
		}
	}
	return nil
}

// Remove drops every record of the given type.
func (s *Section) Remove(recordType string) {
	kept := s.Records[:0]
	for _, r := range s.Records {
		if r.Type != recordType {
			kept = append(kept, r)
		}
	}
	s.Records = kept
}

// Record is a flat, type-tagged tuple. ID holds the primary key.
type Record struct {
	Type   string            `msgpack:"type"`
	ID     string            `msgpack:"id"`
	Source string            `msgpack:"source,omitempty"`
	Fields map[string]string `msgpack:"fields"`
}

// NewRecord creates a record with the given fields. fields alternate names
// and values.
func NewRecord(recordType, id string, fields ...string) *Record {
	r := &Record{Type: recordType, ID: id, Fields: make(map[string]string, len(fields)/2)}
	for i := 0; i+1 < len(fields); i += 2 {
		r.Fields[fields[i]] = fields[i+1]
	}
	return r
}

// Get returns a field value or the empty string.
func (r *Record) Get(name string) string {
	return r.Fields[name]
}

// Has reports whether the field is present.
func (r *Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Set assigns a field value.
func (r *Record) Set(name, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}

// Int parses a numeric field. Missing fields return ok=false.
func (r *Record) Int(name string) (int, bool, error) {
	v, ok := r.Fields[name]
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, true, fmt.Errorf("%s.%s field %s: %q is not a number", r.Type, r.ID, name, v)
	}
	return n, true, nil
}

// Bool parses a yes/no field. Missing fields return ok=false.
func (r *Record) Bool(name string) (value, ok bool) {
	v, present := r.Fields[name]
	if !present || v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true, true
	default:
		return false, true
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{Type: r.Type, ID: r.ID, Source: r.Source, Fields: make(map[string]string, len(r.Fields))}
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return c
}

// DelayedField is a record field whose value can only be computed once the
// binder variable cache is populated.
type DelayedField struct {
	RecordType string `msgpack:"record_type"`
	RecordID   string `msgpack:"record_id"`
	Field      string `msgpack:"field"`
	// Expression is HCL expression source referencing bind.* variables.
	Expression string `msgpack:"expression"`
	Source     string `msgpack:"source,omitempty"`
}

// ExpectedEmbeddedFile names a file stored inside a library container that
// must be extracted before the bind can hash it.
type ExpectedEmbeddedFile struct {
	Container  string `msgpack:"container"`
	Index      int    `msgpack:"index"`
	OutputPath string `msgpack:"output_path"`
}
