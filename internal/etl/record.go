package etl

import "sort"

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Every parser emits Records, every destination consumes Records.

// FieldTypeText is the only field type the loader declares.
const FieldTypeText = "text"

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema describes the shape of the records of one group.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the schema declares a field with the given name.
func (s *Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Record is a single parsed row or element.
// Group is the logical table the record belongs to.
type Record struct {
	Group string            `json:"group"`
	Data  map[string]string `json:"data"`

	order []string
}

// NewRecord returns an empty record for the given group.
func NewRecord(group string) Record {
	return Record{Group: group, Data: map[string]string{}}
}

// Set assigns a field, remembering the order in which names first appeared.
// Parsers call Set while building a record; records are not modified afterwards.
func (r *Record) Set(name, value string) {
	if r.Data == nil {
		r.Data = map[string]string{}
	}
	if _, ok := r.Data[name]; !ok {
		r.order = append(r.order, name)
	}
	r.Data[name] = value
}

// FieldNames returns the record's field names in source order.
// Records built without Set fall back to sorted names.
func (r Record) FieldNames() []string {
	if len(r.order) == len(r.Data) {
		return append([]string(nil), r.order...)
	}
	names := make([]string, 0, len(r.Data))
	for k := range r.Data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// KV is one field of a document, kept in order for store encoders.
type KV struct {
	Key   string
	Value string
}

// Document returns the record's fields as an ordered key/value list.
func (r Record) Document() []KV {
	names := r.FieldNames()
	doc := make([]KV, len(names))
	for i, n := range names {
		doc[i] = KV{Key: n, Value: r.Data[n]}
	}
	return doc
}

// InferSchema derives a group's schema from one representative record.
// Every field becomes a text field, in the record's field order. Other
// records of the group are not consulted.
func InferSchema(rep Record) *Schema {
	names := rep.FieldNames()
	schema := &Schema{Fields: make([]Field, len(names))}
	for i, n := range names {
		schema.Fields[i] = Field{Name: n, Type: FieldTypeText}
	}
	return schema
}
