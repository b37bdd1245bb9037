package dataset

import "strings"

// RecordSet is a named ordered sequence of records. Duplicates are allowed.
type RecordSet struct {
	Name    string
	Records []*Record
}

// NewRecordSet creates a set.
func NewRecordSet(name string, records ...*Record) *RecordSet {
	return &RecordSet{Name: name, Records: records}
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Append adds records at the end.
func (s *RecordSet) Append(records ...*Record) {
	s.Records = append(s.Records, records...)
}

// Clone returns a deep copy.
func (s *RecordSet) Clone() *RecordSet {
	c := &RecordSet{Name: s.Name, Records: make([]*Record, len(s.Records))}
	for i, r := range s.Records {
		c.Records[i] = r.Clone()
	}
	return c
}

// Document is the full dataset: record sets in order, the version string
// and any other scalar properties found in an existing file.
type Document struct {
	Sets    []*RecordSet
	Version string
	Scalars []Field
}

// Set returns the named set or nil.
func (d *Document) Set(name string) *RecordSet {
	for _, s := range d.Sets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Has reports whether the named set exists.
func (d *Document) Has(name string) bool {
	return d.Set(name) != nil
}

// Put replaces the set with the same name in place, or appends it.
func (d *Document) Put(set *RecordSet) {
	for i, s := range d.Sets {
		if s.Name == set.Name {
			d.Sets[i] = set
			return
		}
	}
	d.Sets = append(d.Sets, set)
}

// Names returns set names in order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Sets))
	for i, s := range d.Sets {
		names[i] = s.Name
	}
	return names
}

// KeyFunc derives the merge key of a record.
type KeyFunc func(*Record) string

// FieldKey keys records by the text of one or more fields.
func FieldKey(fields ...string) KeyFunc {
	return func(r *Record) string {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = r.String(f)
		}
		return strings.Join(parts, "\x00")
	}
}

// Merge overlays incoming onto existing by key. A record whose key is
// already present replaces the earlier one at its original position; new
// keys are appended in incoming order. Duplicate keys inside either input
// collapse to the later record.
func Merge(existing, incoming *RecordSet, key KeyFunc) *RecordSet {
	name := ""
	switch {
	case existing != nil:
		name = existing.Name
	case incoming != nil:
		name = incoming.Name
	}
	out := &RecordSet{Name: name}
	positions := make(map[string]int)

	add := func(r *Record) {
		k := key(r)
		if i, ok := positions[k]; ok {
			out.Records[i] = r
			return
		}
		positions[k] = len(out.Records)
		out.Records = append(out.Records, r)
	}
	if existing != nil {
		for _, r := range existing.Records {
			add(r)
		}
	}
	if incoming != nil {
		for _, r := range incoming.Records {
			add(r)
		}
	}
	return out
}

// Renumber assigns field the values 1..n in record order.
func Renumber(set *RecordSet, field string) {
	for i, r := range set.Records {
		r.Set(field, int64(i+1))
	}
}
