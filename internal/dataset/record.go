// Package dataset holds the in-memory form of the generated data file:
// ordered records grouped into named sets plus a version string.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is one named value of a Record. Value is nil, bool, string,
// float64, int64, int, []interface{} or *Record.
type Field struct {
	Name  string
	Value interface{}
}

// Record is an ordered field mapping. Order is kept for output
// determinism only.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord creates a record from alternating name/value pairs.
func NewRecord(pairs ...interface{}) *Record {
	r := &Record{}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("dataset.NewRecord: field name at %d is %T", i, pairs[i]))
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set assigns name. An existing field keeps its position.
func (r *Record) Set(name string, value interface{}) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Get returns the value of name and whether it is present.
func (r *Record) Get(name string) (interface{}, bool) {
	if r == nil || r.index == nil {
		return nil, false
	}
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Has reports whether name is present, even with a nil value.
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Delete removes name if present.
func (r *Record) Delete(name string) {
	i, ok := r.index[name]
	if !ok {
		return
	}
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
	delete(r.index, name)
	for j := i; j < len(r.fields); j++ {
		r.index[r.fields[j].Name] = j
	}
}

// Fields returns the fields in order. The slice must not be modified.
func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	return r.fields
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.Fields()))
	for i, f := range r.Fields() {
		keys[i] = f.Name
	}
	return keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.Fields())
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{}
	for _, f := range r.fields {
		c.Set(f.Name, cloneValue(f.Value))
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Record:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// String returns name as text. Numbers are formatted, nil and absent give "".
func (r *Record) String(name string) string {
	v, _ := r.Get(name)
	return Text(v)
}

// Float returns name as a number. Non-numeric text gives 0.
func (r *Record) Float(name string) float64 {
	v, _ := r.Get(name)
	return Number(v)
}

// Text formats a primitive value for display or keys.
func Text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Number converts a primitive value to float64.
func Number(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
