package literal

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"fabdrop/internal/dataset"
)

// Layout fixes how a Document is rendered.
type Layout struct {
	// Order lists set names in output order. Sets not listed follow in
	// document order.
	Order []string
	// Hints gives the leading field order for the elements of each set.
	Hints map[string][]string
	// VersionKey names the version property. Empty omits it.
	VersionKey string
	// VersionBefore places the version property just before this set.
	// Empty or absent puts it last.
	VersionBefore string
	// Indent is one indentation level. Defaults to four spaces.
	Indent string
}

func (l Layout) indent() string {
	if l.Indent == "" {
		return "    "
	}
	return l.Indent
}

// Serialize renders doc as a multi-line object literal. The output is a
// pure function of doc and layout.
func Serialize(doc *dataset.Document, layout Layout) string {
	ind := layout.indent()

	var props []string
	scalarsDone := false
	emitScalars := func() {
		if scalarsDone {
			return
		}
		scalarsDone = true
		if layout.VersionKey != "" && doc.Version != "" {
			props = append(props, ind+key(layout.VersionKey)+": "+quote(doc.Version))
		}
		for _, f := range doc.Scalars {
			props = append(props, ind+key(f.Name)+": "+Value(f.Value))
		}
	}

	for _, set := range orderedSets(doc, layout.Order) {
		if set.Name == layout.VersionBefore {
			emitScalars()
		}
		props = append(props, renderSet(set, layout.Hints[set.Name], ind))
	}
	emitScalars()

	if len(props) == 0 {
		return "{}"
	}
	return "{\n" + strings.Join(props, ",\n") + "\n}"
}

func orderedSets(doc *dataset.Document, order []string) []*dataset.RecordSet {
	seen := make(map[string]bool, len(doc.Sets))
	out := make([]*dataset.RecordSet, 0, len(doc.Sets))
	for _, name := range order {
		if set := doc.Set(name); set != nil && !seen[name] {
			out = append(out, set)
			seen[name] = true
		}
	}
	for _, set := range doc.Sets {
		if !seen[set.Name] {
			out = append(out, set)
			seen[set.Name] = true
		}
	}
	return out
}

func renderSet(set *dataset.RecordSet, hints []string, ind string) string {
	var b strings.Builder
	b.WriteString(ind)
	b.WriteString(key(set.Name))
	b.WriteString(": [\n")
	for _, r := range set.Records {
		b.WriteString(ind)
		b.WriteString(ind)
		b.WriteString(SerializeRecord(r, hints))
		b.WriteString(",\n")
	}
	b.WriteString(ind)
	b.WriteString("]")
	return b.String()
}

// SerializeRecord renders r on one line, hint fields first and the rest
// in record order.
func SerializeRecord(r *dataset.Record, hints []string) string {
	if r.Len() == 0 {
		return "{}"
	}
	parts := make([]string, 0, r.Len())
	used := make(map[string]bool, len(hints))
	for _, h := range hints {
		if v, ok := r.Get(h); ok && !used[h] {
			parts = append(parts, key(h)+": "+Value(v))
			used[h] = true
		}
	}
	for _, f := range r.Fields() {
		if !used[f.Name] {
			parts = append(parts, key(f.Name)+": "+Value(f.Value))
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// Value renders one value as literal text.
func Value(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return number(t)
	case string:
		return quote(t)
	case *dataset.Record:
		return SerializeRecord(t, nil)
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Value(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "null"
	}
}

func number(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func key(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	return quote(name)
}
