package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"fabdrop/internal/dataset"
	apperrors "fabdrop/pkg/errors"
)

// Parse reads one literal value: an object (as *dataset.Record), an array,
// a quoted string, a number, true, false, null or undefined. Comments and
// trailing commas are accepted.
func Parse(src []byte) (interface{}, error) {
	p := &parser{src: src}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after value", p.src[p.pos])
	}
	return v, nil
}

// ParseDocument reads an object literal into a Document. Array properties
// whose elements are all objects become record sets; versionKey, when a
// string, becomes Document.Version; anything else is kept in Scalars.
func ParseDocument(src []byte, versionKey string) (*dataset.Document, error) {
	v, err := Parse(src)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*dataset.Record)
	if !ok {
		return nil, apperrors.Malformed("dataset literal is not an object", 0)
	}

	doc := &dataset.Document{}
	for _, f := range obj.Fields() {
		if f.Name == versionKey {
			if s, ok := f.Value.(string); ok {
				doc.Version = s
				continue
			}
		}
		if set, ok := asRecordSet(f.Name, f.Value); ok {
			doc.Sets = append(doc.Sets, set)
			continue
		}
		doc.Scalars = append(doc.Scalars, f)
	}
	return doc, nil
}

func asRecordSet(name string, v interface{}) (*dataset.RecordSet, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	set := &dataset.RecordSet{Name: name, Records: make([]*dataset.Record, 0, len(items))}
	for _, item := range items {
		r, ok := item.(*dataset.Record)
		if !ok {
			return nil, false
		}
		set.Records = append(set.Records, r)
	}
	return set, true
}

// ReadDocument locates name in buf and parses its literal.
func ReadDocument(buf []byte, name, versionKey string) (*dataset.Document, Span, error) {
	span, err := Locate(buf, name)
	if err != nil {
		return nil, Span{}, err
	}
	doc, err := ParseDocument(span.Literal(buf), versionKey)
	if err != nil {
		if ae, ok := err.(*apperrors.AppError); ok {
			if off, ok := ae.Context["offset"].(int); ok {
				_ = ae.WithContext("offset", off+span.Start)
			}
		}
		return nil, Span{}, err
	}
	return doc, span, nil
}

type parser struct {
	src []byte
	pos int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return apperrors.Malformed(fmt.Sprintf(format, args...), p.pos)
}

// skip advances over whitespace and comments.
func (p *parser) skip() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			end := strings.Index(string(p.src[p.pos+2:]), "*/")
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 4
		default:
			return
		}
	}
}

func (p *parser) value() (interface{}, error) {
	p.skip()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '\'' || c == '"' || c == '`':
		return p.str()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		word := p.ident()
		switch word {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "undefined":
			return nil, nil
		case "":
			return nil, p.errorf("unexpected %q", c)
		default:
			return nil, p.errorf("unsupported value %q", word)
		}
	}
}

func (p *parser) object() (*dataset.Record, error) {
	p.pos++ // {
	rec := dataset.NewRecord()
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unbalanced braces: object is never closed")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return rec, nil
		}

		name, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skip()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, p.errorf("expected ':' after key %q", name)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		rec.Set(name, v)

		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unbalanced braces: object is never closed")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}' in object, found %q", p.src[p.pos])
		}
	}
}

func (p *parser) key() (string, error) {
	c := p.src[p.pos]
	if c == '\'' || c == '"' || c == '`' {
		return p.str()
	}
	if c >= '0' && c <= '9' {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		return string(p.src[start:p.pos]), nil
	}
	name := p.ident()
	if name == "" {
		return "", p.errorf("expected property name, found %q", c)
	}
	return name, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return string(p.src[start:p.pos])
}

func (p *parser) array() ([]interface{}, error) {
	p.pos++ // [
	items := []interface{}{}
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("array is never closed")
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("array is never closed")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, p.errorf("expected ',' or ']' in array, found %q", p.src[p.pos])
		}
	}
}

func (p *parser) str() (string, error) {
	quoteChar := p.src[p.pos]
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quoteChar:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				break
			}
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
			continue
		case c == '\n' && quoteChar != '`':
			p.pos = start
			return "", p.errorf("unterminated string")
		}
		b.WriteByte(c)
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

// escape decodes the escape sequence at p.pos, just after the backslash.
func (p *parser) escape(b *strings.Builder) error {
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\n':
		// line continuation
	case '\r':
		if p.pos < len(p.src) && p.src[p.pos] == '\n' {
			p.pos++
		}
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		if p.pos < len(p.src) && p.src[p.pos] == '{' {
			end := strings.IndexByte(string(p.src[p.pos:]), '}')
			if end < 0 {
				return p.errorf("bad unicode escape")
			}
			n, err := strconv.ParseUint(string(p.src[p.pos+1:p.pos+end]), 16, 32)
			if err != nil {
				return p.errorf("bad unicode escape")
			}
			b.WriteRune(rune(n))
			p.pos += end + 1
			return nil
		}
		return p.hexEscape(b, 4)
	default:
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) hexEscape(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("bad escape sequence")
	}
	n, err := strconv.ParseUint(string(p.src[p.pos:p.pos+digits]), 16, 32)
	if err != nil {
		return p.errorf("bad escape sequence")
	}
	p.pos += digits
	r := rune(n)
	if utf8.ValidRune(r) {
		b.WriteRune(r)
	} else {
		b.WriteRune(utf8.RuneError)
	}
	return nil
}

func (p *parser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.pos = start
		return 0, p.errorf("invalid number %q", text)
	}
	return f, nil
}
