// Package literal finds, parses and rewrites a named object literal
// inside a JavaScript source file such as data.js.
package literal

import (
	"bytes"
	"fmt"
	"regexp"

	apperrors "fabdrop/pkg/errors"
)

// Span locates one declaration in one buffer. Offsets are only valid for
// the buffer they were computed against.
type Span struct {
	// CommentStart is where the comment lines directly above the
	// declaration begin, or DeclStart when there are none.
	CommentStart int
	// DeclStart is the offset of the declaration keyword.
	DeclStart int
	// Start is the offset of the opening brace.
	Start int
	// Close is the offset just past the matching closing brace.
	Close int
	// End is Close, or just past the terminating ';' when present.
	End int
	// Keyword is const, let or var.
	Keyword string
	// Terminator reports whether End includes a ';'.
	Terminator bool
}

// Literal returns the object literal text without the terminator.
func (s Span) Literal(buf []byte) []byte {
	return buf[s.Start:s.Close]
}

// Comment returns the preserved comment block above the declaration.
func (s Span) Comment(buf []byte) []byte {
	return buf[s.CommentStart:s.DeclStart]
}

// terminatorWindow is how far past the closing brace a ';' may appear.
const terminatorWindow = 4

func declPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b(const|let|var)\s+` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
}

// Locate finds the object literal assigned to name.
func Locate(buf []byte, name string) (Span, error) {
	m := declPattern(name).FindSubmatchIndex(buf)
	if m == nil {
		return Span{}, apperrors.NotFound("declaration", name).
			WithSuggestions(fmt.Sprintf("The file must contain 'const %s = { ... };'", name))
	}

	span := Span{
		DeclStart: m[2],
		Keyword:   string(buf[m[2]:m[3]]),
		Start:     m[1] - 1,
	}
	span.CommentStart = commentStart(buf, span.DeclStart)

	closeAt, err := matchBrace(buf, span.Start)
	if err != nil {
		return Span{}, err
	}
	span.Close = closeAt
	span.End = closeAt

	limit := closeAt + terminatorWindow
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := closeAt; i < limit; i++ {
		c := buf[i]
		if c == ';' {
			span.End = i + 1
			span.Terminator = true
			break
		}
		if !isSpace(c) {
			break
		}
	}

	return span, nil
}

// matchBrace scans from the opening brace at open and returns the offset
// just past its matching closing brace. Only curly braces count; quoted
// text and comments are skipped.
func matchBrace(buf []byte, open int) (int, error) {
	depth := 0
	var quote byte
	quoteAt := 0
	escaped := false

	for i := open; i < len(buf); i++ {
		c := buf[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
			quoteAt = i
		case '/':
			if i+1 < len(buf) && buf[i+1] == '/' {
				nl := bytes.IndexByte(buf[i:], '\n')
				if nl < 0 {
					i = len(buf)
				} else {
					i += nl
				}
			} else if i+1 < len(buf) && buf[i+1] == '*' {
				end := bytes.Index(buf[i+2:], []byte("*/"))
				if end < 0 {
					return 0, apperrors.Malformed("unterminated block comment", i)
				}
				i += end + 3
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}

	if quote != 0 {
		return 0, apperrors.Malformed(fmt.Sprintf("unterminated string starting with %c", quote), quoteAt)
	}
	return 0, apperrors.Malformed("unbalanced braces: object literal is never closed", open)
}

// commentStart walks back over whole lines above declStart that are blank
// or start with "//" and returns the start of the first comment line.
func commentStart(buf []byte, declStart int) int {
	lineStart := bytes.LastIndexByte(buf[:declStart], '\n') + 1
	if len(bytes.TrimSpace(buf[lineStart:declStart])) != 0 {
		return declStart
	}

	start := declStart
	for lineStart > 0 {
		prevEnd := lineStart - 1
		prevStart := bytes.LastIndexByte(buf[:prevEnd], '\n') + 1
		line := bytes.TrimSpace(buf[prevStart:prevEnd])
		if len(line) == 0 {
			lineStart = prevStart
			continue
		}
		if !bytes.HasPrefix(line, []byte("//")) {
			break
		}
		start = prevStart
		lineStart = prevStart
	}
	return start
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
