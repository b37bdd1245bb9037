package literal

// Apply replaces the declaration of name in buf with
// "<keyword> <name> = <literal>;". Everything before the declaration,
// including its comment block, and everything after the located span is
// kept byte for byte. buf is not modified.
func Apply(buf []byte, name, literal string) ([]byte, error) {
	span, err := Locate(buf, name)
	if err != nil {
		return nil, err
	}
	return Replace(buf, span, name, literal), nil
}

// Replace is Apply with a span computed against buf.
func Replace(buf []byte, span Span, name, literal string) []byte {
	decl := span.Keyword + " " + name + " = " + literal + ";"
	out := make([]byte, 0, span.DeclStart+len(decl)+len(buf)-span.End)
	out = append(out, buf[:span.DeclStart]...)
	out = append(out, decl...)
	out = append(out, buf[span.End:]...)
	return out
}
