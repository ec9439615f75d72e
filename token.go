package titocc

// TokenKind tags the payload carried by a Token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokIntLit
	TokCharLit
	TokStringLit
	TokKeyword
	TokPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "eof"
	case TokIdent:
		return "identifier"
	case TokIntLit:
		return "integer-literal"
	case TokCharLit:
		return "char-literal"
	case TokStringLit:
		return "string-literal"
	case TokKeyword:
		return "keyword"
	case TokPunct:
		return "punctuator"
	default:
		return "?"
	}
}

// keywords is the reserved-word set. Note that target-machine names
// (R0-R7, crt, kbd, halt, stdin, stdout, read, write, time, date) are
// deliberately absent: they are ordinary C identifiers, and the code
// generator is responsible for not colliding with them at emission
// time, not the lexer for refusing them as names.
var keywords = map[string]bool{
	"int": true, "unsigned": true, "char": true, "void": true,
	"if": true, "else": true, "while": true, "do": true, "for": true,
	"break": true, "continue": true, "return": true,
	"static": true, "extern": true, "auto": true, "register": true,
	"sizeof": true,
}

// Token is a single lexical unit: a kind tag, its source span, and a
// kind-specific payload.
type Token struct {
	Kind TokenKind
	Span Span

	// Text is the raw spelling for identifiers, keywords and
	// punctuators.
	Text string

	// IntValue/IntUnsigned are populated for TokIntLit: the 32-bit
	// value and whether it carries the unsigned flag (from a u/U
	// suffix, or because the literal doesn't fit in a signed
	// 32-bit type).
	IntValue    uint32
	IntUnsigned bool

	// CharValue holds the decoded (possibly multi-byte-packed)
	// value of a TokCharLit.
	CharValue int32

	// StringValue holds the decoded bytes of a TokStringLit, after
	// escape processing and adjacent-literal concatenation.
	StringValue []byte
}

func (t Token) IsPunct(s string) bool {
	return t.Kind == TokPunct && t.Text == s
}

func (t Token) IsKeyword(s string) bool {
	return t.Kind == TokKeyword && t.Text == s
}
