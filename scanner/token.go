package scanner

import (
	"github.com/confkit/apacheconf/source"
)

// Kind discriminates Token variants.
type Kind int

const (
	EofToken Kind = iota
	WhitespaceToken
	NewlineToken
	CommentToken
	OptionValueToken
	OpenTagToken
	CloseTagToken
	OpenCloseTagToken
	IncludeToken
)

var kindNames = [...]string{
	"-end-of-file-",
	"whitespace",
	"newline",
	"comment",
	"option-value",
	"open tag",
	"close tag",
	"empty-element tag",
	"include",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "-unknown-"
	}
	return kindNames[k]
}

// Quote marks the quoting style of an option value or block argument.
type Quote int

const (
	NoQuote Quote = iota
	SingleQuote
	DoubleQuote
)

// Token is a single lexeme fetched by Scanner.
// Text always holds the exact source text of the lexeme; the remaining
// fields are filled depending on Kind.
type Token struct {
	kind      Kind
	text      string
	name      string
	sep       string
	value     string
	rawValue  string
	quote     Quote
	hasValue  bool
	optional  bool
	perl      bool
	cstyle    bool
	src       *source.Source
	line, col int
}

func (t *Token) Kind() Kind {
	return t.kind
}

// Text returns the exact source text of the lexeme, e.g. "<a b>" for an
// open tag or the full "# ..." text for a hash comment.
func (t *Token) Text() string {
	return t.text
}

// Name returns the option name for option-value tokens, the tag name for
// tag tokens (close-tag text for close tags), or the directive keyword in
// its original spelling for include tokens.
func (t *Token) Name() string {
	return t.name
}

// Sep returns the literal separator text between name and value: a run of
// spaces, tabs, "=", and escaped line breaks.
func (t *Token) Sep() string {
	return t.sep
}

// Value returns the logical value: continuations collapsed, quotes
// stripped, "\#" unescaped, trailing whitespace trimmed. For include
// tokens it is the path, for comment tokens the comment body.
func (t *Token) Value() string {
	return t.value
}

// RawValue returns the exact source text of the value, including quote
// characters, escaped line breaks, and here-document anchors.
func (t *Token) RawValue() string {
	return t.rawValue
}

func (t *Token) Quote() Quote {
	return t.quote
}

// HasValue reports whether an option-value or open-tag token carries a
// value part; false for bare directives and argument-less tags.
func (t *Token) HasValue() bool {
	return t.hasValue
}

// Optional reports whether an include token is an "includeoptional".
func (t *Token) Optional() bool {
	return t.optional
}

// Perl reports whether an include token uses the <<include ...>> spelling.
func (t *Token) Perl() bool {
	return t.perl
}

// CStyle reports whether a comment token is a /* ... */ comment.
func (t *Token) CStyle() bool {
	return t.cstyle
}

func (t *Token) Source() *source.Source {
	return t.src
}

func (t *Token) SourceName() string {
	if t.src == nil {
		return ""
	}
	return t.src.Name()
}

func (t *Token) Line() int {
	return t.line
}

func (t *Token) Col() int {
	return t.col
}
