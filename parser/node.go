package parser

import (
	"strings"

	"github.com/confkit/apacheconf/scanner"
)

// Node is one item of parsed configuration contents: a *Comment,
// *Statement, *Include, or *Block.
type Node interface {
	// Dump writes the exact source text of the node to b. The result is
	// byte-identical to the input only for trees parsed with
	// Options.PreserveWhitespace set.
	Dump(b *strings.Builder)
}

// Comment is a hash or C-style comment.
// With Options.PreserveWhitespace Text holds the exact source text
// including the "#" or "/*" "*/" delimiters, otherwise just the body.
type Comment struct {
	Whitespace string
	Text       string
	CStyle     bool
}

func (c *Comment) Dump(b *strings.Builder) {
	b.WriteString(c.Whitespace)
	b.WriteString(c.Text)
}

// Statement is a single option, with or without a value.
// Value is the logical value: quotes stripped, continuations collapsed,
// "\#" unescaped. RawValue is the exact source text of the value and is
// what Dump emits.
type Statement struct {
	Whitespace string
	Name       string
	Sep        string
	Value      string
	RawValue   string
	Quote      scanner.Quote
	HasValue   bool
}

func (s *Statement) Dump(b *strings.Builder) {
	b.WriteString(s.Whitespace)
	b.WriteString(s.tagText())
}

func (s *Statement) tagText() string {
	if s.HasValue {
		return s.Name + s.Sep + s.RawValue
	}
	return s.Name
}

// Include is an include or includeoptional directive. Keyword keeps the
// original spelling, Perl marks the <<include ...>> form.
type Include struct {
	Whitespace string
	Keyword    string
	Sep        string
	Path       string
	Optional   bool
	Perl       bool
}

func (i *Include) Dump(b *strings.Builder) {
	b.WriteString(i.Whitespace)
	if i.Perl {
		b.WriteString("<<")
	}
	b.WriteString(i.Keyword)
	b.WriteString(i.Sep)
	b.WriteString(i.Path)
	if i.Perl {
		b.WriteString(">>")
	}
}

// Block is a tag-delimited group of contents. Tag carries the tag name
// and arguments the way a statement carries name and value. Contents is
// nil for a self-closing <x/> block. CloseText is the literal text inside
// the closing tag, kept verbatim even when it differs from the tag name.
type Block struct {
	Whitespace string
	Tag        *Statement
	Contents   *Contents
	CloseText  string
}

func (blk *Block) Dump(b *strings.Builder) {
	b.WriteString(blk.Whitespace)
	b.WriteByte('<')
	b.WriteString(blk.Tag.tagText())
	if blk.Contents == nil {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	blk.Contents.Dump(b)
	b.WriteString("</")
	b.WriteString(blk.CloseText)
	b.WriteByte('>')
}

// Contents is an ordered list of nodes plus the trailing whitespace after
// the last one. Leading whitespace always belongs to the following node,
// so dumping a Contents is plain concatenation.
type Contents struct {
	Items    []Node
	Trailing string
}

func (c *Contents) Dump(b *strings.Builder) {
	for _, n := range c.Items {
		n.Dump(b)
	}
	b.WriteString(c.Trailing)
}
