// Package parser builds configuration syntax trees from scanner tokens.
package parser

import (
	"strings"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/scanner"
	"github.com/confkit/apacheconf/source"
)

// Error codes used by parser:
const (
	// UnexpectedTokenError indicates a token the grammar cannot accept at its position.
	UnexpectedTokenError = apacheconf.SyntaxErrors + iota

	// UnexpectedEofError indicates end of input inside an unclosed block.
	UnexpectedEofError

	// NewlineExpectedError indicates a directive not starting on its own line.
	NewlineExpectedError

	// ExtraInputError indicates leftover text after a single parsed item.
	ExtraInputError
)

type parser struct {
	scn  *scanner.Scanner
	opts apacheconf.Options
	tok  *scanner.Token
}

// Parse parses a whole configuration source into its root Contents.
// A failed parse yields no tree at all.
func Parse(src *source.Source, opts apacheconf.Options) (*Contents, error) {
	p, e := newParser(src, opts)
	if e != nil {
		return nil, e
	}
	c, e := p.parseContents()
	if e != nil {
		return nil, e
	}
	if p.tok.Kind() != scanner.EofToken {
		return nil, apacheconf.FormatErrorPos(p.tok, UnexpectedTokenError,
			"unexpected close tag </%s>", p.tok.Name())
	}
	return c, nil
}

// ParseItem parses text holding exactly one statement, comment, include,
// or block, with optional leading whitespace. Anything after the item is
// an error.
func ParseItem(src *source.Source, opts apacheconf.Options) (Node, error) {
	p, e := newParser(src, opts)
	if e != nil {
		return nil, e
	}

	ws := ""
	for p.tok.Kind() == scanner.WhitespaceToken || p.tok.Kind() == scanner.NewlineToken {
		ws += p.tok.Text()
		if e = p.next(); e != nil {
			return nil, e
		}
	}

	var n Node
	switch p.tok.Kind() {
	case scanner.EofToken, scanner.CloseTagToken:
		return nil, apacheconf.FormatErrorPos(p.tok, UnexpectedTokenError,
			"expected a statement, comment, include, or block, got %s", p.tok.Kind())
	case scanner.CommentToken:
		n = p.comment()
		e = p.next()
	default:
		n, e = p.parseItem()
	}
	if e != nil {
		return nil, e
	}
	if p.opts.PreserveWhitespace {
		setWhitespace(n, ws)
	}
	if p.tok.Kind() != scanner.EofToken {
		return nil, apacheconf.FormatErrorPos(p.tok, ExtraInputError,
			"unexpected %s after item", p.tok.Kind())
	}
	return n, nil
}

func newParser(src *source.Source, opts apacheconf.Options) (*parser, error) {
	p := &parser{scn: scanner.New(src, opts), opts: opts}
	return p, p.next()
}

func (p *parser) next() error {
	tok, e := p.scn.Next()
	if e != nil {
		return e
	}
	p.tok = tok
	return nil
}

// parseContents consumes items up to the next close tag or end of input,
// leaving the terminating token current.
func (p *parser) parseContents() (*Contents, error) {
	c := &Contents{}
	ws := ""
	for {
		switch p.tok.Kind() {
		case scanner.EofToken, scanner.CloseTagToken:
			if p.opts.PreserveWhitespace {
				c.Trailing = ws
			}
			return c, nil

		case scanner.WhitespaceToken, scanner.NewlineToken:
			ws += p.tok.Text()
			if e := p.next(); e != nil {
				return nil, e
			}

		case scanner.CommentToken:
			n := p.comment()
			if p.opts.PreserveWhitespace {
				n.Whitespace = ws
			}
			ws = ""
			c.Items = append(c.Items, n)
			if e := p.next(); e != nil {
				return nil, e
			}

		default:
			// a comment may share a line with the previous item, any
			// other item must start on its own line
			if p.opts.PreserveWhitespace && len(c.Items) > 0 && !strings.ContainsAny(ws, "\r\n") {
				return nil, apacheconf.FormatErrorPos(p.tok, NewlineExpectedError,
					"%s must start on a new line", p.tok.Kind())
			}
			n, e := p.parseItem()
			if e != nil {
				return nil, e
			}
			if p.opts.PreserveWhitespace {
				setWhitespace(n, ws)
			}
			ws = ""
			c.Items = append(c.Items, n)
		}
	}
}

// parseItem consumes one statement, include, or block starting at the
// current token.
func (p *parser) parseItem() (Node, error) {
	tok := p.tok
	switch tok.Kind() {
	case scanner.OptionValueToken:
		n := &Statement{
			Name:     tok.Name(),
			Sep:      tok.Sep(),
			Value:    tok.Value(),
			RawValue: tok.RawValue(),
			Quote:    tok.Quote(),
			HasValue: tok.HasValue(),
		}
		if p.opts.LowerCaseNames {
			n.Name = strings.ToLower(n.Name)
		}
		return n, p.next()

	case scanner.IncludeToken:
		n := &Include{
			Keyword:  tok.Name(),
			Sep:      tok.Sep(),
			Path:     tok.Value(),
			Optional: tok.Optional(),
			Perl:     tok.Perl(),
		}
		return n, p.next()

	case scanner.OpenCloseTagToken:
		tag := &Statement{
			Name:     tok.Name(),
			Sep:      tok.Sep(),
			Value:    tok.Value(),
			RawValue: tok.RawValue(),
			Quote:    tok.Quote(),
			HasValue: tok.HasValue(),
		}
		if p.opts.LowerCaseNames {
			tag.Name = strings.ToLower(tag.Name)
			tag.Value = strings.ToLower(tag.Value)
			tag.RawValue = strings.ToLower(tag.RawValue)
		}
		return &Block{Tag: tag, CloseText: tag.tagText()}, p.next()

	case scanner.OpenTagToken:
		return p.parseBlock()
	}
	return nil, apacheconf.FormatErrorPos(tok, UnexpectedTokenError,
		"unexpected %s", tok.Kind())
}

func (p *parser) parseBlock() (Node, error) {
	open := p.tok
	tag := &Statement{
		Name:     open.Name(),
		Sep:      open.Sep(),
		Value:    open.Value(),
		RawValue: open.RawValue(),
		Quote:    open.Quote(),
		HasValue: open.HasValue(),
	}
	if e := p.next(); e != nil {
		return nil, e
	}
	c, e := p.parseContents()
	if e != nil {
		return nil, e
	}
	if p.tok.Kind() != scanner.CloseTagToken {
		return nil, apacheconf.FormatErrorPos(open, UnexpectedEofError,
			"unexpected end of input, unclosed <%s> block", open.Name())
	}
	b := &Block{Tag: tag, Contents: c, CloseText: p.tok.Name()}
	if p.opts.LowerCaseNames {
		b.Tag.Name = strings.ToLower(b.Tag.Name)
		b.Tag.Value = strings.ToLower(b.Tag.Value)
		b.Tag.RawValue = strings.ToLower(b.Tag.RawValue)
		b.CloseText = strings.ToLower(b.CloseText)
	}
	return b, p.next()
}

func (p *parser) comment() *Comment {
	n := &Comment{CStyle: p.tok.CStyle()}
	if p.opts.PreserveWhitespace {
		n.Text = p.tok.Text()
	} else {
		n.Text = p.tok.Value()
	}
	return n
}

func setWhitespace(n Node, ws string) {
	switch n := n.(type) {
	case *Comment:
		n.Whitespace = ws
	case *Statement:
		n.Whitespace = ws
	case *Include:
		n.Whitespace = ws
	case *Block:
		n.Whitespace = ws
	}
}
