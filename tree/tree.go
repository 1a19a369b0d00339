// Package tree provides a writable view of parsed configuration:
// nodes keep their exact source text, so dumping an unmodified tree
// reproduces the input byte for byte, and edits only touch the text of
// the nodes they change.
package tree

import (
	"strings"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/parser"
	"github.com/confkit/apacheconf/scanner"
	"github.com/confkit/apacheconf/source"
)

// Error codes used by tree:
const (
	// SemanticError means parse output cannot form a valid node,
	// e.g. a block tag that is empty after unquoting.
	SemanticError = apacheconf.NodeErrors + iota

	// MutationError means an edit was rejected: an out-of-range index,
	// added text that does not parse to exactly one item, or setting a
	// value on a node that cannot carry one.
	MutationError
)

// Node is a writable syntax tree node: a *LeafNode, *BlockNode, or
// *ListNode.
type Node interface {
	// Type returns "statement", "comment", "include", "includeoptional",
	// "block", or "contents".
	Type() string

	// Whitespace returns the literal whitespace preceding the node.
	// For *ListNode it returns the trailing whitespace after the last
	// child instead, the leading run belongs to the first child.
	Whitespace() string

	// SetWhitespace replaces the whitespace returned by Whitespace.
	SetWhitespace(ws string)

	// Dump returns the exact configuration text of the subtree,
	// including the whitespace.
	Dump() string
}

// writableOptions forces the dialect flags the writable tree depends on:
// whitespace must be preserved for exact dumps, hash comments may span
// lines, and <x/> stays an ordinary tag so that expression tags ending
// in an operator are not eaten.
func writableOptions(opts apacheconf.Options) apacheconf.Options {
	opts.PreserveWhitespace = true
	opts.DisableEmptyElementTags = true
	opts.MultilineHashComments = true
	return opts
}

// ParseContents parses complete configuration text into a writable tree.
func ParseContents(text string, opts apacheconf.Options) (*ListNode, error) {
	opts = writableOptions(opts)
	c, e := parser.Parse(source.New("", []byte(text)), opts)
	if e != nil {
		return nil, e
	}
	return newListNode(c, opts)
}

// ParseItem parses text containing exactly one statement, comment,
// include, or block and returns a *LeafNode or *BlockNode for it.
func ParseItem(text string, opts apacheconf.Options) (Node, error) {
	opts = writableOptions(opts)
	item, e := parser.ParseItem(source.New("", []byte(text)), opts)
	if e != nil {
		return nil, e
	}
	return wrapNode(item, opts)
}

// ParseBlock parses text containing exactly one block.
func ParseBlock(text string, opts apacheconf.Options) (*BlockNode, error) {
	n, e := ParseItem(text, opts)
	if e != nil {
		return nil, e
	}
	block, is := n.(*BlockNode)
	if !is {
		return nil, apacheconf.FormatError(SemanticError, "%q is not a block", text)
	}
	return block, nil
}

func wrapNode(n parser.Node, opts apacheconf.Options) (Node, error) {
	if block, is := n.(*parser.Block); is {
		return newBlockNode(block, opts)
	}
	return &LeafNode{n}, nil
}

func dumpNode(n parser.Node) string {
	var b strings.Builder
	n.Dump(&b)
	return b.String()
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) > 1 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// LeafNode wraps a statement, comment, or include directive.
type LeafNode struct {
	node parser.Node
}

func (l *LeafNode) Type() string {
	switch n := l.node.(type) {
	case *parser.Comment:
		return "comment"
	case *parser.Include:
		if n.Optional {
			return "includeoptional"
		}
		return "include"
	default:
		return "statement"
	}
}

// Name returns the option name, the include keyword, or the full
// comment text.
func (l *LeafNode) Name() string {
	switch n := l.node.(type) {
	case *parser.Comment:
		return n.Text
	case *parser.Include:
		return n.Keyword
	case *parser.Statement:
		return n.Name
	}
	return ""
}

// HasValue reports whether the node carries a value: always true for
// includes, false for comments and valueless options.
func (l *LeafNode) HasValue() bool {
	switch n := l.node.(type) {
	case *parser.Include:
		return true
	case *parser.Statement:
		return n.HasValue
	}
	return false
}

// Value returns the logical option value (quotes stripped,
// continuations collapsed) or the include path.
func (l *LeafNode) Value() string {
	switch n := l.node.(type) {
	case *parser.Include:
		return n.Path
	case *parser.Statement:
		return n.Value
	}
	return ""
}

// SetValue replaces the node's value with text. The text is emitted
// verbatim on Dump, so quotes and escapes in it are kept as written.
// A valueless option gains a single-space separator. Comments reject
// values with a MutationError.
func (l *LeafNode) SetValue(text string) error {
	switch n := l.node.(type) {
	case *parser.Comment:
		return apacheconf.FormatError(MutationError, "cannot set a value on a comment")
	case *parser.Include:
		n.Path = text
	case *parser.Statement:
		if !n.HasValue {
			n.Sep = " "
			n.HasValue = true
		}
		n.RawValue = text
		n.Value, n.Quote = scanner.NormalizeValue(text)
	}
	return nil
}

func (l *LeafNode) Whitespace() string {
	switch n := l.node.(type) {
	case *parser.Comment:
		return n.Whitespace
	case *parser.Include:
		return n.Whitespace
	case *parser.Statement:
		return n.Whitespace
	}
	return ""
}

func (l *LeafNode) SetWhitespace(ws string) {
	switch n := l.node.(type) {
	case *parser.Comment:
		n.Whitespace = ws
	case *parser.Include:
		n.Whitespace = ws
	case *parser.Statement:
		n.Whitespace = ws
	}
}

func (l *LeafNode) Dump() string {
	return dumpNode(l.node)
}

// BlockNode wraps a tag-delimited block. The tag arguments behave like
// an option value; the children live in Contents.
type BlockNode struct {
	block    *parser.Block
	contents *ListNode
	opts     apacheconf.Options
}

func newBlockNode(b *parser.Block, opts apacheconf.Options) (*BlockNode, error) {
	if unquote(b.Tag.Name) == "" {
		return nil, apacheconf.FormatError(SemanticError, "empty block tag")
	}
	n := &BlockNode{block: b, opts: opts}
	if b.Contents != nil {
		var e error
		n.contents, e = newListNode(b.Contents, opts)
		if e != nil {
			return nil, e
		}
	}
	return n, nil
}

func (bn *BlockNode) Type() string {
	return "block"
}

// Tag returns the block type name with surrounding quotes stripped.
func (bn *BlockNode) Tag() string {
	return unquote(bn.block.Tag.Name)
}

// HasArguments reports whether the tag carries arguments after the name.
func (bn *BlockNode) HasArguments() bool {
	return bn.block.Tag.HasValue
}

// Arguments returns the logical tag arguments.
func (bn *BlockNode) Arguments() string {
	return bn.block.Tag.Value
}

// SetArguments replaces the tag arguments, like LeafNode.SetValue does
// for an option value. The close tag text is left untouched.
func (bn *BlockNode) SetArguments(text string) {
	tag := bn.block.Tag
	if !tag.HasValue {
		tag.Sep = " "
		tag.HasValue = true
	}
	tag.RawValue = text
	tag.Value, tag.Quote = scanner.NormalizeValue(text)
}

// Contents returns the block's children, nil for a self-closing block.
func (bn *BlockNode) Contents() *ListNode {
	return bn.contents
}

// Add inserts an item into the block contents, see ListNode.Add.
func (bn *BlockNode) Add(index int, text string) (Node, error) {
	if bn.contents == nil {
		return nil, apacheconf.FormatError(MutationError, "self-closing block has no contents")
	}
	return bn.contents.Add(index, text)
}

// Remove removes an item from the block contents, see ListNode.Remove.
func (bn *BlockNode) Remove(index int) (Node, error) {
	if bn.contents == nil {
		return nil, apacheconf.FormatError(MutationError, "self-closing block has no contents")
	}
	return bn.contents.Remove(index)
}

func (bn *BlockNode) Whitespace() string {
	return bn.block.Whitespace
}

func (bn *BlockNode) SetWhitespace(ws string) {
	bn.block.Whitespace = ws
}

func (bn *BlockNode) Dump() string {
	return dumpNode(bn.block)
}

// ListNode wraps an ordered list of items: the top level of a
// configuration or the contents of a block.
type ListNode struct {
	contents *parser.Contents
	children []Node
	opts     apacheconf.Options
}

func newListNode(c *parser.Contents, opts apacheconf.Options) (*ListNode, error) {
	l := &ListNode{contents: c, opts: opts}
	for _, item := range c.Items {
		n, e := wrapNode(item, opts)
		if e != nil {
			return nil, e
		}
		l.children = append(l.children, n)
	}
	return l, nil
}

func (l *ListNode) Type() string {
	return "contents"
}

// Len returns the number of items in the list.
func (l *ListNode) Len() int {
	return len(l.children)
}

// Child returns the item at index, nil when index is out of range.
func (l *ListNode) Child(index int) Node {
	if index < 0 || index >= len(l.children) {
		return nil
	}
	return l.children[index]
}

// Add parses text as a single item and inserts it at index (0 appends
// at the front, Len appends at the end). Leading whitespace in text
// becomes the new node's whitespace, so "\noption value" inserts the
// item on a line of its own. When the following item would end up on
// the same line as the new one, a newline is prepended to its
// whitespace. Returns the inserted node.
func (l *ListNode) Add(index int, text string) (Node, error) {
	if index < 0 || index > len(l.children) {
		return nil, apacheconf.FormatError(MutationError, "index %d out of range [0, %d]", index, len(l.children))
	}
	item, e := parser.ParseItem(source.New("", []byte(text)), l.opts)
	if e != nil {
		return nil, apacheconf.FormatError(MutationError, "cannot insert %q: %s", text, e.Error())
	}
	n, e := wrapNode(item, l.opts)
	if e != nil {
		return nil, e
	}
	l.contents.Items = append(l.contents.Items, nil)
	copy(l.contents.Items[index+1:], l.contents.Items[index:])
	l.contents.Items[index] = item
	l.children = append(l.children, nil)
	copy(l.children[index+1:], l.children[index:])
	l.children[index] = n
	if index+1 < len(l.children) {
		next := l.children[index+1]
		if !strings.Contains(next.Whitespace(), "\n") {
			next.SetWhitespace("\n" + next.Whitespace())
		}
	}
	return n, nil
}

// Remove removes and returns the item at index.
func (l *ListNode) Remove(index int) (Node, error) {
	if index < 0 || index >= len(l.children) {
		return nil, apacheconf.FormatError(MutationError, "index %d out of range [0, %d)", index, len(l.children))
	}
	n := l.children[index]
	l.children = append(l.children[:index], l.children[index+1:]...)
	l.contents.Items = append(l.contents.Items[:index], l.contents.Items[index+1:]...)
	return n, nil
}

// Whitespace returns the trailing whitespace after the last item.
func (l *ListNode) Whitespace() string {
	return l.contents.Trailing
}

func (l *ListNode) SetWhitespace(ws string) {
	l.contents.Trailing = ws
}

func (l *ListNode) Dump() string {
	return dumpNode(l.contents)
}
