// Package scanner implements the tokenizer for Apache-httpd-style and
// Config::General-style configuration text.
package scanner

import (
	"regexp"
	"strings"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/source"
)

// Error codes used by scanner:
const (
	// OptionValueError indicates malformed option-value text, e.g. an isolated "=".
	OptionValueError = apacheconf.LexicalErrors + iota

	// UnterminatedCommentError indicates a C-style comment with no matching "*/".
	UnterminatedCommentError

	// UnterminatedHeredocError indicates a here-document whose anchor line is missing.
	UnterminatedHeredocError
)

// Scanner converts configuration text into a stream of Tokens.
// Whitespace and newline tokens are emitted only when
// Options.PreserveWhitespace is set, otherwise they are dropped.
// A Scanner holds a position inside one source, create a new one per parse.
type Scanner struct {
	src  *source.Source
	opts apacheconf.Options
	text string
	pos  int
}

// New creates a Scanner over src using the given dialect options.
func New(src *source.Source, opts apacheconf.Options) *Scanner {
	return &Scanner{src: src, opts: opts, text: string(src.Content())}
}

// Next fetches the token starting at the current position and advances past it.
// At the end of input it returns a token of EofToken kind.
func (s *Scanner) Next() (*Token, error) {
	for {
		if s.pos >= len(s.text) {
			return s.newToken(EofToken, s.pos, s.pos), nil
		}

		switch c := s.text[s.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n',
			c == '\\' && s.restOfLineBlank(s.pos+1):
			t := s.scanWhitespace()
			if s.opts.PreserveWhitespace {
				return t, nil
			}

		case c == '#':
			return s.scanHashComment(), nil

		case c == '/' && s.opts.CComments && strings.HasPrefix(s.text[s.pos:], "/*"):
			return s.scanCComment()

		case c == '<':
			t, e := s.scanAngle()
			if t != nil || e != nil {
				return t, e
			}
			return s.scanOptionValue()

		default:
			return s.scanOptionValue()
		}
	}
}

func (s *Scanner) newToken(kind Kind, start, end int) *Token {
	t := &Token{kind: kind, text: s.text[start:end], src: s.src}
	t.line, t.col = s.src.LineCol(start)
	return t
}

func (s *Scanner) lineEnd(pos int) int {
	for pos < len(s.text) && s.text[pos] != '\r' && s.text[pos] != '\n' {
		pos++
	}
	return pos
}

func (s *Scanner) skipNewline(pos int) int {
	if pos < len(s.text) && s.text[pos] == '\r' {
		pos++
	}
	if pos < len(s.text) && s.text[pos] == '\n' {
		pos++
	}
	return pos
}

// scanWhitespace consumes a whitespace run. A backslash with nothing
// but blanks up to the end of the line is an escaped line break and
// belongs to the run.
func (s *Scanner) scanWhitespace() *Token {
	start := s.pos
	kind := WhitespaceToken
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		if c == '\r' || c == '\n' {
			kind = NewlineToken
		} else if c != ' ' && c != '\t' {
			if c != '\\' || !s.restOfLineBlank(s.pos+1) {
				break
			}
		}
		s.pos++
	}
	return s.newToken(kind, start, s.pos)
}

// restOfLineBlank reports whether only spaces and tabs remain between
// pos and the end of the line, the line break included.
func (s *Scanner) restOfLineBlank(pos int) bool {
	for ; pos < len(s.text); pos++ {
		switch s.text[pos] {
		case ' ', '\t':
		case '\r', '\n':
			return true
		default:
			return false
		}
	}
	return false
}

func (s *Scanner) scanHashComment() *Token {
	start := s.pos
	s.pos = s.lineEnd(s.pos)
	if s.opts.MultilineHashComments {
		for s.pos < len(s.text) && trailingBackslashes(s.text[start:s.pos])%2 == 1 {
			s.pos = s.lineEnd(s.skipNewline(s.pos))
		}
	}
	t := s.newToken(CommentToken, start, s.pos)
	t.value = t.text[1:]
	return t
}

func (s *Scanner) scanCComment() (*Token, error) {
	start := s.pos
	i := start + 2
	depth := 1
	for i < len(s.text) {
		if strings.HasPrefix(s.text[i:], "/*") {
			depth++
			i += 2
			continue
		}
		if strings.HasPrefix(s.text[i:], "*/") {
			depth--
			i += 2
			if depth == 0 {
				break
			}
			continue
		}
		i++
	}
	if depth > 0 {
		return nil, apacheconf.FormatErrorPos(source.NewPos(s.src, start),
			UnterminatedCommentError, "unterminated C-style comment")
	}
	s.pos = i
	t := s.newToken(CommentToken, start, i)
	t.value = t.text[2 : len(t.text)-2]
	t.cstyle = true
	return t, nil
}

// scanAngle tries to fetch a tag or Perl-style include at "<". It returns
// nil, nil when the text is not a valid tag, the caller then falls back to
// ordinary option-value scanning.
func (s *Scanner) scanAngle() (*Token, error) {
	start := s.pos
	eol := s.lineEnd(start)
	line := s.text[start:eol]

	if t := s.scanPerlInclude(line, start); t != nil {
		return t, nil
	}

	// a close tag ends at the first ">" so that a sibling tag on the
	// same line is left for the next token
	if strings.HasPrefix(line, "</") {
		gt := strings.IndexByte(line[2:], '>') + 2
		if gt > 2 {
			s.pos = start + gt + 1
			t := s.newToken(CloseTagToken, start, s.pos)
			t.name = line[2:gt]
			return t, nil
		}
		return nil, nil
	}

	gt := strings.LastIndexByte(line, '>')
	if gt <= 1 {
		return nil, nil
	}

	// <x/> and <x args/> are self-closing, but a "/" standing alone, as
	// in <x />, is ordinary argument text
	if !s.opts.DisableEmptyElementTags && gt > 2 && line[gt-1] == '/' &&
		line[gt-2] != ' ' && line[gt-2] != '/' {
		s.pos = start + gt + 1
		t := s.newToken(OpenCloseTagToken, start, s.pos)
		s.fillTag(t, line[1:gt-1])
		return t, nil
	}

	s.pos = start + gt + 1
	t := s.newToken(OpenTagToken, start, s.pos)
	s.fillTag(t, line[1:gt])
	return t, nil
}

func (s *Scanner) fillTag(t *Token, interior string) {
	// a fully quoted tag such as <"a b"> is a single name, never split
	if s.opts.NamedBlocks && interior[0] != '"' && interior[0] != '\'' {
		if name, sep, value, ok := SplitOptionValue(interior); ok {
			t.name, t.sep, t.rawValue = name, sep, value
			t.value, t.quote = normalizeValue(value, !s.opts.NoStripValues)
			t.hasValue = true
			return
		}
	}
	t.name = interior
}

func (s *Scanner) scanPerlInclude(line string, start int) *Token {
	if len(line) < 2 || line[1] != '<' {
		return nil
	}
	rest := line[2:]
	if len(rest) < 8 || !strings.EqualFold(rest[:7], "include") {
		return nil
	}
	j := 7
	for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t') {
		j++
	}
	if j == 7 {
		return nil
	}
	for end := strings.LastIndex(rest, ">>"); end > j; end = strings.LastIndex(rest[:end], ">>") {
		path := rest[j:end]
		if strings.Contains(path, "\t") {
			continue
		}
		s.pos = start + 2 + end + 2
		t := s.newToken(IncludeToken, start, s.pos)
		t.name = rest[:7]
		t.sep = rest[7:j]
		t.value = path
		t.perl = true
		return t
	}
	return nil
}

func (s *Scanner) scanOptionValue() (*Token, error) {
	start := s.pos
	i := start
	for i < len(s.text) && !isNameStop(s.text[i]) {
		i++
	}
	if i == start {
		return nil, s.optionError(start, s.lineEnd(start))
	}
	name := s.text[start:i]

	j := i
	for j < len(s.text) {
		c := s.text[j]
		if c != ' ' && c != '\t' && c != '=' {
			break
		}
		j++
	}

	if t := s.scanApacheInclude(start, name, i, j); t != nil {
		return t, nil
	}

	k := j
	for k < len(s.text) && s.text[k] != '\r' && s.text[k] != '\n' && s.text[k] != '#' {
		k++
	}

	if k == j {
		// bare directive, any separator text is given back as whitespace
		if strings.ContainsRune(s.text[i:j], '=') {
			return nil, s.optionError(start, j)
		}
		s.pos = i
		t := s.newToken(OptionValueToken, start, i)
		t.name = name
		return t, nil
	}

	if s.text[k-1] == '\\' {
		end := s.stripEnd(start, s.scanMultiline(k))
		raw := s.text[start:end]
		_, sep, rawValue, ok := SplitOptionValue(raw)
		if !ok {
			return nil, s.optionError(start, end)
		}
		s.pos = end
		t := s.newToken(OptionValueToken, start, end)
		t.name, t.sep, t.rawValue = name, sep, rawValue
		t.value, t.quote = normalizeValue(rawValue, !s.opts.NoStripValues)
		t.hasValue = true
		return t, nil
	}

	end := s.stripEnd(start, k)
	rawValue := s.text[j:end]
	value, quote := normalizeValue(rawValue, !s.opts.NoStripValues)
	if quote == NoQuote && strings.HasPrefix(value, "<<") {
		if anchor := strings.TrimSpace(value[2:]); anchor != "" {
			return s.scanHeredoc(start, name, s.text[i:j], j, k, anchor)
		}
	}
	s.pos = end
	t := s.newToken(OptionValueToken, start, end)
	t.name, t.sep, t.rawValue = name, s.text[i:j], rawValue
	t.value, t.quote = value, quote
	t.hasValue = true
	return t, nil
}

func (s *Scanner) scanApacheInclude(start int, name string, i, j int) *Token {
	if !s.opts.UseApacheInclude {
		return nil
	}
	kw := strings.ToLower(name)
	if kw != "include" && kw != "includeoptional" {
		return nil
	}
	if j == i || strings.ContainsRune(s.text[i:j], '=') {
		return nil
	}
	eol := s.lineEnd(j)
	if eol == j {
		return nil
	}
	s.pos = eol
	t := s.newToken(IncludeToken, start, eol)
	t.name = name
	t.sep = s.text[i:j]
	t.value = s.text[j:eol]
	t.optional = kw == "includeoptional"
	return t
}

// scanMultiline extends a value whose line ends in a backslash through
// the following lines and returns the position right after the first
// line not ending in a backslash. An empty line or end of input
// terminates the value.
func (s *Scanner) scanMultiline(pos int) int {
	for pos < len(s.text) {
		if c := s.text[pos]; c == '\r' || c == '\n' {
			pos = s.skipNewline(pos)
		}
		eol := s.lineEnd(pos)
		if !strings.HasSuffix(s.text[pos:eol], "\\") {
			return eol
		}
		pos = eol
	}
	return pos
}

func (s *Scanner) scanHeredoc(start int, name, sep string, valStart, lineEnd int, anchor string) (*Token, error) {
	bodyStart := s.skipNewline(lineEnd)
	for i := bodyStart; i < len(s.text); {
		eol := s.lineEnd(i)
		if strings.TrimLeft(s.text[i:eol], " \t") == anchor {
			s.pos = eol
			t := s.newToken(OptionValueToken, start, eol)
			t.name, t.sep = name, sep
			t.rawValue = s.text[valStart:eol]
			t.value = stripValue(s.text[bodyStart:eol-len(anchor)], " \t\r\n")
			t.hasValue = true
			return t, nil
		}
		i = s.skipNewline(eol)
	}
	return nil, apacheconf.FormatErrorPos(source.NewPos(s.src, start),
		UnterminatedHeredocError, "unterminated here-document, expected %q", anchor)
}

func (s *Scanner) stripEnd(start, end int) int {
	if s.opts.NoStripValues {
		return end
	}
	return start + len(stripValue(s.text[start:end], " \t"))
}

func (s *Scanner) optionError(start, end int) error {
	return apacheconf.FormatErrorPos(source.NewPos(s.src, start),
		OptionValueError, "syntax error in option-value pair %q", s.text[start:end])
}

func isNameStop(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '=' || c == '#'
}

// SplitOptionValue splits raw option-value text into its name, separator,
// and value parts. The separator is the first run of spaces, tabs, "=",
// line breaks, and backslash-escaped line breaks after the name. ok is
// false when text holds no name or no separator.
func SplitOptionValue(text string) (name, sep, value string, ok bool) {
	i := 0
	for i < len(text) && !isSepStart(text, i) {
		i++
	}
	j := i
	for j < len(text) {
		c := text[j]
		if c == ' ' || c == '\t' || c == '=' || c == '\r' || c == '\n' {
			j++
			continue
		}
		if c == '\\' && j+1 < len(text) && (text[j+1] == '\r' || text[j+1] == '\n') {
			j += 2
			continue
		}
		break
	}
	if i == 0 || j == i {
		return "", "", text, false
	}
	return text[:i], text[i:j], text[j:], true
}

func isSepStart(text string, i int) bool {
	switch text[i] {
	case ' ', '\t', '=', '\r', '\n':
		return true
	case '\\':
		return i+1 < len(text) && (text[i+1] == '\r' || text[i+1] == '\n')
	}
	return false
}

// NormalizeValue derives the logical value from raw value text: escaped
// line breaks are collapsed, trailing whitespace trimmed, surrounding
// quotes stripped, and "\#" unescaped.
func NormalizeValue(raw string) (string, Quote) {
	return normalizeValue(raw, true)
}

// normalizeValue is NormalizeValue with the trailing-whitespace trim
// optional; whitespace preceded by an odd number of backslashes is
// escaped and survives the trim either way.
// continuationRe is an escaped line break with the whitespace around
// it, the whole run collapses to one space.
var continuationRe = regexp.MustCompile(`[ \t]*\\\r?\n[ \t]*`)

func normalizeValue(raw string, strip bool) (string, Quote) {
	v := continuationRe.ReplaceAllString(raw, " ")
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	if strip {
		v = stripValue(v, " \t")
	}
	quote := NoQuote
	if len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
		quote = DoubleQuote
	}
	if len(v) > 1 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
		quote = SingleQuote
	}
	return strings.ReplaceAll(v, "\\#", "#"), quote
}

func stripValue(v, cutset string) string {
	for len(v) > 0 && strings.IndexByte(cutset, v[len(v)-1]) >= 0 {
		if trailingBackslashes(v[:len(v)-1])%2 == 1 {
			break
		}
		v = v[:len(v)-1]
	}
	return v
}

func trailingBackslashes(s string) int {
	cnt := 0
	for cnt < len(s) && s[len(s)-1-cnt] == '\\' {
		cnt++
	}
	return cnt
}
