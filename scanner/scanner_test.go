package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/source"
)

func scanAll(t *testing.T, text string, opts apacheconf.Options) []*Token {
	t.Helper()
	s := New(source.New("test", []byte(text)), opts)
	var tokens []*Token
	for {
		tok, e := s.Next()
		require.NoError(t, e)
		if tok.Kind() == EofToken {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func scanError(t *testing.T, text string, opts apacheconf.Options) *apacheconf.Error {
	t.Helper()
	s := New(source.New("test", []byte(text)), opts)
	for {
		tok, e := s.Next()
		if e != nil {
			var ae *apacheconf.Error
			require.ErrorAs(t, e, &ae)
			return ae
		}
		require.NotEqual(t, EofToken, tok.Kind(), "expecting scan error, got end of input")
	}
}

func TestWhitespaceDropped(t *testing.T) {
	tokens := scanAll(t, "   \t\t  \t \r  \n\n", apacheconf.DefaultOptions())
	assert.Empty(t, tokens)
}

func TestWhitespacePreserved(t *testing.T) {
	opts := apacheconf.DefaultOptions()
	opts.PreserveWhitespace = true

	tokens := scanAll(t, "a b\t \n c d", opts)
	require.Len(t, tokens, 3)
	assert.Equal(t, OptionValueToken, tokens[0].Kind())
	assert.Equal(t, NewlineToken, tokens[1].Kind())
	assert.Equal(t, "\t \n ", tokens[1].Text())
	assert.Equal(t, OptionValueToken, tokens[2].Kind())

	tokens = scanAll(t, "  \ta b", opts)
	require.Len(t, tokens, 2)
	assert.Equal(t, WhitespaceToken, tokens[0].Kind())
	assert.Equal(t, "  \t", tokens[0].Text())
	assert.Equal(t, OptionValueToken, tokens[1].Kind())
}

func TestOptionAndValue(t *testing.T) {
	text := "a b\n" +
		"a = b\n" +
		"a    b\n" +
		"a= b\n" +
		"a =b\n" +
		"a   b\n" +
		"a \"b\"\n" +
		"a = \"b\"\n"

	tokens := scanAll(t, text, apacheconf.DefaultOptions())
	require.Len(t, tokens, 8)
	for _, tok := range tokens {
		assert.Equal(t, OptionValueToken, tok.Kind())
		assert.Equal(t, "a", tok.Name())
		assert.Equal(t, "b", tok.Value())
		assert.True(t, tok.HasValue())
	}
}

func TestSeparatorText(t *testing.T) {
	for _, c := range []struct {
		text, sep string
	}{
		{"a b", " "},
		{"a = b", " = "},
		{"a= b", "= "},
		{"a =b", " ="},
		{"a \t=\t b", " \t=\t "},
	} {
		tokens := scanAll(t, c.text, apacheconf.DefaultOptions())
		require.Len(t, tokens, 1, c.text)
		assert.Equal(t, c.sep, tokens[0].Sep(), c.text)
	}
}

func TestQuotedValues(t *testing.T) {
	for _, c := range []struct {
		text, value string
		quote       Quote
	}{
		{"a b c", "b c", NoQuote},
		{`a "b c"`, "b c", DoubleQuote},
		{"a 'b c'", "b c", SingleQuote},
		{`a "b 'c'"`, "b 'c'", DoubleQuote},
	} {
		tokens := scanAll(t, c.text, apacheconf.DefaultOptions())
		require.Len(t, tokens, 1, c.text)
		assert.Equal(t, c.value, tokens[0].Value(), c.text)
		assert.Equal(t, c.quote, tokens[0].Quote(), c.text)
	}
}

func TestBareOption(t *testing.T) {
	tokens := scanAll(t, "key2\nkey value\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, "key2", tokens[0].Name())
	assert.False(t, tokens[0].HasValue())
	assert.Equal(t, "key", tokens[1].Name())
	assert.Equal(t, "value", tokens[1].Value())
}

func TestIsolatedEquals(t *testing.T) {
	e := scanError(t, "=\n", apacheconf.DefaultOptions())
	assert.Equal(t, OptionValueError, e.Code)
	assert.Equal(t, 1, e.Line)
}

func TestLiteralTags(t *testing.T) {
	tokens := scanAll(t, "<a>\n</a>\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, OpenTagToken, tokens[0].Kind())
	assert.Equal(t, "a", tokens[0].Name())
	assert.False(t, tokens[0].HasValue())
	assert.Equal(t, CloseTagToken, tokens[1].Kind())
	assert.Equal(t, "a", tokens[1].Name())
}

func TestCloseTagStopsAtFirstAngle(t *testing.T) {
	tokens := scanAll(t, "</a> <b>\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, CloseTagToken, tokens[0].Kind())
	assert.Equal(t, "a", tokens[0].Name())
	assert.Equal(t, "</a>", tokens[0].Text())
	assert.Equal(t, OpenTagToken, tokens[1].Kind())
	assert.Equal(t, "b", tokens[1].Name())
}

func TestExpressionTags(t *testing.T) {
	tokens := scanAll(t, "    <if a == 1>\n    </if>\n    ", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, OpenTagToken, tokens[0].Kind())
	assert.Equal(t, "if", tokens[0].Name())
	assert.Equal(t, "a == 1", tokens[0].Value())
	assert.Equal(t, CloseTagToken, tokens[1].Kind())
	assert.Equal(t, "if", tokens[1].Name())
}

func TestNamedTagSplitDisabled(t *testing.T) {
	opts := apacheconf.DefaultOptions()
	opts.NamedBlocks = false

	tokens := scanAll(t, "<a b c>", opts)
	require.Len(t, tokens, 1)
	assert.Equal(t, "a b c", tokens[0].Name())
	assert.False(t, tokens[0].HasValue())
}

func TestQuotedTagArguments(t *testing.T) {
	tokens := scanAll(t, `<Directory "/a b">`, apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "Directory", tokens[0].Name())
	assert.Equal(t, "/a b", tokens[0].Value())
	assert.Equal(t, `"/a b"`, tokens[0].RawValue())
	assert.Equal(t, DoubleQuote, tokens[0].Quote())
}

func TestSelfClosingTag(t *testing.T) {
	tokens := scanAll(t, "<a/>\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, OpenCloseTagToken, tokens[0].Kind())
	assert.Equal(t, "a", tokens[0].Name())

	tokens = scanAll(t, "<a name/>\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, OpenCloseTagToken, tokens[0].Kind())
	assert.Equal(t, "a", tokens[0].Name())
	assert.Equal(t, "name", tokens[0].Value())

	// a lone "/" is argument text, not self-closure
	tokens = scanAll(t, "<a />\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, OpenTagToken, tokens[0].Kind())
	assert.Equal(t, "a", tokens[0].Name())
	assert.Equal(t, "/", tokens[0].Value())

	opts := apacheconf.DefaultOptions()
	opts.DisableEmptyElementTags = true
	tokens = scanAll(t, "<a/>\n", opts)
	require.Len(t, tokens, 1)
	assert.Equal(t, OpenTagToken, tokens[0].Kind())
	assert.Equal(t, "a/", tokens[0].Name())
}

func TestComments(t *testing.T) {
	tokens := scanAll(t, "#\n# a\n#a\n# a b\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 4)
	values := make([]string, len(tokens))
	for i, tok := range tokens {
		require.Equal(t, CommentToken, tok.Kind())
		values[i] = tok.Value()
	}
	assert.Equal(t, []string{"", " a", "a", " a b"}, values)
}

func TestMultilineHashComment(t *testing.T) {
	opts := apacheconf.DefaultOptions()
	opts.MultilineHashComments = true

	tokens := scanAll(t, "# a \\\n  b\nc d\n", opts)
	require.Len(t, tokens, 2)
	assert.Equal(t, CommentToken, tokens[0].Kind())
	assert.Equal(t, "# a \\\n  b", tokens[0].Text())
	assert.Equal(t, OptionValueToken, tokens[1].Kind())

	// without the flag the continuation is an ordinary statement
	tokens = scanAll(t, "# a \\\n  b\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, "# a \\", tokens[0].Text())
	assert.Equal(t, OptionValueToken, tokens[1].Kind())
}

func TestCStyleComment(t *testing.T) {
	tokens := scanAll(t, "a b\n/* c\nd */ e f\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 3)
	assert.Equal(t, CommentToken, tokens[1].Kind())
	assert.True(t, tokens[1].CStyle())
	assert.Equal(t, " c\nd ", tokens[1].Value())
	assert.Equal(t, "/* c\nd */", tokens[1].Text())
	assert.Equal(t, OptionValueToken, tokens[2].Kind())
	assert.Equal(t, "e", tokens[2].Name())
	assert.Equal(t, "f", tokens[2].Value())
}

func TestNestedCStyleComment(t *testing.T) {
	tokens := scanAll(t, "/* outer /* inner */ still-outer */", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, CommentToken, tokens[0].Kind())
	assert.Equal(t, "/* outer /* inner */ still-outer */", tokens[0].Text())
}

func TestUnterminatedCStyleComment(t *testing.T) {
	e := scanError(t, "/* a /* b */", apacheconf.DefaultOptions())
	assert.Equal(t, UnterminatedCommentError, e.Code)
}

func TestIncludesConfigGeneral(t *testing.T) {
	text := "<<include first.conf>>\n<a>\n<<Include second.conf>>\n</a>\n"
	tokens := scanAll(t, text, apacheconf.DefaultOptions())
	require.Len(t, tokens, 4)

	assert.Equal(t, IncludeToken, tokens[0].Kind())
	assert.Equal(t, "first.conf", tokens[0].Value())
	assert.True(t, tokens[0].Perl())
	assert.False(t, tokens[0].Optional())

	assert.Equal(t, IncludeToken, tokens[2].Kind())
	assert.Equal(t, "second.conf", tokens[2].Value())
	assert.Equal(t, "Include", tokens[2].Name())
}

func TestIncludesApache(t *testing.T) {
	text := "include first.conf\n<a>\nInclude second.conf\n</a>\nIncludeOptional maybe/*.conf\n"
	tokens := scanAll(t, text, apacheconf.DefaultOptions())
	require.Len(t, tokens, 5)

	assert.Equal(t, IncludeToken, tokens[0].Kind())
	assert.Equal(t, "first.conf", tokens[0].Value())
	assert.False(t, tokens[0].Perl())

	assert.Equal(t, IncludeToken, tokens[2].Kind())
	assert.Equal(t, "second.conf", tokens[2].Value())

	assert.Equal(t, IncludeToken, tokens[4].Kind())
	assert.True(t, tokens[4].Optional())
	assert.Equal(t, "maybe/*.conf", tokens[4].Value())
}

func TestApacheIncludeDisabled(t *testing.T) {
	opts := apacheconf.DefaultOptions()
	opts.UseApacheInclude = false

	tokens := scanAll(t, "include first.conf\n<<include second.conf>>\n", opts)
	require.Len(t, tokens, 2)
	assert.Equal(t, OptionValueToken, tokens[0].Kind())
	assert.Equal(t, "include", tokens[0].Name())
	assert.Equal(t, "first.conf", tokens[0].Value())
	assert.Equal(t, IncludeToken, tokens[1].Kind())
}

func TestMultilineContinuation(t *testing.T) {
	tokens := scanAll(t, "a b \\\nc\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "a", tokens[0].Name())
	assert.Equal(t, "b c", tokens[0].Value())
	assert.Equal(t, "b \\\nc", tokens[0].RawValue())

	// indentation of the continuation line collapses to one space
	tokens = scanAll(t, "a abc \\\n        pqr\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "abc pqr", tokens[0].Value())

	// a blank continuation line ends the value
	tokens = scanAll(t, "a b \\\nc\\\n\nd e\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, "b c", tokens[0].Value())
	assert.Equal(t, "d", tokens[1].Name())
}

func TestContinuationSeparator(t *testing.T) {
	tokens := scanAll(t, "option =\\\n  value\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "option", tokens[0].Name())
	assert.Equal(t, " =\\\n  ", tokens[0].Sep())
	assert.Equal(t, "value", tokens[0].Value())
	assert.Equal(t, "value", tokens[0].RawValue())
}

func TestEscapedHash(t *testing.T) {
	tokens := scanAll(t, "a b\\#c\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "b#c", tokens[0].Value())

	// a backslash before the hash swallows the rest of the line
	tokens = scanAll(t, "c \\# # c\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "c", tokens[0].Name())
	assert.Equal(t, "# # c", tokens[0].Value())
}

func TestInlineComment(t *testing.T) {
	tokens := scanAll(t, "a b # c\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, OptionValueToken, tokens[0].Kind())
	assert.Equal(t, "b", tokens[0].Value())
	assert.Equal(t, CommentToken, tokens[1].Kind())
	assert.Equal(t, " c", tokens[1].Value())
}

func TestEscapedTrailingWhitespace(t *testing.T) {
	tokens := scanAll(t, "a b\\ \n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "b\\ ", tokens[0].Value())

	tokens = scanAll(t, "a b\\\\ \n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "b\\\\", tokens[0].Value())
}

func TestNoStripValues(t *testing.T) {
	opts := apacheconf.DefaultOptions()
	opts.NoStripValues = true

	tokens := scanAll(t, "a b  \n", opts)
	require.Len(t, tokens, 1)
	assert.Equal(t, "b  ", tokens[0].Value())

	tokens = scanAll(t, "a b  \n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "b", tokens[0].Value())
}

func TestHeredoc(t *testing.T) {
	text := "PYTHON <<MYPYTHON\n" +
		"        def a():\n" +
		"            x = y\n" +
		"            return\n" +
		"      MYPYTHON\n"

	tokens := scanAll(t, text, apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "PYTHON", tokens[0].Name())
	assert.Equal(t, "        def a():\n            x = y\n            return",
		tokens[0].Value())
	assert.Equal(t, "<<MYPYTHON\n"+
		"        def a():\n"+
		"            x = y\n"+
		"            return\n"+
		"      MYPYTHON", tokens[0].RawValue())
}

func TestHeredocKeepsInnerBackslashes(t *testing.T) {
	text := "PYTHON <<END\n" +
		"def fn():\n" +
		"        return 1 + \\\n" +
		"    fn2()\n" +
		"END\n"

	tokens := scanAll(t, text, apacheconf.DefaultOptions())
	require.Len(t, tokens, 1)
	assert.Equal(t, "def fn():\n        return 1 + \\\n    fn2()", tokens[0].Value())
}

func TestUnterminatedHeredoc(t *testing.T) {
	e := scanError(t, "a <<END\nb c\n", apacheconf.DefaultOptions())
	assert.Equal(t, UnterminatedHeredocError, e.Code)
	assert.Equal(t, 1, e.Line)
}

func TestTokenPositions(t *testing.T) {
	tokens := scanAll(t, "a b\n  c d\n", apacheconf.DefaultOptions())
	require.Len(t, tokens, 2)
	assert.Equal(t, "test", tokens[0].SourceName())
	assert.Equal(t, 1, tokens[0].Line())
	assert.Equal(t, 1, tokens[0].Col())
	assert.Equal(t, 2, tokens[1].Line())
	assert.Equal(t, 3, tokens[1].Col())
}

func TestSplitOptionValue(t *testing.T) {
	for _, c := range []struct {
		text, name, sep, value string
		ok                     bool
	}{
		{"a b", "a", " ", "b", true},
		{"a = b c", "a", " = ", "b c", true},
		{"option =\\\n  value", "option", " =\\\n  ", "value", true},
		{"bare", "", "", "bare", false},
		{"= b", "", "", "= b", false},
	} {
		name, sep, value, ok := SplitOptionValue(c.text)
		assert.Equal(t, c.ok, ok, c.text)
		assert.Equal(t, c.name, name, c.text)
		assert.Equal(t, c.sep, sep, c.text)
		assert.Equal(t, c.value, value, c.text)
	}
}
