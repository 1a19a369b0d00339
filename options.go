package apacheconf

// Options selects which syntax variants the scanner and parser accept.
// The zero value disables everything; use DefaultOptions or
// NativeApacheOptions as a starting point.
type Options struct {
	// CComments enables C-style /* ... */ comments (nesting).
	CComments bool

	// UseApacheInclude enables the native "include" / "includeoptional"
	// directive keywords. The Perl Config::General spelling
	// <<include path>> is always recognized.
	UseApacheInclude bool

	// MultilineHashComments lets a hash comment ending in an unescaped
	// backslash continue onto the following line.
	MultilineHashComments bool

	// NamedBlocks splits a block tag containing whitespace into a type
	// name and an argument string, e.g. <VirtualHost *:80>. When false
	// the whole tag text is the block identifier.
	NamedBlocks bool

	// DisableEmptyElementTags treats <x/> as an ordinary open tag with
	// the literal name "x/" instead of a self-closing block. Needed for
	// expression tags such as <If "a != b"/> that end in operators.
	DisableEmptyElementTags bool

	// LowerCaseNames folds tag names, close-tag text, and option names
	// to lower case after parsing.
	LowerCaseNames bool

	// PreserveWhitespace keeps whitespace and newline tokens along with
	// exact separator text. Required for the writable tree.
	PreserveWhitespace bool

	// NoStripValues keeps trailing whitespace on unquoted values.
	NoStripValues bool
}

// DefaultOptions returns the Config::General-compatible dialect:
// C-style comments, native include keywords, and named blocks enabled.
func DefaultOptions() Options {
	return Options{
		CComments:        true,
		UseApacheInclude: true,
		NamedBlocks:      true,
	}
}

// NativeApacheOptions returns the dialect for native Apache httpd
// configuration files.
func NativeApacheOptions() Options {
	opts := DefaultOptions()
	opts.PreserveWhitespace = true
	opts.DisableEmptyElementTags = true
	opts.MultilineHashComments = true
	return opts
}
