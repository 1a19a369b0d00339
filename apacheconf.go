/*
Package apacheconf parses Apache-httpd-style and Perl Config::General-style
configuration files.

Consists of subpackages:
  - cmd/apacheconftool: console utility dumping parsed configuration as JSON or YAML;
  - source: defines named source text used for error positions;
  - scanner: tokenizer for the configuration dialect (comments, block tags,
    option-value pairs, includes, here-documents, line continuations);
  - parser: builds a syntax tree from the token stream;
  - tree: writable syntax-tree nodes supporting byte-exact text regeneration;
  - reader: filesystem capability consumed by the loader;
  - loader: turns syntax trees into plain maps, resolving includes,
    duplicates, and variable interpolation.

Typical usage is:

1. Pick dialect Options (DefaultOptions for Config::General style,
NativeApacheOptions for httpd.conf style files).

2. For read-only consumption, feed files to a loader.Loader and work with
the resulting map.

3. For editing, parse with tree.ParseContents, mutate nodes through the
tree API, and write the result back with Dump: untouched bytes are
reproduced exactly.
*/
package apacheconf

import (
	"fmt"
)

// Error classes used by subpackages, each class contains up to 99 error codes:
const (
	LexicalErrors = 101 // used by scanner
	SyntaxErrors  = 201 // used by parser
	NodeErrors    = 301 // used by tree
	LoaderErrors  = 401 // used by loader
)

// Error is the error type used by apacheconf subpackages.
type Error struct {
	// Code contains non-zero error code.
	Code int

	// Message contains non-empty error message including source name and position information if provided.
	Message string

	// SourceName contains source name that caused this error or empty string.
	SourceName string

	// Line contains line number in source file or 0.
	Line int

	// Col contains column number in source file or 0.
	Col int
}

// SourcePos is used to retrieve source name and position information when constructing an error;
// source.Pos and scanner.Token implement this interface.
type SourcePos interface {
	// SourceName returns source file name or empty string.
	SourceName() string
	// Line returns line number or 0.
	Line() int
	// Col returns column number or 0.
	Col() int
}

// NewError creates new Error structure.
// name, line, and col will be added to error message if provided (non-zero).
func NewError(code int, msg, name string, line, col int) *Error {
	if name != "" && line != 0 {
		msg += fmt.Sprintf(" in %s at line %d", name, line)
		if col != 0 {
			msg += fmt.Sprintf(" col %d", col)
		}
	} else if line != 0 {
		msg += fmt.Sprintf(" at line %d", line)
	}
	return &Error{code, msg, name, line, col}
}

// Error simply returns Error.Message.
func (e *Error) Error() string {
	return e.Message
}

// FormatError creates Error structure with no source and position information.
// params will be added to error message using fmt.Sprintf function.
func FormatError(code int, msg string, params ...any) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return NewError(code, msg, "", 0, 0)
}

// FormatErrorPos creates Error structure with source and position information.
// pos must not be nil.
// params will be added to error message using fmt.Sprintf function.
func FormatErrorPos(pos SourcePos, code int, msg string, params ...any) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return NewError(code, msg, pos.SourceName(), pos.Line(), pos.Col())
}
