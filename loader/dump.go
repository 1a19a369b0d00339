package loader

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/reader"
)

// Dumps renders a loaded document back into configuration text. Keys
// are emitted in lexical order, values containing anything but letters
// and digits are double-quoted, maps become blocks. The result parses
// back to an equal document, the original formatting is not kept; use
// the tree package when formatting must survive.
func (l *Loader) Dumps(config map[string]any) (string, error) {
	var b strings.Builder
	if e := dumpMap(&b, config, 0); e != nil {
		return "", e
	}
	return b.String(), nil
}

// DumpFile writes the rendered document to the named file. The write
// is atomic when the loader's reader supports it.
func (l *Loader) DumpFile(path string, config map[string]any) error {
	text, e := l.Dumps(config)
	if e != nil {
		return e
	}
	w, canWrite := l.rdr.(reader.Writer)
	if !canWrite {
		return apacheconf.FormatError(DumpError, "reader cannot write files")
	}
	if e = w.SaveFile(path, []byte(text)); e != nil {
		return apacheconf.FormatError(DumpError, "cannot write file %s: %s", path, e.Error())
	}
	l.log.WithField("file", path).Debug("configuration written")
	return nil
}

func dumpMap(b *strings.Builder, m map[string]any, indent int) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	spacing := strings.Repeat(" ", indent)
	for _, key := range keys {
		switch value := m[key].(type) {
		case nil:
			fmt.Fprintf(b, "%s%s\n", spacing, key)
		case string:
			dumpScalar(b, spacing, key, value)
		case []any:
			for _, item := range value {
				switch item := item.(type) {
				case string:
					dumpScalar(b, spacing, key, item)
				case map[string]any:
					if e := dumpBlock(b, spacing, key, item, indent); e != nil {
						return e
					}
				default:
					return apacheconf.FormatError(DumpError, "cannot dump %T value of %q", item, key)
				}
			}
		case map[string]any:
			if e := dumpBlock(b, spacing, key, value, indent); e != nil {
				return e
			}
		default:
			return apacheconf.FormatError(DumpError, "cannot dump %T value of %q", value, key)
		}
	}
	return nil
}

func dumpBlock(b *strings.Builder, spacing, key string, m map[string]any, indent int) error {
	fmt.Fprintf(b, "%s<%s>\n", spacing, key)
	if e := dumpMap(b, m, indent+2); e != nil {
		return e
	}
	fmt.Fprintf(b, "%s</%s>\n", spacing, key)
	return nil
}

func dumpScalar(b *strings.Builder, spacing, key, value string) {
	if isAlnum(value) {
		fmt.Fprintf(b, "%s%s %s\n", spacing, key, value)
	} else {
		fmt.Fprintf(b, "%s%s %q\n", spacing, key, value)
	}
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
