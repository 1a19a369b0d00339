// Package loader turns parsed configuration into plain nested maps the
// way Perl's Config::General does: it resolves includes, applies
// duplicate-key policy, and interpolates variables.
package loader

import (
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/confkit/apacheconf"
	"github.com/confkit/apacheconf/parser"
	"github.com/confkit/apacheconf/reader"
	"github.com/confkit/apacheconf/scanner"
	"github.com/confkit/apacheconf/source"
)

// Error codes used by loader:
const (
	DuplicateOptionError = apacheconf.LoaderErrors + iota
	MergeError
	UndefinedVariableError
	EmptyTagError
	FileReadError
	DumpError
	UnknownFlagError
)

// Config selects loading policy, the dialect Options are carried along.
type Config struct {
	// Options is the syntax dialect passed to the parser.
	Options apacheconf.Options

	// AllowMultiOptions accumulates repeated options into a list. When
	// false a repeated option is an error unless MergeDuplicateOptions
	// is set.
	AllowMultiOptions bool

	// MergeDuplicateOptions keeps only the last value of a repeated
	// option. Takes precedence over AllowMultiOptions.
	MergeDuplicateOptions bool

	// MergeDuplicateBlocks merges repeated blocks into one map instead
	// of accumulating a list. Options repeated across the merged blocks
	// follow the option policy above.
	MergeDuplicateBlocks bool

	// InterpolateVars enables ${var} and $var expansion from options
	// seen so far, from enclosing block scopes, and, with
	// InterpolateEnv, from the environment.
	InterpolateVars bool

	// InterpolateEnv falls back to environment variables and implies
	// InterpolateVars.
	InterpolateEnv bool

	// AllowSingleQuoteInterpolation also expands variables inside
	// single-quoted values, which are otherwise left verbatim. Implies
	// InterpolateVars.
	AllowSingleQuoteInterpolation bool

	// StrictVars makes a reference to an undefined variable an error,
	// otherwise the reference text is kept as is.
	StrictVars bool

	// NoEscape disables removing the \$ \\ \" \# escapes from values.
	NoEscape bool

	// AutoTrue maps yes/on/true to "1" and no/off/false to "0",
	// case-insensitively.
	AutoTrue bool

	// ForceArray turns a value of the form [v] into a one-element list.
	ForceArray bool

	// FlagBits decodes pipe-separated flag values for the listed
	// options: every known flag appears in the resulting map, set to
	// its configured value when present and to nil otherwise.
	FlagBits map[string]map[string]any

	// DefaultConfig seeds the result document; parsed options merge
	// into it under the usual duplicate policy.
	DefaultConfig map[string]any

	// ConfigPath lists directories searched for relative includes.
	ConfigPath []string

	// ConfigRoot is searched first for relative includes when
	// IncludeRelative is set.
	ConfigRoot string

	// IncludeRelative enables the ConfigRoot search entry.
	IncludeRelative bool

	// ProgramPath is the last search entry for relative includes,
	// "." when empty.
	ProgramPath string

	// IncludeDirectories loads every file of an included directory in
	// lexical order.
	IncludeDirectories bool

	// IncludeGlob expands glob patterns in include paths.
	IncludeGlob bool

	// IncludeAgain allows the same file to be included more than once.
	IncludeAgain bool

	// Logger receives debug-level load and include resolution logs,
	// logrus.StandardLogger when nil.
	Logger logrus.FieldLogger
}

// NewConfig returns the default loading policy: multiple options
// accumulate, undefined variables are strict errors, dialect is
// DefaultOptions.
func NewConfig() Config {
	return Config{
		Options:           apacheconf.DefaultOptions(),
		AllowMultiOptions: true,
		StrictVars:        true,
	}
}

// Loader loads configuration files and texts into nested maps. Values
// of the resulting map[string]any are strings, nil for valueless
// options, []any for repeated keys, and map[string]any for blocks.
// Not safe for concurrent use.
type Loader struct {
	cfg      Config
	rdr      reader.Reader
	log      logrus.FieldLogger
	includes map[string]bool
}

// New creates a Loader. A nil rdr reads the local filesystem and
// process environment.
func New(cfg Config, rdr reader.Reader) *Loader {
	if rdr == nil {
		rdr = reader.NewLocalHost()
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{cfg: cfg, rdr: rdr, log: log, includes: map[string]bool{}}
}

// Load reads and loads the named configuration file.
func (l *Loader) Load(path string) (map[string]any, error) {
	l.includes = map[string]bool{}
	config := cloneMap(l.cfg.DefaultConfig)
	if e := l.loadFile(path, config, nil); e != nil {
		return nil, e
	}
	return config, nil
}

// LoadString loads configuration text.
func (l *Loader) LoadString(text string) (map[string]any, error) {
	l.includes = map[string]bool{}
	config := cloneMap(l.cfg.DefaultConfig)
	if e := l.loadText("", text, config, nil); e != nil {
		return nil, e
	}
	return config, nil
}

func (l *Loader) loadFile(path string, top map[string]any, outer []map[string]any) error {
	if l.includes[path] && !l.cfg.IncludeAgain {
		l.log.WithField("file", path).Debug("skipping repeated include")
		return nil
	}
	l.includes[path] = true

	content, e := l.rdr.ReadFile(path)
	if e != nil {
		return apacheconf.FormatError(FileReadError, "cannot open file %s: %s", path, e)
	}
	l.log.WithField("file", path).Debug("loading configuration file")
	return l.loadText(path, string(content), top, outer)
}

func (l *Loader) loadText(name, text string, top map[string]any, outer []map[string]any) error {
	contents, e := parser.Parse(source.New(name, []byte(text)), l.cfg.Options)
	if e != nil {
		return e
	}
	return l.walkContents(contents, top, outer)
}

// walkContents processes items in source order, so values of a
// repeated key accumulate the way they appear in the file. outer holds
// the maps of enclosing block scopes for variable lookup, innermost
// first.
func (l *Loader) walkContents(c *parser.Contents, top map[string]any, outer []map[string]any) error {
	scopes := append([]map[string]any{top}, outer...)

	for _, item := range c.Items {
		switch n := item.(type) {
		case *parser.Comment:

		case *parser.Statement:
			if e := l.addStatement(top, scopes, n); e != nil {
				return e
			}

		case *parser.Block:
			if e := l.addBlock(top, scopes, n); e != nil {
				return e
			}

		case *parser.Include:
			included, e := l.resolveInclude(n, scopes)
			if e != nil {
				if n.Optional && errorCode(e) == FileReadError {
					l.log.WithField("path", n.Path).Debug("skipping missing optional include")
					continue
				}
				return e
			}
			if e = l.mergeInto(top, included); e != nil {
				return e
			}
		}
	}
	return nil
}

func (l *Loader) addStatement(top map[string]any, scopes []map[string]any, n *parser.Statement) error {
	var value any
	if n.HasValue {
		value = n.Value
	}

	if s, isString := value.(string); isString {
		if bits, found := l.cfg.FlagBits[n.Name]; found {
			flags := make(map[string]any, len(bits))
			for flag := range bits {
				flags[flag] = nil
			}
			for _, flag := range strings.Split(s, "|") {
				flag = strings.TrimSpace(flag)
				bit, known := bits[flag]
				if !known {
					return apacheconf.FormatError(UnknownFlagError,
						"unknown flag %q in value of option %q", flag, n.Name)
				}
				flags[flag] = bit
			}
			value = flags
		} else if l.cfg.AutoTrue {
			switch strings.ToLower(s) {
			case "yes", "on", "true":
				value = "1"
			case "no", "off", "false":
				value = "0"
			}
		}
	}

	if s, isString := value.(string); isString && l.cfg.ForceArray &&
		len(s) > 1 && s[0] == '[' && s[len(s)-1] == ']' {
		value = []any{s[1 : len(s)-1]}
	}

	if l.interpolating() && (n.Quote != scanner.SingleQuote || l.cfg.AllowSingleQuoteInterpolation) {
		var e error
		if value, e = l.interpolateValue(value, scopes); e != nil {
			return e
		}
	}

	if !l.cfg.NoEscape {
		value = removeEscapes(value)
	}

	existing, found := top[n.Name]
	switch {
	case !found:
		top[n.Name] = value
	case l.cfg.MergeDuplicateOptions:
		top[n.Name] = value
	case l.cfg.AllowMultiOptions:
		top[n.Name] = appendValue(existing, value)
	default:
		return apacheconf.FormatError(DuplicateOptionError, "duplicate option %q prohibited", n.Name)
	}
	return nil
}

func (l *Loader) addBlock(top map[string]any, scopes []map[string]any, n *parser.Block) error {
	inner := map[string]any{}
	if n.Contents != nil {
		if e := l.walkContents(n.Contents, inner, scopes); e != nil {
			return e
		}
	}

	key, e := unquoteTag(n.Tag.Name)
	if e != nil {
		return e
	}

	var value any = inner
	if n.Tag.HasValue {
		name := n.Tag.Value
		if name == "" {
			return apacheconf.FormatError(EmptyTagError, "empty block tag not allowed")
		}
		value = map[string]any{name: inner}
	}

	existing, found := top[key]
	switch {
	case !found:
		top[key] = value
	case l.cfg.MergeDuplicateBlocks:
		merged, e := l.mergeValues(existing, value)
		if e != nil {
			return apacheconf.FormatError(MergeError, "cannot merge duplicate block %q: %s", key, e.Error())
		}
		top[key] = merged
	default:
		top[key] = appendValue(existing, value)
	}
	return nil
}

// mergeInto merges an included document into the enclosing one,
// key by key.
func (l *Loader) mergeInto(dst, src map[string]any) error {
	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := src[key]
		existing, found := dst[key]
		switch {
		case !found:
			dst[key] = value
		case l.cfg.MergeDuplicateBlocks:
			merged, e := l.mergeValues(existing, value)
			if e != nil {
				return apacheconf.FormatError(MergeError, "cannot merge duplicate items %q: %s", key, e.Error())
			}
			dst[key] = merged
		default:
			vector, isList := value.([]any)
			if !isList {
				vector = []any{value}
			}
			list, isList := existing.([]any)
			if !isList {
				list = []any{existing}
			}
			dst[key] = append(list, vector...)
		}
	}
	return nil
}

// mergeValues combines two values of one key under the merge policy:
// maps merge recursively, lists form a duplicate-free union, scalars
// follow the duplicate-option policy. Incompatible shapes are an error.
func (l *Loader) mergeValues(old, new any) (any, error) {
	if oldMap, isMap := old.(map[string]any); isMap {
		newMap, isMap := new.(map[string]any)
		if !isMap {
			return nil, apacheconf.FormatError(MergeError, "cannot merge a block with a plain value")
		}
		keys := make([]string, 0, len(newMap))
		for key := range newMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			existing, found := oldMap[key]
			if !found {
				oldMap[key] = newMap[key]
				continue
			}
			merged, e := l.mergeValues(existing, newMap[key])
			if e != nil {
				return nil, e
			}
			oldMap[key] = merged
		}
		return oldMap, nil
	}
	if _, isMap := new.(map[string]any); isMap {
		return nil, apacheconf.FormatError(MergeError, "cannot merge a plain value with a block")
	}

	oldList, oldIsList := old.([]any)
	newList, newIsList := new.([]any)
	if oldIsList || newIsList {
		if !oldIsList {
			oldList = []any{old}
		}
		if !newIsList {
			newList = []any{new}
		}
		return mergeLists(oldList, newList), nil
	}

	switch {
	case l.cfg.MergeDuplicateOptions:
		return new, nil
	case l.cfg.AllowMultiOptions:
		return []any{old, new}, nil
	}
	return nil, apacheconf.FormatError(DuplicateOptionError, "duplicate option prohibited")
}

// mergeLists returns the union of both lists, keeping first-seen order
// and dropping values already present.
func mergeLists(first, second []any) []any {
	merged := append([]any{}, first...)
	for _, value := range second {
		if !containsValue(merged, value) {
			merged = append(merged, value)
		}
	}
	return merged
}

func containsValue(list []any, value any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, value) {
			return true
		}
	}
	return false
}

func appendValue(existing, value any) any {
	if list, isList := existing.([]any); isList {
		return append(list, value)
	}
	return []any{existing, value}
}

func (l *Loader) interpolating() bool {
	return l.cfg.InterpolateVars || l.cfg.InterpolateEnv || l.cfg.AllowSingleQuoteInterpolation
}

func (l *Loader) interpolateValue(value any, scopes []map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return l.interpolate(v, scopes)
	case []any:
		for i, item := range v {
			if s, isString := item.(string); isString {
				expanded, e := l.interpolate(s, scopes)
				if e != nil {
					return nil, e
				}
				v[i] = expanded
			}
		}
	}
	return value, nil
}

// interpolate expands ${var} and $var references. A backslash before
// the dollar sign suppresses expansion. $var names run to the next
// space, dollar sign, or line break.
func (l *Loader) interpolate(value string, scopes []map[string]any) (string, error) {
	if !strings.ContainsRune(value, '$') {
		return value, nil
	}

	var b strings.Builder
	for i := 0; i < len(value); {
		c := value[i]
		if c != '$' || (i > 0 && value[i-1] == '\\') {
			b.WriteByte(c)
			i++
			continue
		}

		var name string
		end := i
		if i+1 < len(value) && value[i+1] == '{' {
			if j := strings.IndexByte(value[i+2:], '}'); j > 0 {
				name = value[i+2 : i+2+j]
				end = i + 2 + j + 1
			}
		} else {
			j := i + 1
			for j < len(value) && !isNameBreak(value[j]) {
				j++
			}
			name = value[i+1 : j]
			end = j
		}
		if name == "" || strings.ContainsAny(name, "\r\n") {
			b.WriteByte(c)
			i++
			continue
		}

		expanded, found := l.lookupVar(name, scopes)
		if !found {
			if l.cfg.StrictVars {
				return "", apacheconf.FormatError(UndefinedVariableError, "undefined variable %q referenced", "${"+name+"}")
			}
			l.log.WithField("variable", name).Debug("keeping undefined variable reference")
			b.WriteString(value[i:end])
			i = end
			continue
		}
		b.WriteString(expanded)
		i = end
	}
	return b.String(), nil
}

func isNameBreak(c byte) bool {
	return c == ' ' || c == '$' || c == '\r' || c == '\n'
}

// lookupVar searches the innermost scope first, then enclosing scopes,
// then the environment when InterpolateEnv is set. Scope values are
// already fully expanded, they are substituted as is.
func (l *Loader) lookupVar(name string, scopes []map[string]any) (string, bool) {
	for _, scope := range scopes {
		if value, found := scope[name]; found {
			if s, isString := value.(string); isString {
				return s, true
			}
			return "", false
		}
	}
	if l.cfg.InterpolateEnv {
		if value, found := l.rdr.LookupEnv(name); found {
			return value, true
		}
	}
	return "", false
}

var escapeRe = regexp.MustCompile(`\\([$\\"#])`)

func removeEscapes(value any) any {
	switch v := value.(type) {
	case string:
		return escapeRe.ReplaceAllString(v, "$1")
	case []any:
		for i, item := range v {
			if s, isString := item.(string); isString {
				v[i] = escapeRe.ReplaceAllString(s, "$1")
			}
		}
	}
	return value
}

// unquoteTag strips one pair of double quotes, then one pair of single
// quotes, matching the Config::General treatment of block tags.
func unquoteTag(tag string) (string, error) {
	if len(tag) > 1 && tag[0] == '"' && tag[len(tag)-1] == '"' {
		tag = tag[1 : len(tag)-1]
	}
	if len(tag) > 1 && tag[0] == '\'' && tag[len(tag)-1] == '\'' {
		tag = tag[1 : len(tag)-1]
	}
	if tag == "" {
		return "", apacheconf.FormatError(EmptyTagError, "empty block tag not allowed")
	}
	return tag, nil
}

// resolveInclude finds and loads the file, directory, or glob pattern
// named by an include directive and returns the loaded document.
func (l *Loader) resolveInclude(n *parser.Include, scopes []map[string]any) (map[string]any, error) {
	target := n.Path

	var searchPath []string
	var filename string
	if filepath.IsAbs(target) {
		searchPath = []string{filepath.Dir(target)}
		filename = filepath.Base(target)
	} else {
		searchPath = append(searchPath, l.cfg.ConfigPath...)
		if l.cfg.IncludeRelative && l.cfg.ConfigRoot != "" {
			searchPath = append([]string{l.cfg.ConfigRoot}, searchPath...)
		}
		if l.cfg.ProgramPath != "" {
			searchPath = append(searchPath, l.cfg.ProgramPath)
		} else {
			searchPath = append(searchPath, ".")
		}
		if l.rdr.IsDir(target) {
			searchPath = append([]string{target}, searchPath...)
			filename = "."
		} else {
			filename = target
		}
	}

	for _, dir := range searchPath {
		full := filepath.Join(dir, filename)

		if l.rdr.IsDir(full) {
			if !l.cfg.IncludeDirectories {
				continue
			}
			entries, e := l.rdr.ListDir(full)
			if e != nil {
				return nil, apacheconf.FormatError(FileReadError, "cannot list directory %s: %s", full, e.Error())
			}
			l.log.WithField("dir", full).Debug("including directory")
			return l.loadAll(prefixed(full, entries), scopes)
		}

		if l.cfg.IncludeGlob {
			matches, e := l.rdr.Glob(full)
			if e != nil {
				return nil, apacheconf.FormatError(FileReadError, "bad include pattern %s: %s", full, e.Error())
			}
			if len(matches) > 0 {
				l.log.WithField("pattern", full).Debug("including glob matches")
				return l.loadAll(matches, scopes)
			}
			continue
		}

		if l.rdr.Exists(full) {
			included := map[string]any{}
			if e := l.loadFile(full, included, scopes); e != nil {
				return nil, e
			}
			return included, nil
		}
	}

	if l.cfg.IncludeGlob {
		return map[string]any{}, nil
	}
	return nil, apacheconf.FormatError(FileReadError, "config file %q not found in search path %s",
		filename, strings.Join(searchPath, ":"))
}

func (l *Loader) loadAll(paths []string, scopes []map[string]any) (map[string]any, error) {
	result := map[string]any{}
	for _, path := range paths {
		included := map[string]any{}
		if e := l.loadFile(path, included, scopes); e != nil {
			return nil, e
		}
		if e := l.mergeInto(result, included); e != nil {
			return nil, e
		}
	}
	return result, nil
}

func prefixed(dir string, names []string) []string {
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

func cloneMap(m map[string]any) map[string]any {
	clone := make(map[string]any, len(m))
	for key, value := range m {
		clone[key] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = cloneValue(item)
		}
		return clone
	}
	return value
}

func errorCode(e error) int {
	if err, is := e.(*apacheconf.Error); is {
		return err.Code
	}
	return 0
}
