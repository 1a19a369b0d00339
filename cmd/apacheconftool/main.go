/*
apacheconftool dumps Apache-httpd-style and Config::General-style
configuration files as JSON or YAML documents. Usage is

	apacheconftool [flags] <file> ...

Every file is loaded with the include, duplicate-key, and interpolation
policy selected by the flags and written to standard output. With
--json-input the direction is reversed: the files are JSON documents
and the output is configuration text.
*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/confkit/apacheconf/loader"
)

var errColor = color.New(color.FgRed)
var headColor = color.New(color.FgCyan, color.Bold)

type toolOptions struct {
	format    string
	jsonInput bool
	debug     bool

	allowMultiOptions             bool
	mergeDuplicateOptions         bool
	mergeDuplicateBlocks          bool
	interpolateVars               bool
	interpolateEnv                bool
	allowSingleQuoteInterpolation bool
	strictVars                    bool
	noEscape                      bool
	autoTrue                      bool
	forceArray                    bool
	flagBits                      string
	defaultConfig                 string

	configPath         []string
	includeRelative    bool
	includeDirectories bool
	includeGlob        bool
	includeAgain       bool

	cComments             bool
	useApacheInclude      bool
	multilineHashComments bool
	namedBlocks           bool
	lowerCaseNames        bool
	noStripValues         bool
}

func main() {
	if e := newRootCommand().Execute(); e != nil {
		errColor.Fprintln(os.Stderr, e.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &toolOptions{}

	cmd := &cobra.Command{
		Use:           "apacheconftool [flags] <file> ...",
		Short:         "Dump Apache-style configuration files as JSON or YAML",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return run(opts, args)
		},
	}

	registerFlags(cmd.Flags(), opts)
	return cmd
}

func registerFlags(f *pflag.FlagSet, opts *toolOptions) {
	f.StringVar(&opts.format, "format", "json", `output format, "json" or "yaml"`)
	f.BoolVar(&opts.jsonInput, "json-input", false, "treat input files as JSON, produce configuration text")
	f.BoolVar(&opts.debug, "debug", false, "log include resolution and interpolation details")

	f.BoolVar(&opts.allowMultiOptions, "allowmultioptions", true, "collect repeated options into a list")
	f.BoolVar(&opts.mergeDuplicateOptions, "mergeduplicateoptions", false, "keep only the last value of a repeated option")
	f.BoolVar(&opts.mergeDuplicateBlocks, "mergeduplicateblocks", false, "merge repeated blocks into a single one")
	f.BoolVar(&opts.interpolateVars, "interpolatevars", false, "enable variable interpolation")
	f.BoolVar(&opts.interpolateEnv, "interpolateenv", false, "enable environment variable interpolation")
	f.BoolVar(&opts.allowSingleQuoteInterpolation, "allowsinglequoteinterpolation", false, "interpolate inside single-quoted values too")
	f.BoolVar(&opts.strictVars, "strictvars", true, "fail on references to undefined variables")
	f.BoolVar(&opts.noEscape, "noescape", false, "keep escape characters in values")
	f.BoolVar(&opts.autoTrue, "autotrue", false, `map yes/on/true and no/off/false values to "1" and "0"`)
	f.BoolVar(&opts.forceArray, "forcearray", false, "parse values of the form [v] into one-element lists")
	f.StringVar(&opts.flagBits, "flagbits", "", `named bits per option as JSON: {"OPTION": {"NAME": "VALUE"}}`)
	f.StringVar(&opts.defaultConfig, "defaultconfig", "", "default configuration values as a JSON object")

	f.StringArrayVar(&opts.configPath, "configpath", nil, "search path entry for included files, may repeat")
	f.BoolVar(&opts.includeRelative, "includerelative", false, "resolve includes relative to the configuration file")
	f.BoolVar(&opts.includeDirectories, "includedirectories", false, "allow include directives naming a directory")
	f.BoolVar(&opts.includeGlob, "includeglob", false, "allow glob patterns in include directives")
	f.BoolVar(&opts.includeAgain, "includeagain", false, "allow including the same file more than once")

	f.BoolVar(&opts.cComments, "ccomments", true, "parse C-style comments")
	f.BoolVar(&opts.useApacheInclude, "useapacheinclude", true, `recognize "include ..." directives`)
	f.BoolVar(&opts.multilineHashComments, "multilinehashcomments", false, "let hash comments continue over escaped line breaks")
	f.BoolVar(&opts.namedBlocks, "namedblocks", true, "split block tags containing whitespace into name and arguments")
	f.BoolVar(&opts.lowerCaseNames, "lowercasenames", false, "fold option and tag names to lower case")
	f.BoolVar(&opts.noStripValues, "nostripvalues", false, "keep trailing whitespace on values")
}

func run(opts *toolOptions, files []string) error {
	cfg, e := buildConfig(opts)
	if e != nil {
		return e
	}

	if opts.jsonInput {
		return dumpJSONInputs(cfg, files)
	}

	for _, file := range files {
		cfg.ConfigRoot = filepath.Dir(file)
		l := loader.New(cfg, nil)

		config, e := l.Load(file)
		if e != nil {
			return fmt.Errorf("failed to load %s: %w", file, e)
		}

		if len(files) > 1 {
			headColor.Printf("# %s\n", file)
		}
		if e = printConfig(opts.format, config); e != nil {
			return e
		}
	}
	return nil
}

func buildConfig(opts *toolOptions) (loader.Config, error) {
	cfg := loader.NewConfig()

	cfg.AllowMultiOptions = opts.allowMultiOptions
	cfg.MergeDuplicateOptions = opts.mergeDuplicateOptions
	cfg.MergeDuplicateBlocks = opts.mergeDuplicateBlocks
	cfg.InterpolateVars = opts.interpolateVars
	cfg.InterpolateEnv = opts.interpolateEnv
	cfg.AllowSingleQuoteInterpolation = opts.allowSingleQuoteInterpolation
	cfg.StrictVars = opts.strictVars
	cfg.NoEscape = opts.noEscape
	cfg.AutoTrue = opts.autoTrue
	cfg.ForceArray = opts.forceArray

	cfg.ConfigPath = opts.configPath
	cfg.IncludeRelative = opts.includeRelative
	cfg.IncludeDirectories = opts.includeDirectories
	cfg.IncludeGlob = opts.includeGlob
	cfg.IncludeAgain = opts.includeAgain
	cfg.ProgramPath = filepath.Dir(os.Args[0])

	cfg.Options.CComments = opts.cComments
	cfg.Options.UseApacheInclude = opts.useApacheInclude
	cfg.Options.MultilineHashComments = opts.multilineHashComments
	cfg.Options.NamedBlocks = opts.namedBlocks
	cfg.Options.LowerCaseNames = opts.lowerCaseNames
	cfg.Options.NoStripValues = opts.noStripValues

	if opts.flagBits != "" {
		if e := json.Unmarshal([]byte(opts.flagBits), &cfg.FlagBits); e != nil {
			return cfg, fmt.Errorf("malformed flagbits %s: %w", opts.flagBits, e)
		}
	}
	if opts.defaultConfig != "" {
		if e := json.Unmarshal([]byte(opts.defaultConfig), &cfg.DefaultConfig); e != nil {
			return cfg, fmt.Errorf("malformed defaultconfig %s: %w", opts.defaultConfig, e)
		}
	}

	if opts.format != "json" && opts.format != "yaml" {
		return cfg, fmt.Errorf("unknown output format %q", opts.format)
	}
	return cfg, nil
}

func dumpJSONInputs(cfg loader.Config, files []string) error {
	l := loader.New(cfg, nil)

	for _, file := range files {
		content, e := os.ReadFile(file)
		if e != nil {
			return fmt.Errorf("failed to read %s: %w", file, e)
		}

		var config map[string]any
		if e = json.Unmarshal(content, &config); e != nil {
			return fmt.Errorf("malformed JSON document %s: %w", file, e)
		}

		text, e := l.Dumps(config)
		if e != nil {
			return fmt.Errorf("failed to dump %s as configuration: %w", file, e)
		}
		fmt.Print(text)
	}
	return nil
}

func printConfig(format string, config map[string]any) error {
	if format == "yaml" {
		out, e := yaml.Marshal(config)
		if e != nil {
			return e
		}
		fmt.Print(string(out))
		return nil
	}

	out, e := json.MarshalIndent(config, "", "  ")
	if e != nil {
		return e
	}
	fmt.Println(string(out))
	return nil
}
