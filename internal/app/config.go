package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/corpusclean/internal/batch"
	"github.com/hyperifyio/corpusclean/internal/classify"
	"github.com/hyperifyio/corpusclean/internal/clean"
	"github.com/hyperifyio/corpusclean/internal/headers"
)

// Config holds runtime configuration for the pdf pipeline.
type Config struct {
	SrcDir string
	DstDir string

	// Batching
	MaxGroups   int
	InitChars   int
	InitDocs    int
	MinChars    int
	Growth      float64
	FilePattern string
	TokenWindow int

	// Cleaning
	HeaderThreshold float64
	DigitRatio      float64
	SymbolRatio     float64
	AllowedPunct    string
	LegalKeywords   []string

	// Page cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxBytes    int64
	CacheClear       bool
	CacheStrictPerms bool

	Manifest bool
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	b := batch.DefaultConfig()
	return Config{
		MaxGroups:       b.MaxGroups,
		InitChars:       b.InitChars,
		InitDocs:        b.InitDocs,
		MinChars:        b.MinChars,
		Growth:          b.Growth,
		FilePattern:     b.FilePattern,
		HeaderThreshold: headers.DefaultThreshold,
		DigitRatio:      classify.DefaultDigitRatio,
		SymbolRatio:     classify.DefaultSymbolRatio,
		AllowedPunct:    clean.DefaultAllowedPunct,
		Manifest:        true,
	}
}

// BatchConfig returns the accumulator limits.
func (c Config) BatchConfig() batch.Config {
	return batch.Config{
		MaxGroups:   c.MaxGroups,
		InitChars:   c.InitChars,
		InitDocs:    c.InitDocs,
		MinChars:    c.MinChars,
		Growth:      c.Growth,
		FilePattern: c.FilePattern,
	}
}

// CleanOptions returns the document cleaner settings.
func (c Config) CleanOptions() clean.Options {
	return clean.Options{
		AllowedPunct:    c.AllowedPunct,
		HeaderThreshold: c.HeaderThreshold,
		Classifier: classify.Options{
			LegalKeywords: c.LegalKeywords,
			DigitRatio:    c.DigitRatio,
			SymbolRatio:   c.SymbolRatio,
		},
	}
}

// Summary lists the settings recorded in the run manifest.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"src":             c.SrcDir,
		"dst":             c.DstDir,
		"maxGroups":       c.MaxGroups,
		"initChars":       c.InitChars,
		"initDocs":        c.InitDocs,
		"minChars":        c.MinChars,
		"growth":          c.Growth,
		"headerThreshold": c.HeaderThreshold,
		"digitRatio":      c.DigitRatio,
		"symbolRatio":     c.SymbolRatio,
		"filePattern":     c.FilePattern,
		"pageCache":       c.CacheDir != "",
	}
}

// option binds a flag name to a Config field. Flags and environment
// variables are both applied through this table.
type option struct {
	name string
	set  func(c *Config, v string) error
}

var options = []option{
	{"src", func(c *Config, v string) error { c.SrcDir = v; return nil }},
	{"dst", func(c *Config, v string) error { c.DstDir = v; return nil }},
	{"max.groups", intOpt(func(c *Config) *int { return &c.MaxGroups })},
	{"init.chars", intOpt(func(c *Config) *int { return &c.InitChars })},
	{"init.docs", intOpt(func(c *Config) *int { return &c.InitDocs })},
	{"min.chars", intOpt(func(c *Config) *int { return &c.MinChars })},
	{"growth", floatOpt(func(c *Config) *float64 { return &c.Growth })},
	{"file.pattern", func(c *Config, v string) error { c.FilePattern = v; return nil }},
	{"tokens.window", intOpt(func(c *Config) *int { return &c.TokenWindow })},
	{"header.threshold", floatOpt(func(c *Config) *float64 { return &c.HeaderThreshold })},
	{"digit.ratio", floatOpt(func(c *Config) *float64 { return &c.DigitRatio })},
	{"symbol.ratio", floatOpt(func(c *Config) *float64 { return &c.SymbolRatio })},
	{"allowed.punct", func(c *Config, v string) error { c.AllowedPunct = v; return nil }},
	{"legal.keywords", func(c *Config, v string) error { c.LegalKeywords = splitList(v); return nil }},
	{"cache.dir", func(c *Config, v string) error { c.CacheDir = v; return nil }},
	{"cache.maxAge", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.CacheMaxAge = d
		return nil
	}},
	{"cache.maxBytes", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.CacheMaxBytes = n
		return nil
	}},
	{"cache.clear", boolOpt(func(c *Config) *bool { return &c.CacheClear })},
	{"cache.strictPerms", boolOpt(func(c *Config) *bool { return &c.CacheStrictPerms })},
	{"manifest", boolOpt(func(c *Config) *bool { return &c.Manifest })},
}

// OptionNames lists every name accepted by SetOption.
func OptionNames() []string {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.name
	}
	return names
}

// SetOption assigns the textual value v to the option called name.
func SetOption(c *Config, name, v string) error {
	for _, o := range options {
		if o.name == name {
			if err := o.set(c, strings.TrimSpace(v)); err != nil {
				return fmt.Errorf("%w: %s=%q: %v", ErrConfig, name, v, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: unknown option %q", ErrConfig, name)
}

func intOpt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatOpt(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolOpt(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*field(c) = true
		case "0", "false", "no", "off":
			*field(c) = false
		default:
			return errors.New("not a boolean")
		}
		return nil
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}

// LoadConfig layers the configuration sources: defaults, then the config
// file at path (if any), then CORPUSCLEAN_* environment variables, then the
// explicitly set flags, keyed by option name.
func LoadConfig(path string, flags map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		fc, err := LoadConfigFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: config file: %v", ErrConfig, err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	for _, name := range OptionNames() {
		if v, ok := flags[name]; ok {
			if err := SetOption(&cfg, name, v); err != nil {
				return cfg, err
			}
		}
	}
	return cfg, nil
}
