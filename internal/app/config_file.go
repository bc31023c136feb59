package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"
)

var (
    // ErrConfig marks configuration problems detected before any output is
    // produced.
    ErrConfig = errors.New("configuration error")
    // ErrNoSourceDir is wrapped by ErrConfig when the source directory is
    // missing or not a directory.
    ErrNoSourceDir = errors.New("source directory not found")
    // ErrNoDocuments is wrapped by ErrConfig when the source holds no PDF.
    ErrNoDocuments = errors.New("no pdf documents found")
)

// FileConfig represents the single-file configuration schema. Nested
// sections mirror the dotted flag names.
type FileConfig struct {
    Src string `yaml:"src" json:"src"`
    Dst string `yaml:"dst" json:"dst"`

    Max struct {
        Groups int `yaml:"groups" json:"groups"`
    } `yaml:"max" json:"max"`

    Init struct {
        Chars int `yaml:"chars" json:"chars"`
        Docs  int `yaml:"docs" json:"docs"`
    } `yaml:"init" json:"init"`

    // Min.Chars and Tokens.Window accept an explicit 0.
    Min struct {
        Chars *int `yaml:"chars" json:"chars"`
    } `yaml:"min" json:"min"`

    Growth float64 `yaml:"growth" json:"growth"`

    File struct {
        Pattern string `yaml:"pattern" json:"pattern"`
    } `yaml:"file" json:"file"`

    Tokens struct {
        Window *int `yaml:"window" json:"window"`
    } `yaml:"tokens" json:"tokens"`

    Header struct {
        Threshold float64 `yaml:"threshold" json:"threshold"`
    } `yaml:"header" json:"header"`

    Digit struct {
        Ratio float64 `yaml:"ratio" json:"ratio"`
    } `yaml:"digit" json:"digit"`

    Symbol struct {
        Ratio float64 `yaml:"ratio" json:"ratio"`
    } `yaml:"symbol" json:"symbol"`

    Allowed struct {
        Punct string `yaml:"punct" json:"punct"`
    } `yaml:"allowed" json:"allowed"`

    Legal struct {
        Keywords []string `yaml:"keywords" json:"keywords"`
    } `yaml:"legal" json:"legal"`

    Cache struct {
        Dir         string   `yaml:"dir" json:"dir"`
        MaxAge      duration `yaml:"maxAge" json:"maxAge"`
        MaxBytes    int64    `yaml:"maxBytes" json:"maxBytes"`
        Clear       bool     `yaml:"clear" json:"clear"`
        StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
    } `yaml:"cache" json:"cache"`

    Manifest *bool `yaml:"manifest" json:"manifest"`
}

// duration accepts Go duration strings ("36h") in both YAML and JSON.
type duration time.Duration

func (d *duration) UnmarshalYAML(n *yaml.Node) error {
    var s string
    if err := n.Decode(&s); err != nil {
        return err
    }
    return d.parse(s)
}

func (d *duration) UnmarshalJSON(b []byte) error {
    var s string
    if err := json.Unmarshal(b, &s); err != nil {
        return err
    }
    return d.parse(s)
}

func (d *duration) parse(s string) error {
    if strings.TrimSpace(s) == "" {
        *d = 0
        return nil
    }
    v, err := time.ParseDuration(s)
    if err != nil {
        return err
    }
    *d = duration(v)
    return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := strings.ToLower(filepath.Ext(path)); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig overlays every value set in fc onto cfg. It runs before
// environment and flags, which take precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    if fc.Src != "" { cfg.SrcDir = fc.Src }
    if fc.Dst != "" { cfg.DstDir = fc.Dst }

    if fc.Max.Groups > 0 { cfg.MaxGroups = fc.Max.Groups }
    if fc.Init.Chars > 0 { cfg.InitChars = fc.Init.Chars }
    if fc.Init.Docs > 0 { cfg.InitDocs = fc.Init.Docs }
    if fc.Min.Chars != nil { cfg.MinChars = *fc.Min.Chars }
    if fc.Growth > 0 { cfg.Growth = fc.Growth }
    if fc.File.Pattern != "" { cfg.FilePattern = fc.File.Pattern }
    if fc.Tokens.Window != nil { cfg.TokenWindow = *fc.Tokens.Window }

    if fc.Header.Threshold > 0 { cfg.HeaderThreshold = fc.Header.Threshold }
    if fc.Digit.Ratio > 0 { cfg.DigitRatio = fc.Digit.Ratio }
    if fc.Symbol.Ratio > 0 { cfg.SymbolRatio = fc.Symbol.Ratio }
    if fc.Allowed.Punct != "" { cfg.AllowedPunct = fc.Allowed.Punct }
    if len(fc.Legal.Keywords) > 0 { cfg.LegalKeywords = append([]string{}, fc.Legal.Keywords...) }

    if fc.Cache.Dir != "" { cfg.CacheDir = fc.Cache.Dir }
    if fc.Cache.MaxAge > 0 { cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge) }
    if fc.Cache.MaxBytes > 0 { cfg.CacheMaxBytes = fc.Cache.MaxBytes }
    if fc.Cache.Clear { cfg.CacheClear = true }
    if fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }

    if fc.Manifest != nil { cfg.Manifest = *fc.Manifest }
}

// ValidateConfig checks the settings a run cannot start without. Every
// returned error wraps ErrConfig.
func ValidateConfig(cfg Config) error {
    if strings.TrimSpace(cfg.SrcDir) == "" {
        return fmt.Errorf("%w: source directory is required (--src)", ErrConfig)
    }
    if strings.TrimSpace(cfg.DstDir) == "" {
        return fmt.Errorf("%w: destination directory is required (--dst)", ErrConfig)
    }
    info, err := os.Stat(cfg.SrcDir)
    if err != nil || !info.IsDir() {
        return fmt.Errorf("%w: %w: %s", ErrConfig, ErrNoSourceDir, cfg.SrcDir)
    }
    if err := cfg.BatchConfig().Validate(); err != nil {
        return fmt.Errorf("%w: %w", ErrConfig, err)
    }
    if cfg.TokenWindow < 0 {
        return fmt.Errorf("%w: tokens.window must not be negative", ErrConfig)
    }
    for name, v := range map[string]float64{
        "header.threshold": cfg.HeaderThreshold,
        "digit.ratio":      cfg.DigitRatio,
        "symbol.ratio":     cfg.SymbolRatio,
    } {
        if v <= 0 || v > 1 {
            return fmt.Errorf("%w: %s must be in (0, 1], got %g", ErrConfig, name, v)
        }
    }
    if cfg.CacheMaxAge < 0 || cfg.CacheMaxBytes < 0 {
        return fmt.Errorf("%w: negative cache limits are not allowed", ErrConfig)
    }
    return nil
}
