package app

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "corpusclean.yaml", `
src: from-file
max:
  groups: 10
init:
  docs: 7
  chars: 5000
cache:
  maxAge: 36h
legal:
  keywords: [alpha, beta]
manifest: false
`)
	t.Setenv(EnvName("max.groups"), "20")
	t.Setenv(EnvName("init.docs"), "8")

	cfg, err := LoadConfig(path, map[string]string{"max.groups": "30"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxGroups != 30 {
		t.Fatalf("flag should win: MaxGroups=%d", cfg.MaxGroups)
	}
	if cfg.InitDocs != 8 {
		t.Fatalf("env should beat file: InitDocs=%d", cfg.InitDocs)
	}
	if cfg.InitChars != 5000 || cfg.SrcDir != "from-file" {
		t.Fatalf("file should beat defaults: %+v", cfg)
	}
	if cfg.MinChars != 1500 || cfg.Growth != 1.25 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.CacheMaxAge != 36*time.Hour {
		t.Fatalf("CacheMaxAge=%v", cfg.CacheMaxAge)
	}
	if !reflect.DeepEqual(cfg.LegalKeywords, []string{"alpha", "beta"}) {
		t.Fatalf("LegalKeywords=%v", cfg.LegalKeywords)
	}
	if cfg.Manifest {
		t.Fatalf("manifest: false in file should disable the manifest")
	}
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.json", `{"dst":"out","growth":1.5,"cache":{"maxAge":"2h","dir":"c"}}`)
	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DstDir != "out" || cfg.Growth != 1.5 || cfg.CacheMaxAge != 2*time.Hour || cfg.CacheDir != "c" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestLoadConfig_FileCanSetZero(t *testing.T) {
	dir := t.TempDir()
	zero := writeFile(t, dir, "zero.yaml", "min:\n  chars: 0\ntokens:\n  window: 0\n")
	cfg, err := LoadConfig(zero, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MinChars != 0 {
		t.Fatalf("min.chars: 0 in file must disable the floor, got %d", cfg.MinChars)
	}

	unset := writeFile(t, dir, "unset.json", `{"tokens":{"window":4096}}`)
	cfg, err = LoadConfig(unset, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MinChars != 1500 || cfg.TokenWindow != 4096 {
		t.Fatalf("MinChars=%d TokenWindow=%d, want 1500 and 4096", cfg.MinChars, cfg.TokenWindow)
	}
}

func TestLoadConfig_BadValuesAreConfigErrors(t *testing.T) {
	if _, err := LoadConfig("", map[string]string{"max.groups": "many"}); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad flag: want ErrConfig, got %v", err)
	}
	t.Setenv(EnvName("cache.clear"), "perhaps")
	if _, err := LoadConfig("", nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad env: want ErrConfig, got %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing file: want ErrConfig, got %v", err)
	}
}

func TestSetOption_ListsAndUnknown(t *testing.T) {
	cfg := DefaultConfig()
	if err := SetOption(&cfg, "legal.keywords", " copyright , isbn,, "); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.LegalKeywords, []string{"copyright", "isbn"}) {
		t.Fatalf("LegalKeywords=%v", cfg.LegalKeywords)
	}
	if err := SetOption(&cfg, "no.such", "1"); !errors.Is(err, ErrConfig) {
		t.Fatalf("unknown option: want ErrConfig, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	src := t.TempDir()
	ok := testConfig(src, t.TempDir())
	if err := ValidateConfig(ok); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := ok
	missing.SrcDir = filepath.Join(src, "nope")
	if err := ValidateConfig(missing); !errors.Is(err, ErrNoSourceDir) || !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig+ErrNoSourceDir, got %v", err)
	}

	cases := []func(*Config){
		func(c *Config) { c.DstDir = "" },
		func(c *Config) { c.MaxGroups = 0 },
		func(c *Config) { c.Growth = 0.9 },
		func(c *Config) { c.DigitRatio = 1.5 },
		func(c *Config) { c.HeaderThreshold = 0 },
		func(c *Config) { c.CacheMaxAge = -time.Second },
		func(c *Config) { c.TokenWindow = -1 },
	}
	for i, mut := range cases {
		c := ok
		mut(&c)
		if err := ValidateConfig(c); !errors.Is(err, ErrConfig) {
			t.Fatalf("case %d: want ErrConfig, got %v", i, err)
		}
	}
}

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env.test", "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta\"\n")
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
}

func TestLoadEnvFiles_OrderAndProcessEnvWins(t *testing.T) {
	t.Setenv("K", "")
	t.Setenv("KEEP", "process")
	dir := t.TempDir()
	a := writeFile(t, dir, ".env.a", "K=first\nKEEP=file\n")
	b := writeFile(t, dir, ".env.b", "K=second\n")
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("later files should win: K=%q", got)
	}
	if got := os.Getenv("KEEP"); got != "process" {
		t.Fatalf("process env should win: KEEP=%q", got)
	}
}
