package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDecode_FallsBackToWindows1250(t *testing.T) {
	if got := Decode([]byte("Za\xbf\xf3\xb3\xe6")); got != "Zażółć" {
		t.Fatalf("Decode=%q", got)
	}
	if got := Decode([]byte("\xef\xbb\xbfzażółć")); got != "zażółć" {
		t.Fatalf("UTF-8 with BOM: %q", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a\r\nb\rc", "a\nb\nc"},
		{"x\x00y\x07z\tq", "xyz q"},
		{"many   \t spaces", "many spaces"},
		{"trail  \nnext \n", "trail\nnext\n"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q)=%q, want %q", c.in, got, c.want)
		}
	}
}

func TestRun_MergesSortedInputs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "in")
	write(t, filepath.Join(root, "a", "1.txt"), []byte("Hello\r\nWorld  \t here \n"))
	write(t, filepath.Join(root, "b.html"), []byte("<html><head><title>T</title></head><body><p>Para</p></body></html>"))
	write(t, filepath.Join(root, "c.bin"), []byte("ignored"))
	write(t, filepath.Join(root, "d.TXT"), []byte("Za\xbf\xf3\xb3\xe6"))
	out := filepath.Join(t.TempDir(), "merged.txt")

	res, err := Run(context.Background(), Options{InputDir: root, Output: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 3 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Hello\nWorld here\n\n\nT\n\nPara\n\nZażółć\n\n"
	if string(b) != want {
		t.Fatalf("merged=%q, want %q", b, want)
	}
}

func TestRun_SkipsOwnOutput(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), []byte("one"))
	out := filepath.Join(root, "merged.txt")
	write(t, out, []byte("stale"))
	if _, err := Run(context.Background(), Options{InputDir: root, Output: out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, _ := os.ReadFile(out)
	if string(b) != "one\n\n" {
		t.Fatalf("merged=%q", b)
	}
}

func TestRun_NoInputs(t *testing.T) {
	root := t.TempDir()
	_, err := Run(context.Background(), Options{InputDir: root, Output: filepath.Join(t.TempDir(), "o.txt")})
	if !errors.Is(err, ErrNoInputs) {
		t.Fatalf("want ErrNoInputs, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), []byte("one"))
	out := filepath.Join(t.TempDir(), "o.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Options{InputDir: root, Output: out}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("cancelled merge must not leave output")
	}
}
