package patterns

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"go.uber.org/zap"
)

func TestDefaultsCompile(t *testing.T) {
	for typ, src := range Defaults() {
		if _, err := regexp.Compile("(?i)" + src); err != nil {
			t.Errorf("default pattern %s does not compile: %v", typ, err)
		}
	}
}

func TestFileSource(t *testing.T) {
	t.Run("ValidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns.json")
		if err := os.WriteFile(path, []byte(`{"EMAIL": "[a-z]+@[a-z]+"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := FileSource{Path: path}.Load(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got["EMAIL"] == "" {
			t.Errorf("expected EMAIL pattern, got %v", got)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := (FileSource{Path: "/definitely/not/here.json"}).Load(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("MalformedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := (FileSource{Path: path}).Load(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestResolve(t *testing.T) {
	logger := zap.NewNop()

	t.Run("FallsBackToDefaults", func(t *testing.T) {
		got := Resolve(context.Background(), Config{File: "/nope/patterns.json"}, logger)
		if len(got) != len(Defaults()) {
			t.Errorf("expected built-in defaults, got %d patterns", len(got))
		}
	})

	t.Run("LoadsConfiguredFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns.json")
		if err := os.WriteFile(path, []byte(`{"TOKEN": "tok_[a-z0-9]+"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		got := Resolve(context.Background(), Config{File: path}, logger)
		if len(got) != 1 || got["TOKEN"] == "" {
			t.Errorf("expected the file's single pattern, got %v", got)
		}
	})
}
