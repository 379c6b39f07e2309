package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv("TEST_PANEL_KEY", "from-env")

	got, err := Load(Source{Name: "openai api key", File: path, Value: "inline", Env: "TEST_PANEL_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestLoadFallsBackToValueThenEnv(t *testing.T) {
	t.Setenv("TEST_PANEL_KEY", " from-env ")

	got, err := Load(Source{Value: " inline ", Env: "TEST_PANEL_KEY"})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline value, got %q (%v)", got, err)
	}

	got, err = Load(Source{Env: "TEST_PANEL_KEY"})
	if err != nil || got != "from-env" {
		t.Fatalf("expected env value, got %q (%v)", got, err)
	}
}

func TestLoadErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("  "), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	cases := []struct {
		name string
		src  Source
		want string
	}{
		{name: "empty file", src: Source{Name: "gemini api key", File: empty}, want: "is empty"},
		{name: "missing file", src: Source{File: filepath.Join(t.TempDir(), "missing")}, want: "reading secret"},
		{name: "unset env", src: Source{Name: "key", Env: "TEST_PANEL_UNSET_KEY"}, want: "set TEST_PANEL_UNSET_KEY"},
		{name: "nothing", src: Source{Name: "key"}, want: "key is not configured"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}
