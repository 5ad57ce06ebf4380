package pool

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func staticResolver(files map[Purpose]string) Resolver {
	return ResolverFunc(func(target string, purpose Purpose) (string, bool) {
		path, ok := files[purpose]
		return path, ok
	})
}

func TestReadFile_JSONObjects(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pool.json", `[{"token":"a"},{"token":"b"},{"uid":1}]`)

	creds, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(creds) != 3 {
		t.Fatalf("len(creds) = %d, want 3", len(creds))
	}
	if creds[0].Token != "a" || creds[1].Token != "b" {
		t.Errorf("creds = %v, want tokens a, b", creds)
	}
	if creds[2].Usable() {
		t.Error("entry without token should not be usable")
	}
}

func TestReadFile_JSONStrings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pool.json", `["x","y"]`)

	creds, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(creds) != 2 || creds[1].Token != "y" {
		t.Errorf("creds = %v, want [x y]", creds)
	}
}

func TestReadFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pool.toml", `
[[credential]]
token = "one"

[[credential]]
token = "two"
`)

	creds, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(creds) != 2 || creds[0].Token != "one" || creds[1].Token != "two" {
		t.Errorf("creds = %v, want [one two]", creds)
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"malformed json", "bad.json", `{"token":`},
		{"json object not array", "obj.json", `{"token":"a"}`},
		{"malformed toml", "bad.toml", `[[credential`},
		{"toml without entries", "empty.toml", `title = "x"`},
		{"unknown extension", "pool.txt", `a`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.body)
			if _, err := ReadFile(path); err == nil {
				t.Errorf("ReadFile(%s) expected error, got nil", tt.file)
			}
		})
	}
}

func TestFileStore_LoadFailuresYieldEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `not json`)

	store := NewFileStore(dir, staticResolver(map[Purpose]string{
		PurposeAction: "bad.json",
		PurposeStatus: "missing.json",
	}), testLogger())

	for _, purpose := range []Purpose{PurposeAction, PurposeStatus} {
		creds := store.Load(context.Background(), "IND", purpose)
		if creds == nil {
			t.Errorf("Load(%s) = nil, want empty slice", purpose)
		}
		if len(creds) != 0 {
			t.Errorf("Load(%s) = %v, want empty", purpose, creds)
		}
	}
}

func TestFileStore_UnresolvedTarget(t *testing.T) {
	store := NewFileStore(t.TempDir(), staticResolver(nil), testLogger())

	if creds := store.Load(context.Background(), "XX", PurposeAction); len(creds) != 0 {
		t.Errorf("Load() = %v, want empty", creds)
	}
}

func TestFileStore_RelativeAndAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rel.json", `["r"]`)
	abs := writeFile(t, t.TempDir(), "abs.json", `["a1","a2"]`)

	store := NewFileStore(dir, staticResolver(map[Purpose]string{
		PurposeAction: "rel.json",
		PurposeStatus: abs,
	}), testLogger())

	if got := store.Load(context.Background(), "T", PurposeAction); len(got) != 1 {
		t.Errorf("relative Load() = %v, want 1 credential", got)
	}
	if got := store.Load(context.Background(), "T", PurposeStatus); len(got) != 2 {
		t.Errorf("absolute Load() = %v, want 2 credentials", got)
	}
}

func TestCredential_Usable(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"abc", true},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := (Credential{Token: tt.token}).Usable(); got != tt.want {
			t.Errorf("Credential{%q}.Usable() = %v, want %v", tt.token, got, tt.want)
		}
	}
}
