package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// executeCmd runs the root command with args and returns captured stdout
// and any error.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config pointed at remoteURL with pools in a temp dir.
func writeConfig(t *testing.T, remoteURL string) (configPath, poolDir string) {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
port: 19401
pool_dir: %s
envelope:
  key: 000102030405060708090a0b0c0d0e0f
  iv: f0e0d0c0b0a090807060504030201000
families:
  - name: ind
    targets: [IND]
    action_url: %s/action
    status_url: %s/status
  - name: br
    targets: [BR, US]
    action_url: %s/action
    status_url: %s/status
    action_pool: br.toml
    status_pool: br_visit.toml
  - name: bd
    fallback: true
    action_url: %s/action
    status_url: %s/status
`, dir, remoteURL, remoteURL, remoteURL, remoteURL, remoteURL, remoteURL)

	configPath = filepath.Join(dir, "tokenfan.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath, _ := writeConfig(t, "https://remote.example.com")

	output, err := executeCmd(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Port:            19401",
		"Batch size:      189",
		"Request timeout: 10s",
		"Families:        3 (3 targets, fallback: bd)",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	writeFile(t, configPath, `
envelope:
  key: 000102030405060708090a0b0c0d0e0f
  iv: f0e0d0c0b0a090807060504030201000
families:
  - name: ""
    targets: [IND]
    action_url: https://a/like
    status_url: https://a/info
`)

	_, err := executeCmd(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention 'name is required', got: %v", err)
	}
}

func TestRunValidate_BadEnvelopeKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "badkey.yaml")
	writeFile(t, configPath, `
envelope:
  key: 0011
  iv: f0e0d0c0b0a090807060504030201000
families:
  - name: ind
    targets: [IND]
    action_url: https://a/like
    status_url: https://a/info
`)

	_, err := executeCmd(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for a 2-byte key")
	}
	if !strings.Contains(err.Error(), "envelope key") {
		t.Errorf("error should mention the envelope key, got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunPools(t *testing.T) {
	configPath, dir := writeConfig(t, "https://remote.example.com")
	writeFile(t, filepath.Join(dir, "token_ind.json"), `["a","b","c"]`)
	writeFile(t, filepath.Join(dir, "token_ind_visit.json"), `[{"token":"v"}]`)
	writeFile(t, filepath.Join(dir, "br.toml"), "[[credential]]\ntoken = \"x\"\n\n[[credential]]\ntoken = \"y\"\n")

	output, err := executeCmd(t, "pools", "-c", configPath)
	if err != nil {
		t.Fatalf("pools command error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 targets, got:\n%s", output)
	}
	want := map[string][]string{
		"IND": {"3", "1"},
		"BR":  {"2", "0"},
		"US":  {"2", "0"},
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			t.Errorf("malformed line %q", line)
			continue
		}
		exp, ok := want[fields[0]]
		if !ok {
			t.Errorf("unexpected target %q", fields[0])
			continue
		}
		if fields[1] != exp[0] || fields[2] != exp[1] {
			t.Errorf("%s = %s/%s, want %s/%s", fields[0], fields[1], fields[2], exp[0], exp[1])
		}
	}
}

func TestRunLike(t *testing.T) {
	var likes atomic.Int64
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/action":
			likes.Add(1)
		case "/status":
			fmt.Fprintf(w, `{"AccountInfo":{"Likes":%d}}`, likes.Load())
		}
	}))
	defer remote.Close()

	configPath, dir := writeConfig(t, remote.URL)
	writeFile(t, filepath.Join(dir, "token_bd.json"), `["a","b"]`)
	writeFile(t, filepath.Join(dir, "token_bd_visit.json"), `["v"]`)

	output, err := executeCmd(t, "like", "-c", configPath, "--uid", "42", "--target", "sg", "--policy", "random")
	if err != nil {
		t.Fatalf("like command error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if got["target"] != "SG" || got["delta"] != float64(2) || got["policy"] != "random" {
		t.Errorf("summary = %v", got)
	}
}

func TestVersion(t *testing.T) {
	output, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.HasPrefix(output, "tokenfan dev") {
		t.Errorf("output = %q", output)
	}
}
