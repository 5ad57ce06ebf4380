// Standalone mock remote service for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/tokenfan serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/tokenfan/example/mockremote"
)

func main() {
	key := envOr("TOKENFAN_KEY", "000102030405060708090a0b0c0d0e0f")
	iv := envOr("TOKENFAN_IV", "f0e0d0c0b0a090807060504030201000")

	remote, err := mockremote.New(key, iv, nil)
	if err != nil {
		slog.Error("failed to create mock remote", "error", err)
		os.Exit(1)
	}

	fmt.Println("Mock remote starting on :9999")
	fmt.Println("  POST /action  counts one like per token per subject")
	fmt.Println("  POST /status  reports {\"AccountInfo\":{\"Likes\":n}}")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := http.ListenAndServe(":9999", remote.Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
