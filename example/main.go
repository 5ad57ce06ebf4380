package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jpalmerr/tokenfan"
	"github.com/jpalmerr/tokenfan/example/mockremote"
)

const (
	demoKey = "000102030405060708090a0b0c0d0e0f"
	demoIV  = "f0e0d0c0b0a090807060504030201000"
)

func main() {
	remote, err := mockremote.New(demoKey, demoIV, nil)
	if err != nil {
		slog.Error("failed to create mock remote", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := http.ListenAndServe(":9999", remote.Handler()); err != nil {
			slog.Error("mock remote stopped", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	// 250 demo tokens: the first call sends 189, the second wraps around
	poolDir, err := os.MkdirTemp("", "tokenfan-demo")
	if err != nil {
		slog.Error("failed to create pool dir", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(poolDir)

	tokens := make([]string, 250)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("demo-token-%03d", i)
	}
	writeJSON(filepath.Join(poolDir, "token_ind.json"), tokens)
	writeJSON(filepath.Join(poolDir, "token_ind_visit.json"), []string{"demo-visit"})

	fam, err := tokenfan.NewFamily("ind", "http://localhost:9999/action", "http://localhost:9999/status",
		tokenfan.WithTargets("IND"),
		tokenfan.AsFallback(),
	)
	if err != nil {
		slog.Error("failed to create family", "error", err)
		os.Exit(1)
	}

	shim, err := tokenfan.New(
		tokenfan.WithFamily(fam),
		tokenfan.WithEnvelopeKeys(demoKey, demoIV),
		tokenfan.WithPoolDir(poolDir),
		tokenfan.WithPoolWatch(),
		tokenfan.WithPort(5001),
		tokenfan.WithSummaryCallback(func(s tokenfan.Summary) {
			slog.Info("summary", "target", s.Target, "delta", s.Delta, "batch", s.Batch.Size)
		}),
	)
	if err != nil {
		slog.Error("failed to create tokenfan", "error", err)
		os.Exit(1)
	}
	defer shim.Close()

	fmt.Println()
	fmt.Println("  tokenfan demo")
	fmt.Println()
	fmt.Println("  Mock remote on :9999, API on :5001")
	fmt.Println("    curl 'http://localhost:5001/like?uid=12345&server_name=IND'")
	fmt.Println("    curl 'http://localhost:5001/token_info'")
	fmt.Println("    curl -N 'http://localhost:5001/api/sse'")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := shim.Start(ctx); err != nil {
		slog.Error("tokenfan error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		panic(err)
	}
}
