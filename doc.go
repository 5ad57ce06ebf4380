// Package tokenfan fans a single request out over a batch of stored
// credentials and reports how far a remote counter moved as a result.
//
// A call to [Shim.Like] reads the counter, selects a batch of up to 189
// credentials from the target's pool, sends one encrypted request per
// credential concurrently, reads the counter again and returns a [Summary]
// with the before, after and delta values.
//
// # Quick Start
//
//	fam, _ := tokenfan.NewFamily("ind", "https://ind.example.com/like", "https://ind.example.com/info",
//	    tokenfan.WithTargets("IND"),
//	)
//	shim, _ := tokenfan.New(
//	    tokenfan.WithFamily(fam),
//	    tokenfan.WithEnvelopeKeys(keyHex, ivHex),
//	    tokenfan.WithPoolDir("/var/lib/tokenfan"),
//	)
//	defer shim.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	shim.Start(ctx) // blocks until context is cancelled
//
// # Families and pools
//
// Targets are grouped into families that share URLs and pool files. One
// family may be marked [AsFallback] to serve every unlisted target. Pool
// files are JSON arrays of {"token": "..."} objects or bare strings, or TOML
// files with [[credential]] tables.
//
// # Batch policies
//
//   - [PolicyRotating]: consecutive credentials from a per-target cursor
//   - [PolicyRandom]: a uniform sample without replacement
//
// # HTTP API
//
//   - GET /like?uid=&server_name=&random=true|false
//   - GET /token_info
//   - GET /api/results
//   - GET /api/sse
//   - GET /healthz
//
// # Architecture
//
// The internal packages are not part of the public API:
//
//   - internal/pool: credential pool files and the watching cache
//   - internal/batch: rotating and random batch selection
//   - internal/dispatch: HTTP client, concurrent fan-out and counter reads
//   - internal/reconcile: the read, dispatch, read sequence
//   - internal/envelope: AES-CBC request bodies
//   - internal/route: target to family table
//   - internal/store: latest result per target with pub/sub
//   - internal/server: HTTP API and Server-Sent Events
package tokenfan
