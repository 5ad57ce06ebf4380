package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const maxPoolFileSize = 32 << 20 // 32MB

// FileStore reads credential pools from files.
//
// Relative paths returned by the [Resolver] are joined to the store's base
// directory. Two formats are understood, chosen by file extension:
//
//	.json  [{"token": "..."}, ...] or ["...", ...]
//	.toml  [[credential]]
//	       token = "..."
//
// FileStore does not cache; every Load reads the file again.
type FileStore struct {
	dir      string
	resolver Resolver
	logger   *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a [FileStore] rooted at dir.
// If logger is nil, slog.Default() is used.
func NewFileStore(dir string, resolver Resolver, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, resolver: resolver, logger: logger}
}

// Load reads the pool for target and purpose.
// Any failure is logged and reported as an empty pool.
func (s *FileStore) Load(ctx context.Context, target string, purpose Purpose) []Credential {
	if ctx.Err() != nil {
		return []Credential{}
	}

	path, ok := s.resolver.PoolFile(target, purpose)
	if !ok || path == "" {
		return []Credential{}
	}
	path = s.resolve(path)

	creds, err := ReadFile(path)
	if err != nil {
		s.logger.Warn("pool load failed",
			"target", target,
			"purpose", purpose.String(),
			"path", path,
			"error", err,
		)
		return []Credential{}
	}
	return creds
}

func (s *FileStore) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// ReadFile decodes a single pool file.
func ReadFile(path string) ([]Credential, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat pool file: %w", err)
	}
	if info.Size() > maxPoolFileSize {
		return nil, fmt.Errorf("pool file exceeds %d bytes", maxPoolFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSON(data)
	case ".toml":
		return decodeTOML(data)
	default:
		return nil, fmt.Errorf("unsupported pool file extension %q", filepath.Ext(path))
	}
}

// decodeJSON accepts either an array of credential objects or an array of
// bare token strings.
func decodeJSON(data []byte) ([]Credential, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode json pool: %w", err)
	}

	creds := make([]Credential, 0, len(raw))
	for i, item := range raw {
		var token string
		if err := json.Unmarshal(item, &token); err == nil {
			creds = append(creds, Credential{Token: token})
			continue
		}

		// entries without a token field still occupy a slot; the dispatcher
		// reports them as missing-token
		var c Credential
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, fmt.Errorf("decode json pool: entry %d: %w", i, err)
		}
		creds = append(creds, c)
	}
	return creds, nil
}

type tomlPool struct {
	Credential []Credential `toml:"credential"`
}

func decodeTOML(data []byte) ([]Credential, error) {
	var file tomlPool
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode toml pool: %w", err)
	}
	if file.Credential == nil {
		return nil, errors.New("decode toml pool: no [[credential]] entries")
	}
	return file.Credential, nil
}
