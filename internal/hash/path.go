// Package hash provides the deterministic hashing primitives used to
// derive cache shard names and content identifiers.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
)

// shortIDLen is the number of hex characters retained for the
// human-debuggable short form of a path hash.
const shortIDLen = 8

// PathHasher derives stable identifiers from filesystem paths.
type PathHasher struct {
	logger *slog.Logger
}

// NewPathHasher returns a PathHasher. A nil logger falls back to slog.Default.
func NewPathHasher(logger *slog.Logger) *PathHasher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathHasher{logger: logger}
}

// Hash canonicalizes path (resolving symlinks and cleaning separators) and
// returns the full 256-bit hex digest plus its 8-char short form. If
// canonicalization fails, it falls back to the lexically cleaned path and
// logs a warning rather than returning an error.
func (h *PathHasher) Hash(path string) (full string, short string) {
	canonical, err := h.canonicalize(path)
	if err != nil {
		h.logger.Warn("path canonicalization failed, falling back to lexical form", "path", path, "error", err)
		canonical = filepath.Clean(path)
	}

	sum := sha256.Sum256([]byte(canonical))
	full = hex.EncodeToString(sum[:])
	short = full[:shortIDLen]
	return full, short
}

func (h *PathHasher) canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}
