package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/LukaGiorgadze/gonull"
)

// ErrInvalid wraps every validation failure reported by Load.
var ErrInvalid = errors.New("invalid server config")

// File is the on-disk override schema. Absent fields keep their defaults.
type File struct {
	Capacity       gonull.Nullable[int] `json:"capacity"`
	MaxConcurrency gonull.Nullable[int] `json:"max_concurrency"`
}

// Load reads a JSON override file and merges it over the defaults.
//
// A missing file is not an error: the defaults are returned as-is. Present
// but nonpositive values are rejected.
func Load(path string) (ServerConfig, error) {
	cfg := NewServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if f.Capacity.Valid {
		cfg.Capacity = f.Capacity.Val
	}
	if f.MaxConcurrency.Valid {
		cfg.MaxConcurrency = f.MaxConcurrency.Val
	}

	return cfg, cfg.Validate()
}

// Validate rejects sizes with which no queue can be made.
func (c ServerConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalid, c.Capacity)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max_concurrency must be positive, got %d", ErrInvalid, c.MaxConcurrency)
	}
	return nil
}
