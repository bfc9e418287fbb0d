// Package config loads the YAML configuration file used by the cmd/
// front-end. The library's programmatic Config (passed to selfencrypt.New)
// is not part of this package; the CLI uses the loaded values directly for
// its data directory and engine settings. Grounded on the teacher's
// internal/config loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// FileConfig is the shape of the optional YAML config file.
type FileConfig struct {
	// DataDir is the base directory for the Badger-backed chunk store.
	DataDir string `yaml:"data_dir"`

	// ChunkSize is the default chunk size C, in bytes.
	ChunkSize int `yaml:"chunk_size"`

	// MinChunkSize is the minimum chunk size Cmin, in bytes.
	MinChunkSize int `yaml:"min_chunk_size"`

	// NumProcs bounds worker pool concurrency; 0 means detect via NumCPU.
	NumProcs int `yaml:"num_procs"`
}

// Default returns the built-in defaults used when no config file is found.
func Default() FileConfig {
	return FileConfig{
		ChunkSize:    1 << 20,
		MinChunkSize: 1 << 10,
		NumProcs:     0,
	}
}

// Load reads and parses a YAML config file at path, overlaying it onto
// Default(). A missing file is not an error; Default() is returned as-is.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
