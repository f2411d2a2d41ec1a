// Package config loads blockrep configuration.
//
// Configuration is read from a single YAML file named by the
// BLOCKREP_CONFIG environment variable or passed explicitly to LoadFile.
// Values missing from the file keep their defaults; unknown keys are
// rejected.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/image"
	"github.com/wippyai/blockrep/transcoder"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "BLOCKREP_CONFIG"

// Config is the complete blockrep configuration.
type Config struct {
	Arena  ArenaConfig  `yaml:"arena"`
	Heap   HeapConfig   `yaml:"heap"`
	Limits LimitsConfig `yaml:"limits"`
	Decode DecodeConfig `yaml:"decode"`
	Image  ImageConfig  `yaml:"image"`
	Schema SchemaConfig `yaml:"schema"`
}

// ArenaConfig configures arenas backing borrowed decodes.
type ArenaConfig struct {
	// Capacity bounds the bytes one arena hands out. 0 is unlimited.
	Capacity uint64 `yaml:"capacity"`
	// ChunkSize is the size of a regular arena chunk in bytes.
	ChunkSize int `yaml:"chunk_size"`
}

// HeapConfig configures heaps values are encoded into.
type HeapConfig struct {
	// Capacity bounds the image size in bytes. 0 is unlimited.
	Capacity uint32 `yaml:"capacity"`
}

// LimitsConfig bounds the values the transcoder accepts.
type LimitsConfig struct {
	MaxDepth      int `yaml:"max_depth"`
	MaxStringSize int `yaml:"max_string_size"`
	MaxListLength int `yaml:"max_list_length"`
}

type DecodeConfig struct {
	ValidateUTF8    bool `yaml:"validate_utf8"`
	ZeroCopyStrings bool `yaml:"zero_copy_strings"`
}

type ImageConfig struct {
	// Compression is one of none, lz4 or zstd.
	Compression string `yaml:"compression"`
}

type SchemaConfig struct {
	// Path is the JSONC schema file used when a command is given none.
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	tc := transcoder.DefaultConfig()
	return &Config{
		Arena: ArenaConfig{
			ChunkSize: arena.DefaultChunkSize,
		},
		Limits: LimitsConfig{
			MaxDepth:      tc.MaxDepth,
			MaxStringSize: tc.MaxStringSize,
			MaxListLength: tc.MaxListLength,
		},
		Decode: DecodeConfig{
			ValidateUTF8:    tc.ValidateUTF8,
			ZeroCopyStrings: tc.ZeroCopyStrings,
		},
		Image: ImageConfig{
			Compression: image.CompressionNone.String(),
		},
	}
}

// Load loads the file named by BLOCKREP_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig,
			EnvVar+" environment variable not set; set it to the path of a blockrep.yaml file")
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "reading "+path)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parsing configuration")
	}
	cfg.Schema.Path = expandVars(cfg.Schema.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Arena.ChunkSize <= 0 {
		return invalid("arena.chunk_size must be positive, got %d", c.Arena.ChunkSize)
	}
	if _, err := image.ParseCompression(c.Image.Compression); err != nil {
		return invalid("image.compression: unknown value %q", c.Image.Compression)
	}
	return c.Transcoder().Validate()
}

// Transcoder returns the transcoder limits.
func (c *Config) Transcoder() transcoder.Config {
	return transcoder.Config{
		MaxDepth:        c.Limits.MaxDepth,
		MaxStringSize:   c.Limits.MaxStringSize,
		MaxListLength:   c.Limits.MaxListLength,
		ValidateUTF8:    c.Decode.ValidateUTF8,
		ZeroCopyStrings: c.Decode.ZeroCopyStrings,
	}
}

// ArenaOptions returns the options for arena.New.
func (c *Config) ArenaOptions() []arena.Option {
	opts := []arena.Option{arena.WithChunkSize(c.Arena.ChunkSize)}
	if c.Arena.Capacity > 0 {
		opts = append(opts, arena.WithCapacity(c.Arena.Capacity))
	}
	return opts
}

// HeapOptions returns the options for heap.New.
func (c *Config) HeapOptions() []heap.Option {
	if c.Heap.Capacity == 0 {
		return nil
	}
	return []heap.Option{heap.WithCapacity(c.Heap.Capacity)}
}

// Compression returns the image compression. The value has been checked
// by Validate.
func (c *Config) Compression() image.Compression {
	comp, _ := image.ParseCompression(c.Image.Compression)
	return comp
}

func invalid(format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}
