package transcoder

import (
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/internal/abi"
)

// Config bounds the work a single encode or decode may do.
type Config struct {
	MaxDepth      int
	MaxStringSize int
	MaxListLength int
	// ValidateUTF8 rejects string blocks holding invalid UTF-8.
	ValidateUTF8 bool
	// ZeroCopyStrings lets borrowed decodes alias string bytes in the
	// heap image instead of copying them into the arena.
	ZeroCopyStrings bool
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:        10_000,
		MaxStringSize:   16 << 20,
		MaxListLength:   1 << 24,
		ZeroCopyStrings: true,
	}
}

// Validate checks the limits against the hard ABI ceilings.
func (c Config) Validate() error {
	switch {
	case c.MaxDepth <= 0 || c.MaxDepth > abi.MaxDepth:
		return errors.InvalidInput(errors.PhaseConfig, "max depth out of range")
	case c.MaxStringSize <= 0 || c.MaxStringSize > abi.MaxStringSize:
		return errors.InvalidInput(errors.PhaseConfig, "max string size out of range")
	case c.MaxListLength <= 0 || c.MaxListLength > abi.MaxListLength:
		return errors.InvalidInput(errors.PhaseConfig, "max list length out of range")
	}
	return nil
}
