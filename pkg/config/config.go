// Package config carries the numeric knobs the proving pipeline needs to
// be constructed: the chunk size and chunk-count bound, LDE and tree-cap
// sizes, allocator block sizes, the recursion strategy and verifier flags,
// and the log format. It is a plain struct with defaults, not a general
// configuration-loading framework — file/env layering and live reload are
// out of scope; the cmd entry point is the only loader.
package config

import (
	"fmt"

	"github.com/zkriscv/prover/pkg/device"
	"github.com/zkriscv/prover/pkg/recursion"
)

// Config holds every tunable the pipeline's packages need at construction
// time.
type Config struct {
	// CyclesPerChunk is the tracing worker's chunk window size.
	CyclesPerChunk uint64
	// NumMainChunksUpperBound bounds how many chunks a worker will trace
	// before giving up with NonTermination.
	NumMainChunksUpperBound uint64
	// LogLDEFactor is the log2 of the low-degree-extension blowup factor
	// stage1 commits over.
	LogLDEFactor uint32
	// LogTreeCapSize is the log2 of the Merkle tree cap width.
	LogTreeCapSize uint32
	// Device carries the allocator block-size/slack/pool knobs.
	Device device.Config
	// RecursionStrategy selects the recursion planner's strategy.
	RecursionStrategy recursion.Strategy
	// UniversalVerifier selects the universal vs. non-universal chain tables.
	UniversalVerifier bool
	// Recompute selects the recompute vs. cached end-parameter generation path.
	Recompute bool
	// LogFormat selects the rendering pkg/log uses: "json" (default),
	// "text", or "color".
	LogFormat string
}

// DefaultConfig returns the pipeline's standard tuning: the reduced
// machine's chunk size (its 2^21 domain size minus one), the
// UseReducedLog23Machine strategy, and pkg/device's default allocator
// settings.
func DefaultConfig() *Config {
	return &Config{
		CyclesPerChunk:          1<<21 - 1,
		NumMainChunksUpperBound: 1 << 16,
		LogLDEFactor:            1,
		LogTreeCapSize:          4,
		Device:                  device.DefaultConfig(),
		RecursionStrategy:       recursion.UseReducedLog23Machine,
		UniversalVerifier:       true,
		Recompute:               false,
		LogFormat:               "json",
	}
}

// Validate checks config constraints and returns an error if invalid.
func (c *Config) Validate() error {
	if c.CyclesPerChunk == 0 || (c.CyclesPerChunk+1)&c.CyclesPerChunk != 0 {
		return fmt.Errorf("config: CyclesPerChunk must be one less than a power of two, got %d", c.CyclesPerChunk)
	}
	if c.NumMainChunksUpperBound == 0 {
		return fmt.Errorf("config: NumMainChunksUpperBound must be > 0")
	}
	if c.LogTreeCapSize == 0 {
		return fmt.Errorf("config: LogTreeCapSize must be > 0")
	}
	if !c.UniversalVerifier && c.RecursionStrategy != recursion.UseReducedLog23Machine {
		return fmt.Errorf("config: strategy %s is not supported for the non-universal verifier", c.RecursionStrategy)
	}
	switch c.LogFormat {
	case "json", "text", "color":
	default:
		return fmt.Errorf("config: LogFormat must be one of json, text, color, got %q", c.LogFormat)
	}
	return nil
}
