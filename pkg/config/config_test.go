package config

import (
	"testing"

	"github.com/zkriscv/prover/pkg/recursion"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsCyclesPerChunkNotOneBelowPowerOfTwo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CyclesPerChunk = 4
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for CyclesPerChunk+1 not a power of two")
	}
}

func TestValidateRejectsUnsupportedNonUniversalStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UniversalVerifier = false
	cfg.RecursionStrategy = recursion.UseReducedLog23MachineOnly
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported non-universal strategy")
	}
}

func TestValidateAllowsNonUniversalFirstStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UniversalVerifier = false
	cfg.RecursionStrategy = recursion.UseReducedLog23Machine
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
