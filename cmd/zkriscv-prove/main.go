// Command zkriscv-prove surfaces the recursion-strategy selector, alongside
// the universal-verifier and recompute-vs-cached toggles. It reads a base
// layer RISC-V binary and prints the resulting end parameters and
// auxiliary chain-encoding values.
//
// General configuration management (file/env layering, live reload) is
// out of scope; this entry point only wires flags through to pkg/recursion
// and pkg/config.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
	"github.com/zkriscv/prover/pkg/config"
	"github.com/zkriscv/prover/pkg/log"
	"github.com/zkriscv/prover/pkg/machine"
	"github.com/zkriscv/prover/pkg/recursion"
)

var strategyByName = map[string]recursion.Strategy{
	"log23":          recursion.UseReducedLog23Machine,
	"log23-multiple": recursion.UseReducedLog23MachineMultiple,
	"log23-only":     recursion.UseReducedLog23MachineOnly,
}

func main() {
	app := &cli.App{
		Name:  "zkriscv-prove",
		Usage: "generate recursion end parameters for a base layer RISC-V binary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bin", Required: true, Usage: "path to the base layer RISC-V binary"},
			&cli.StringFlag{Name: "strategy", Value: "log23", Usage: "recursion strategy: log23, log23-multiple, log23-only"},
			&cli.BoolFlag{Name: "universal", Value: true, Usage: "use the universal verifier chain tables"},
			&cli.BoolFlag{Name: "recompute", Value: false, Usage: "recompute end parameters instead of using cached verifier-key digests"},
			&cli.StringFlag{Name: "log-format", Value: "json", Usage: "log rendering: json, text, or color"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Default().Module("cmd").Error("zkriscv-prove failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	strategyName := c.String("strategy")
	strategy, ok := strategyByName[strategyName]
	if !ok {
		return fmt.Errorf("zkriscv-prove: unknown strategy %q", strategyName)
	}

	cfg := config.DefaultConfig()
	cfg.RecursionStrategy = strategy
	cfg.UniversalVerifier = c.Bool("universal")
	cfg.Recompute = c.Bool("recompute")
	cfg.LogFormat = c.String("log-format")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("zkriscv-prove: invalid configuration: %w", err)
	}

	log.SetDefault(log.NewWithFormatter(slog.LevelInfo, log.FormatterByName(cfg.LogFormat), os.Stderr))
	logger := log.Default().Module("cmd")

	binPath := c.String("bin")
	baseLayerBin, err := os.ReadFile(binPath)
	if err != nil {
		return fmt.Errorf("zkriscv-prove: reading base layer binary %s: %w", binPath, err)
	}

	logger.Info("generating end parameters",
		"strategy", strategy.String(), "universal", cfg.UniversalVerifier, "recompute", cfg.Recompute, "bin", binPath)

	var result recursion.EndParameters
	if cfg.Recompute {
		result, err = recursion.GenerateEndParametersRecompute(strategy, baseLayerBin, universalCircuitPlaceholder(), nonUniversalVerifierPlaceholders(), recomputeSetup, cfg.UniversalVerifier)
	} else {
		result, err = recursion.GenerateEndParametersCached(strategy, digestFromBinary(baseLayerBin), cachedVerifierKeys(), cfg.UniversalVerifier)
	}
	if err != nil {
		return fmt.Errorf("zkriscv-prove: generating end parameters: %w", err)
	}

	fmt.Printf("end_params:  %s\n", result.EndParams.Hex())
	fmt.Printf("aux_values:  %s\n", result.AuxValues.Hex())
	return nil
}

// universalCircuitPlaceholder stands in for the embedded universal-circuit
// verifier binary; wiring a real artifact store is outside this CLI's
// scope.
func universalCircuitPlaceholder() []byte { return []byte{} }

// nonUniversalVerifierPlaceholders stands in for the base layer and
// recursion layer verifier circuit binaries the non-universal chain
// hashes through; wiring a real artifact store is outside this CLI's
// scope.
func nonUniversalVerifierPlaceholders() recursion.NonUniversalVerifierBinaries {
	return recursion.NonUniversalVerifierBinaries{
		BaseLayerVerifier:      []byte{},
		RecursionLayerVerifier: []byte{},
	}
}

// recomputeSetup is a placeholder SetupConstructor: the actual circuit
// setup math is opaque device work, external to this module.
func recomputeSetup(bin []byte, m machine.Machine) recursion.Digest {
	return digestFromBinary(bin)
}

func digestFromBinary(bin []byte) recursion.Digest {
	return *uint256.NewInt(uint64(len(bin)))
}

// cachedVerifierKeys stands in for a real verifier-key artifact store; a
// production deployment would load these digests from the compiled
// circuit artifact.
func cachedVerifierKeys() recursion.VerifierKeys {
	return recursion.VerifierKeys{}
}
