// Package recursion implements the recursion strategy planner: the closed
// enumeration of recursion strategies, the three predicates that drive a
// proving run's layer transitions, and end-parameter generation via either
// the recompute path (calling a circuit setup constructor per
// binary/machine pair) or the cached path (Blake2s-chaining fixed
// verifier-key digests).
package recursion

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/zkriscv/prover/pkg/machine"
	"golang.org/x/crypto/blake2s"
)

// DigestWords is the width of a chain-encoding digest: an 8-word/32-byte
// Blake2s output.
const DigestWords = 8

// Digest is a chain-encoding accumulator value: an 8-word/32-byte Blake2s
// output is exactly a 256-bit unsigned integer, so uint256.Int gives cheap
// zero-checks and equality comparisons over it without a bespoke bignum
// type.
type Digest = uint256.Int

// digestFromWords packs 8 u32 words, each in little-endian byte order, into
// the 32 bytes of a Digest.
func digestFromWords(words [DigestWords]uint32) Digest {
	var b [32]byte
	for i, w := range words {
		putU32(b[i*4:], w)
	}
	var d uint256.Int
	d.SetBytes32(b[:])
	return d
}

// digestWords unpacks a Digest back into its 8 little-endian u32 words.
func digestWords(d Digest) [DigestWords]uint32 {
	b := d.Bytes32()
	var words [DigestWords]uint32
	for i := range words {
		words[i] = getU32(b[i*4:])
	}
	return words
}

// Strategy is the closed 3-value recursion strategy enumeration. A legacy
// UseFinalMachine strategy is deliberately not carried forward — it is no
// longer supported.
type Strategy int

const (
	UseReducedLog23Machine Strategy = iota
	UseReducedLog23MachineMultiple
	UseReducedLog23MachineOnly
)

func (s Strategy) String() string {
	switch s {
	case UseReducedLog23Machine:
		return "UseReducedLog23Machine"
	case UseReducedLog23MachineMultiple:
		return "UseReducedLog23MachineMultiple"
	case UseReducedLog23MachineOnly:
		return "UseReducedLog23MachineOnly"
	default:
		return "Unknown"
	}
}

// ErrUnsupportedStrategy is raised when a non-universal verifier chain is
// requested for any strategy other than UseReducedLog23Machine.
type ErrUnsupportedStrategy struct {
	Strategy Strategy
}

func (e ErrUnsupportedStrategy) Error() string {
	return fmt.Sprintf("recursion: strategy %s is not supported for the non-universal verifier", e.Strategy)
}

// firstLayerThresholds holds the per-strategy (N, M) bounds from
// switch_to_second_recursion_layer: N bounds reduced_proof_count, M bounds
// any one delegation type's count.
var firstLayerThresholds = map[Strategy]struct{ N, M uint64 }{
	UseReducedLog23Machine:         {N: 2, M: 1},
	UseReducedLog23MachineMultiple: {N: 5, M: 2},
}

// SkipFirstLayer reports whether the strategy skips the first recursion
// layer entirely (true only for UseReducedLog23MachineOnly).
func (s Strategy) SkipFirstLayer() bool {
	return s == UseReducedLog23MachineOnly
}

// SwitchToSecondRecursionLayer reports whether the first layer's proof
// counts have stayed within this strategy's thresholds, meaning the
// planner should move on to the second recursion layer.
func (s Strategy) SwitchToSecondRecursionLayer(meta machine.ProofMetadata) bool {
	if s == UseReducedLog23MachineOnly {
		return true
	}
	bounds, ok := firstLayerThresholds[s]
	if !ok {
		return true
	}
	continueFirstLayer := meta.ReducedProofCount > bounds.N
	for _, count := range meta.DelegationProofCount {
		if count > bounds.M {
			continueFirstLayer = true
			break
		}
	}
	return !continueFirstLayer
}

// FinishSecondRecursionLayer reports whether the second recursion layer
// has consolidated down to a single proof and should terminate.
// UseReducedLog23MachineMultiple and UseReducedLog23MachineOnly never
// terminate at proofLevel 0, so they run at least two repetitions.
//
// UseReducedLog23Machine runs exactly one second-layer repetition and
// asserts that invariant rather than computing a general condition.
func (s Strategy) FinishSecondRecursionLayer(meta machine.ProofMetadata, proofLevel int) bool {
	switch s {
	case UseReducedLog23Machine:
		if proofLevel != 0 {
			panic("recursion: UseReducedLog23Machine requires proof_level == 0")
		}
		if meta.ReducedLog23ProofCount != 1 {
			panic("recursion: UseReducedLog23Machine requires exactly one reduced-log23 proof")
		}
		return true
	case UseReducedLog23MachineMultiple, UseReducedLog23MachineOnly:
		continueSecondLayer := meta.ReducedLog23ProofCount > 1 || proofLevel == 0
		if !continueSecondLayer {
			for _, count := range meta.DelegationProofCount {
				if count > 1 {
					continueSecondLayer = true
					break
				}
			}
		}
		return !continueSecondLayer
	default:
		return true
	}
}

// SecondLayerMachine is the machine configuration every strategy's second
// layer runs (all three strategies agree: ReducedLog23).
func (s Strategy) SecondLayerMachine() machine.Machine {
	return machine.ReducedLog23
}

// VerifierKeys supplies the fixed verifier-key digests the cached
// end-parameter path chains together; callers populate these from their
// circuit-artifact store.
type VerifierKeys struct {
	UniversalVerifierParams           Digest
	UniversalLog23VerifierParams      Digest
	RecursionLayerVerifierParams      Digest
	RecursionLog23LayerVerifierParams Digest
}

// SetupConstructor computes a binary/machine pair's end parameters the
// recompute way — the actual trace-and-split circuit setup math is
// external device work, so callers supply it.
type SetupConstructor func(binary []byte, m machine.Machine) Digest

// chainEncoding implements digest_0 = [0;8]; digest_{i+1} =
// H(digest_i || entry_{i+1}) with H the 8-word Blake2s output.
func chainEncoding(entries []Digest) Digest {
	digest := Digest{}
	for _, entry := range entries {
		digest = chainStep(digest, entry)
	}
	return digest
}

func chainStep(prev, entry Digest) Digest {
	prevWords, entryWords := digestWords(prev), digestWords(entry)
	var buf [DigestWords * 2 * 4]byte
	for i, w := range prevWords {
		putU32(buf[i*4:], w)
	}
	for i, w := range entryWords {
		putU32(buf[(DigestWords+i)*4:], w)
	}
	sum := blake2s.Sum256(buf[:])
	var words [DigestWords]uint32
	for i := range words {
		words[i] = getU32(sum[i*4:])
	}
	return digestFromWords(words)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// EndParameters is the generated result: the selected layer's end
// parameters, plus the aux values (the chain encoding of the per-layer
// parameter digests) fed to the next proof as its aux inputs.
type EndParameters struct {
	EndParams Digest
	AuxValues Digest
}

// GenerateEndParametersCached computes end parameters the cached way:
// Blake2s-chaining fixed verifier-key digests through an explicit
// per-strategy chain table. universalVerifier selects between the
// universal and non-universal chains; non-universal mode only supports
// UseReducedLog23Machine and returns ErrUnsupportedStrategy otherwise.
func GenerateEndParametersCached(strategy Strategy, baseParams Digest, keys VerifierKeys, universalVerifier bool) (EndParameters, error) {
	if universalVerifier {
		switch strategy {
		case UseReducedLog23Machine:
			aux := chainEncoding([]Digest{baseParams, keys.UniversalVerifierParams})
			return EndParameters{EndParams: keys.UniversalLog23VerifierParams, AuxValues: aux}, nil
		case UseReducedLog23MachineMultiple:
			aux := chainEncoding([]Digest{baseParams, keys.UniversalVerifierParams, keys.UniversalLog23VerifierParams})
			return EndParameters{EndParams: keys.UniversalLog23VerifierParams, AuxValues: aux}, nil
		case UseReducedLog23MachineOnly:
			aux := chainEncoding([]Digest{baseParams, keys.UniversalLog23VerifierParams})
			return EndParameters{EndParams: keys.UniversalLog23VerifierParams, AuxValues: aux}, nil
		}
		return EndParameters{}, ErrUnsupportedStrategy{Strategy: strategy}
	}

	if strategy != UseReducedLog23Machine {
		return EndParameters{}, ErrUnsupportedStrategy{Strategy: strategy}
	}
	aux := chainEncoding([]Digest{baseParams, keys.RecursionLayerVerifierParams, keys.RecursionLog23LayerVerifierParams})
	return EndParameters{EndParams: keys.RecursionLog23LayerVerifierParams, AuxValues: aux}, nil
}

// NonUniversalVerifierBinaries names the two distinct verifier circuit
// binaries the non-universal chain hashes through: the base layer
// verifier and the recursion layer verifier are separate circuits, unlike
// the universal chain's single reusable verifier binary.
type NonUniversalVerifierBinaries struct {
	BaseLayerVerifier      []byte
	RecursionLayerVerifier []byte
}

// GenerateEndParametersRecompute computes end parameters the recompute
// way: calls setup for every (binary, machine) pair in the strategy's
// chain, chains their digests as aux values, and separately computes the
// end parameters for the terminal (binary, machine) pair.
//
// secondStageBinary is the universal chain's single reusable verifier
// binary, reused at different machine kinds; it is only consulted when
// universalVerifier is true. nonUniversal supplies the two distinct
// verifier binaries the non-universal UseReducedLog23Machine chain needs
// and is only consulted when universalVerifier is false.
func GenerateEndParametersRecompute(strategy Strategy, baseLayerBinary []byte, secondStageBinary []byte, nonUniversal NonUniversalVerifierBinaries, setup SetupConstructor, universalVerifier bool) (EndParameters, error) {
	if !universalVerifier && strategy != UseReducedLog23Machine {
		return EndParameters{}, ErrUnsupportedStrategy{Strategy: strategy}
	}

	type pair struct {
		binary      []byte
		machineKind machine.Machine
	}

	var chain []pair
	var terminal pair
	if universalVerifier {
		switch strategy {
		case UseReducedLog23Machine:
			chain = []pair{{baseLayerBinary, machine.Standard}, {secondStageBinary, machine.Reduced}}
			terminal = pair{secondStageBinary, machine.ReducedLog23}
		case UseReducedLog23MachineMultiple:
			chain = []pair{{baseLayerBinary, machine.Standard}, {secondStageBinary, machine.Reduced}, {secondStageBinary, machine.ReducedLog23}}
			terminal = pair{secondStageBinary, machine.ReducedLog23}
		case UseReducedLog23MachineOnly:
			chain = []pair{{baseLayerBinary, machine.Standard}, {secondStageBinary, machine.ReducedLog23}}
			terminal = pair{secondStageBinary, machine.ReducedLog23}
		}
	} else {
		// Non-universal UseReducedLog23Machine chains base → base-layer
		// verifier (Reduced) → recursion-layer verifier (Reduced); the
		// terminal end_params are computed separately at the recursion-layer
		// verifier, ReducedLog23 — it is not a fourth chain entry.
		chain = []pair{
			{baseLayerBinary, machine.Standard},
			{nonUniversal.BaseLayerVerifier, machine.Reduced},
			{nonUniversal.RecursionLayerVerifier, machine.Reduced},
		}
		terminal = pair{nonUniversal.RecursionLayerVerifier, machine.ReducedLog23}
	}

	entries := make([]Digest, 0, len(chain))
	for _, p := range chain {
		entries = append(entries, setup(p.binary, p.machineKind))
	}
	aux := chainEncoding(entries)
	endParams := setup(terminal.binary, terminal.machineKind)
	return EndParameters{EndParams: endParams, AuxValues: aux}, nil
}
