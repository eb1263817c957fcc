// Package machine supplies the Machine constant table and the CircuitType
// taxonomy. The RISC-V instruction decoder itself is out of scope; only the
// machine-configuration surface it implies is specified here.
package machine

// Machine is the closed enumeration of machine configurations. ReducedFinal
// exists as a value but no recursion strategy in the closed 3-strategy
// enumeration ever selects it: the legacy UseFinalMachine strategy is
// deliberately not implemented.
type Machine int

const (
	Standard Machine = iota
	Reduced
	ReducedLog23
	ReducedFinal
)

// String renders the machine name for logging.
func (m Machine) String() string {
	switch m {
	case Standard:
		return "Standard"
	case Reduced:
		return "Reduced"
	case ReducedLog23:
		return "ReducedLog23"
	case ReducedFinal:
		return "ReducedFinal"
	default:
		return "Unknown"
	}
}

// Constants holds the per-machine tuning table: domain size, LDE extension
// factor, Merkle tree cap size, allowed delegation CSR set, and cycle count
// per chunk. DomainSize must be a power of two.
type Constants struct {
	DomainSize            uint64
	LDEFactor             uint64
	LogTreeCapSize         uint64
	AllowedDelegationCSRs []uint32
	CyclesPerChunk        uint64
}

var table = map[Machine]Constants{
	Standard: {
		DomainSize:            1 << 20,
		LDEFactor:             4,
		LogTreeCapSize:         4,
		AllowedDelegationCSRs: FullMachineAllowedDelegationTypes(),
		CyclesPerChunk:        1<<20 - 1,
	},
	Reduced: {
		DomainSize:            1 << 21,
		LDEFactor:             4,
		LogTreeCapSize:         4,
		AllowedDelegationCSRs: ReducedMachineAllowedDelegationTypes(),
		CyclesPerChunk:        1<<21 - 1,
	},
	ReducedLog23: {
		DomainSize:            1 << 23,
		LDEFactor:             2,
		LogTreeCapSize:         3,
		AllowedDelegationCSRs: ReducedMachineAllowedDelegationTypes(),
		CyclesPerChunk:        1<<23 - 1,
	},
	ReducedFinal: {
		DomainSize:            1 << 23,
		LDEFactor:             2,
		LogTreeCapSize:         3,
		AllowedDelegationCSRs: ReducedMachineAllowedDelegationTypes(),
		CyclesPerChunk:        1<<23 - 1,
	},
}

// ConstantsFor returns the tuning table entry for m.
func ConstantsFor(m Machine) Constants { return table[m] }

// RegisterValue pairs a register's final value with the timestamp of its
// last access.
type RegisterValue struct {
	Value               uint32
	LastAccessTimestamp uint64
}

// ProofMetadata is the observable scalar summary after a recursion layer
// runs: per-register final state, how many
// proofs of each kind were produced, and the previous layer's end
// parameters, if any.
type ProofMetadata struct {
	RegisterValues         [32]RegisterValue
	BasicProofCount        uint64
	ReducedProofCount      uint64
	ReducedLog23ProofCount uint64
	DelegationProofCount   map[DelegationCircuitType]uint64
	PrevEndParamsOutput    *[8]uint32
}

// MainCircuitType enumerates the main-trace circuit variants.
type MainCircuitType int

const (
	FinalReducedRiscVMachine MainCircuitType = iota
	MachineWithoutSignedMulDiv
	ReducedRiscVMachine
	ReducedRiscVLog23Machine
	RiscVCycles
)

// DelegationCircuitType enumerates the delegation (co-processor) circuit
// variants. The numeric values are an implementation choice documented in
// DESIGN.md, since no authoritative ISA-config constant table was available.
type DelegationCircuitType uint32

const (
	BigIntWithControl     DelegationCircuitType = 1
	Blake2WithCompression DelegationCircuitType = 2
)

// NumDelegationCycles returns the fixed cycle count for one instance of d.
func (d DelegationCircuitType) NumDelegationCycles() uint64 {
	switch d {
	case BigIntWithControl:
		return 64
	case Blake2WithCompression:
		return 8
	default:
		return 0
	}
}

// DelegationCircuitTypeFromU16 converts a raw CSR-encoded delegation type,
// panicking on an unrecognized value: an unknown delegation CSR is a
// configuration bug, not a recoverable runtime condition.
func DelegationCircuitTypeFromU16(raw uint16) DelegationCircuitType {
	switch uint32(raw) {
	case uint32(BigIntWithControl):
		return BigIntWithControl
	case uint32(Blake2WithCompression):
		return Blake2WithCompression
	default:
		panic("machine: unknown delegation type")
	}
}

// CircuitType is either a Main or a Delegation circuit identifier. It is
// used as the skip-set / tracing-state key throughout pkg/tracer and
// pkg/worker.
type CircuitType struct {
	isMain     bool
	main       MainCircuitType
	delegation DelegationCircuitType
}

// Main wraps a MainCircuitType as a CircuitType.
func Main(t MainCircuitType) CircuitType { return CircuitType{isMain: true, main: t} }

// Delegation wraps a DelegationCircuitType as a CircuitType.
func Delegation(t DelegationCircuitType) CircuitType { return CircuitType{delegation: t} }

// FromDelegationType builds a CircuitType from a raw delegation CSR value.
func FromDelegationType(raw uint16) CircuitType {
	return Delegation(DelegationCircuitTypeFromU16(raw))
}

// AsMain returns (t, true) iff c wraps a MainCircuitType.
func (c CircuitType) AsMain() (MainCircuitType, bool) { return c.main, c.isMain }

// AsDelegation returns (t, true) iff c wraps a DelegationCircuitType.
func (c CircuitType) AsDelegation() (DelegationCircuitType, bool) {
	return c.delegation, !c.isMain
}

// FullMachineAllowedDelegationTypes returns the delegation CSR set allowed
// by the full (Standard) machine, in the fixed order the oracle encoder
// must iterate.
func FullMachineAllowedDelegationTypes() []uint32 {
	return []uint32{uint32(BigIntWithControl), uint32(Blake2WithCompression)}
}

// ReducedMachineAllowedDelegationTypes returns the delegation CSR set
// allowed by reduced machines, in the fixed iteration order.
func ReducedMachineAllowedDelegationTypes() []uint32 {
	return []uint32{uint32(BigIntWithControl), uint32(Blake2WithCompression)}
}
