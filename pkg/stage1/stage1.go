// Package stage1 implements witness commitment: given a tracing data
// transfer and a compiled circuit artifact, it computes memory and witness
// polynomial evaluations over the circuit's domain, extends to the LDE
// domain, and commits via a Merkle tree cap. The actual polynomial-commitment
// and FRI-style kernels are an opaque device interface; this package only
// implements the orchestration around that interface — failure-mode checks,
// callback scheduling, and public-input extraction.
package stage1

import (
	"errors"

	"github.com/zkriscv/prover/pkg/device"
	"github.com/zkriscv/prover/pkg/field"
)

// ErrTransferNotReady is returned when Commit is invoked on a
// TracingDataTransfer whose host→device transfer has not
// completed.
var ErrTransferNotReady = errors.New("stage1: tracing data transfer is not ready")

// ErrTraceLenNotPowerOfTwo is returned when the circuit's trace length is
// not a power of two.
var ErrTraceLenNotPowerOfTwo = errors.New("stage1: trace_len is not a power of two")

// ErrUnsupportedLocation is returned for a public input described at
// LastRow, which this pipeline does not support.
var ErrUnsupportedLocation = errors.New("stage1: public inputs at LastRow are unsupported")

// PublicInputLocation names where in the trace a public input column's
// value is read from.
type PublicInputLocation int

const (
	FirstRow PublicInputLocation = iota
	OneBeforeLastRow
	LastRow
)

// PublicInputSpec names a circuit-artifact-described public input: which
// column, and at which row.
type PublicInputSpec struct {
	Column   int
	Location PublicInputLocation
}

// CircuitArtifact is the read-only compiled-circuit description supplied
// externally: trace length, column layout, and public-input locations.
// Only the fields stage1 needs are modeled here.
type CircuitArtifact struct {
	TraceLen                 uint64
	MemoryColumnsCount       int
	WitnessColumnsCount      int
	IsMainCircuit            bool
	GenericLookupColumnsCount int
	PublicInputs             []PublicInputSpec
}

// TracingDataTransfer stands in for a host→device tracing data transfer.
// Only its transferred flag, set once the copy completes, is modeled; it
// holds no host or device buffers.
type TracingDataTransfer struct {
	transferred bool
}

// NewTracingDataTransfer returns a transfer not yet marked complete.
func NewTracingDataTransfer() *TracingDataTransfer { return &TracingDataTransfer{} }

// MarkTransferred records that the host→device copy has completed; it is
// the caller's responsibility to only call this once the copy is actually
// durable (e.g. after an h2d stream event synchronizes).
func (t *TracingDataTransfer) MarkTransferred() { t.transferred = true }

// EnsureTransferred fails with ErrTransferNotReady if the transfer has not
// completed.
func (t *TracingDataTransfer) EnsureTransferred() error {
	if !t.transferred {
		return ErrTransferNotReady
	}
	return nil
}

// Committer is the opaque device commitment interface: given domain evaluations, it
// extends to the LDE domain and commits a Merkle tree cap.
type Committer interface {
	ExtendAndCommit(evaluations []field.Element, logLDEFactor, logTreeCapSize uint32) (TreeCap, error)
}

// TreeCap is the opaque commitment result (a Merkle tree cap digest set);
// its internal shape is the device math's concern, not this package's.
type TreeCap struct {
	Digests [][]byte
}

// TraceHolder is the committed evaluation set for one trace (memory or
// witness).
type TraceHolder struct {
	Evaluations []field.Element
	Cap         TreeCap
}

// Result is the full Stage-1 output. LookupAux is populated whenever the
// circuit declares generic-lookup columns, independent of whether the
// circuit is a main or a delegation circuit.
type Result struct {
	Memory       *TraceHolder
	Witness      *TraceHolder
	LookupAux    []byte
	PublicInputs []field.Element
}

// GenerateEvaluations produces the raw per-column field evaluations for
// one trace kind from the transferred tracing data; the actual trace
// generation math (generate_memory_values_main/delegation and their
// witness-side counterparts) is external device work, so callers supply
// it.
type GenerateEvaluations func() []field.Element

// GenerateLookupAux produces the generic-lookup-mapping auxiliary buffer
// (the lookup multiplicities derived from the witness trace); callers
// supply it whenever circuit.GenericLookupColumnsCount > 0.
type GenerateLookupAux func() []byte

// Commit runs the Stage-1 pipeline: validates the transfer and trace
// length, schedules memory/witness evaluation + extension + commit (and
// the lookup aux buffer, when needed) on the context's exec stream, waits
// on an event recorded after that work, and then extracts public inputs
// on the host once both commitments are done.
func Commit(
	transfer *TracingDataTransfer,
	circuit CircuitArtifact,
	logLDEFactor, logTreeCapSize uint32,
	ctx *device.Context,
	committer Committer,
	generateMemory, generateWitness GenerateEvaluations,
	generateLookupAux GenerateLookupAux,
) (*Result, error) {
	if err := transfer.EnsureTransferred(); err != nil {
		return nil, err
	}
	if circuit.TraceLen == 0 || circuit.TraceLen&(circuit.TraceLen-1) != 0 {
		return nil, ErrTraceLenNotPowerOfTwo
	}
	for _, pi := range circuit.PublicInputs {
		if pi.Location == LastRow {
			return nil, ErrUnsupportedLocation
		}
	}

	var memory, witness *TraceHolder
	var lookupAux []byte
	var commitErr error
	done := device.NewEvent()

	ctx.ExecStream.Launch(func() {
		memEvals := generateMemory()
		cap, err := committer.ExtendAndCommit(memEvals, logLDEFactor, logTreeCapSize)
		if err != nil {
			commitErr = err
			return
		}
		memory = &TraceHolder{Evaluations: memEvals, Cap: cap}

		witEvals := generateWitness()
		wcap, err := committer.ExtendAndCommit(witEvals, logLDEFactor, logTreeCapSize)
		if err != nil {
			commitErr = err
			return
		}
		witness = &TraceHolder{Evaluations: witEvals, Cap: wcap}

		if circuit.GenericLookupColumnsCount > 0 {
			lookupAux = generateLookupAux()
		}
	})
	ctx.ExecStream.RecordEvent(done)
	done.Synchronize()

	if commitErr != nil {
		return nil, commitErr
	}

	var firstRow, oneBeforeLastRow []field.Element
	for _, pi := range circuit.PublicInputs {
		row := rowIndexFor(pi.Location, circuit.TraceLen)
		value := witness.Evaluations[columnMajorIndex(pi.Column, row, circuit.TraceLen)]
		switch pi.Location {
		case FirstRow:
			firstRow = append(firstRow, value)
		case OneBeforeLastRow:
			oneBeforeLastRow = append(oneBeforeLastRow, value)
		}
	}
	publicInputs := make([]field.Element, 0, len(firstRow)+len(oneBeforeLastRow))
	publicInputs = append(publicInputs, firstRow...)
	publicInputs = append(publicInputs, oneBeforeLastRow...)

	return &Result{Memory: memory, Witness: witness, LookupAux: lookupAux, PublicInputs: publicInputs}, nil
}

func rowIndexFor(loc PublicInputLocation, traceLen uint64) uint64 {
	switch loc {
	case FirstRow:
		return 0
	case OneBeforeLastRow:
		return traceLen - 2
	default:
		panic("stage1: unsupported public input location reached row resolution")
	}
}

func columnMajorIndex(column int, row, traceLen uint64) uint64 {
	return uint64(column)*traceLen + row
}
