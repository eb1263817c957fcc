// Package tracer implements the execution tracer: the callback target the
// RISC-V state machine drives on every cycle, recording RAM last-access
// timestamps, per-cycle trace rows, and delegation request
// counts/witnesses. The RISC-V state machine itself is an external
// collaborator that drives this tracer from its RunCycles; this package
// never decodes an instruction.
package tracer

import "github.com/zkriscv/prover/pkg/machine"

// TimestampFromChunkCycleAndSequence is the deterministic timestamp
// assignment function: timestamps are monotone across chunks for a fixed
// cyclesPerChunk.
func TimestampFromChunkCycleAndSequence(chunkCycle, cyclesPerChunk, sequence uint64) uint64 {
	return sequence*cyclesPerChunk + chunkCycle
}

// RamTracingData accumulates RAM-access bookkeeping across a single worker's
// run: per-word last-access timestamps, per-register last-access
// timestamps, and a per-page touched-cell count. The setup/teardown chunker
// does not read the per-page counts; it takes the touched addresses.
type RamTracingData struct {
	RegisterLastLiveTimestamps [32]uint64
	RamWordsLastLiveTimestamps map[uint32]uint64
	NumTouchedRamCellsInPages  map[uint32]uint64

	touchedCells uint64
}

// NewRamTracingData returns an empty RamTracingData ready to accumulate.
func NewRamTracingData() *RamTracingData {
	return &RamTracingData{
		RamWordsLastLiveTimestamps: make(map[uint32]uint64),
		NumTouchedRamCellsInPages:  make(map[uint32]uint64),
	}
}

// RecordRamAccess marks address as touched at timestamp ts, bumping the
// owning page's touched-cell count the first time address is seen.
func (d *RamTracingData) RecordRamAccess(address uint32, ts uint64, pageOf func(uint32) uint32) {
	if _, seen := d.RamWordsLastLiveTimestamps[address]; !seen {
		d.touchedCells++
		d.NumTouchedRamCellsInPages[pageOf(address)]++
	}
	d.RamWordsLastLiveTimestamps[address] = ts
}

// RecordRegisterAccess updates the last-access timestamp for register reg.
func (d *RamTracingData) RecordRegisterAccess(reg int, ts uint64) {
	d.RegisterLastLiveTimestamps[reg] = ts
}

// GetTouchedRamCellsCount returns the number of distinct RAM words touched
// so far, used by Mode A's setup/teardown scheduling decision.
func (d *RamTracingData) GetTouchedRamCellsCount() uint64 { return d.touchedCells }

// CycleTracingData holds one trace row per simulated cycle, used by
// Mode B (TraceCycles). Capacity is pre-sized to avoid reallocation mid
// chunk.
type CycleTracingData struct {
	Rows []CycleRow
}

// CycleRow is one cycle's worth of recorded execution state. Field-level
// detail (register file snapshot, memory op, PC) is circuit-artifact
// dependent and out of this package's scope; Timestamp is the only field
// every consumer needs.
type CycleRow struct {
	Timestamp uint64
}

// WithCyclesCapacity pre-allocates a CycleTracingData with room for n rows.
func WithCyclesCapacity(n uint64) CycleTracingData {
	return CycleTracingData{Rows: make([]CycleRow, 0, n)}
}

// Record appends one cycle row.
func (d *CycleTracingData) Record(row CycleRow) { d.Rows = append(d.Rows, row) }

// DelegationTracingType distinguishes a fully-materialized witness record
// from a counter-only summary.
type DelegationTracingType int

const (
	DelegationWitnessKind DelegationTracingType = iota
	DelegationCounterKind
)

// DelegationTracingData accumulates, per delegation circuit type, either a
// witness record (full trace) or a running counter, plus the count of
// delegation chunks finalized so far per type.
type DelegationTracingData struct {
	ChunksCountByType map[machine.DelegationCircuitType]uint64
	Pending           map[machine.DelegationCircuitType]*PendingDelegation
}

// PendingDelegation is the in-flight tracing state for one delegation
// circuit type, swapped out by the worker's swap function on the next
// request or on halt.
type PendingDelegation struct {
	Kind    DelegationTracingType
	Count   uint64 // number of delegation calls folded into this state
	Witness *DelegationWitness
}

// DelegationWitness is the materialized per-delegation-call trace, emitted
// to downstream consumers when a Witness-kind pending state is finalized.
type DelegationWitness struct {
	CircuitType machine.DelegationCircuitType
	ChunkIndex  uint64
	Calls       uint64
}

// NewDelegationTracingData returns an empty accumulator.
func NewDelegationTracingData() *DelegationTracingData {
	return &DelegationTracingData{
		ChunksCountByType: make(map[machine.DelegationCircuitType]uint64),
		Pending:           make(map[machine.DelegationCircuitType]*PendingDelegation),
	}
}

// SwapFunc finalizes the previous pending state for a delegation circuit
// type (if any) and returns the record to install as the new pending state.
// Reporting the finalized state is up to the implementation: pkg/worker's
// swap emits a Witness as a DelegationWitness result (and hands it to its
// optional onWitness callback) and logs a Counter's summary.
type SwapFunc func(circuitType machine.DelegationCircuitType, previous *PendingDelegation) *PendingDelegation

// ExecutionTracer composes the three tracing-data accumulators plus the
// running timestamp the simulator consults via CurrentTimestamp. It is the
// single callback target the RISC-V state machine's run_cycles drives.
type ExecutionTracer struct {
	Ram         *RamTracingData
	Cycles      CycleTracingData
	Delegations *DelegationTracingData

	swap SwapFunc

	// CurrentTimestamp is read by the simulator on every access and
	// advanced by the worker between chunks.
	CurrentTimestamp uint64

	// TraceRam/TraceCycles/TraceDelegations gate which accumulators are
	// actually populated (Mode A sets only TraceRam, for example).
	TraceRam         bool
	TraceCycles      bool
	TraceDelegations bool
}

// New builds an ExecutionTracer over the given accumulators, starting at
// initialTimestamp.
func New(ram *RamTracingData, cycles CycleTracingData, delegations *DelegationTracingData, swap SwapFunc, initialTimestamp uint64) *ExecutionTracer {
	return &ExecutionTracer{
		Ram:              ram,
		Cycles:           cycles,
		Delegations:      delegations,
		swap:             swap,
		CurrentTimestamp: initialTimestamp,
	}
}

// OnRamAccess is called by the simulator for every RAM read/write.
func (t *ExecutionTracer) OnRamAccess(address uint32, pageOf func(uint32) uint32) {
	if t.TraceRam {
		t.Ram.RecordRamAccess(address, t.CurrentTimestamp, pageOf)
	}
}

// OnRegisterAccess is called by the simulator for every register read/write.
func (t *ExecutionTracer) OnRegisterAccess(reg int) {
	if t.TraceRam {
		t.Ram.RecordRegisterAccess(reg, t.CurrentTimestamp)
	}
}

// OnCycle is called once per simulated cycle when cycle tracing is active.
func (t *ExecutionTracer) OnCycle() {
	if t.TraceCycles {
		t.Cycles.Record(CycleRow{Timestamp: t.CurrentTimestamp})
	}
}

// OnDelegationRequest is called by the simulator when the program issues a
// delegation CSR request. It runs the swap function to finalize the
// previous pending state for circuitType (if any) and installs the
// returned state as the new pending one.
func (t *ExecutionTracer) OnDelegationRequest(circuitType machine.DelegationCircuitType) {
	if !t.TraceDelegations {
		return
	}
	prev := t.Delegations.Pending[circuitType]
	next := t.swap(circuitType, prev)
	t.Delegations.Pending[circuitType] = next
	if prev != nil {
		t.Delegations.ChunksCountByType[circuitType]++
	}
}

// Drain finalizes every still-pending delegation state, mirroring the
// "on halt, any pending delegation states are drained the same way"
// invariant.
func (t *ExecutionTracer) Drain() {
	if !t.TraceDelegations {
		return
	}
	for ct, pending := range t.Delegations.Pending {
		if pending == nil {
			continue
		}
		t.swap(ct, pending)
		t.Delegations.ChunksCountByType[ct]++
		t.Delegations.Pending[ct] = nil
	}
}
