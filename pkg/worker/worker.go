// Package worker implements the CPU tracing worker: it drives a RISC-V
// state machine chunk-by-chunk in one of three modes and emits typed
// results onto a bounded channel, gated by a free-allocator pool for
// backpressure. One worker owns one OS thread's worth of goroutine and runs
// to completion; a sync.WaitGroup releases when it exits.
package worker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zkriscv/prover/pkg/chunker"
	"github.com/zkriscv/prover/pkg/log"
	"github.com/zkriscv/prover/pkg/machine"
	"github.com/zkriscv/prover/pkg/metrics"
	"github.com/zkriscv/prover/pkg/tracer"
	"golang.org/x/sync/errgroup"
)

// ErrNonTermination is returned when the simulator does not halt within the
// worker's upper-bound chunk count.
var ErrNonTermination = errors.New("worker: simulator did not halt within the chunk bound")

// Simulator is the RISC-V state machine's exposed interface: RunCycles steps
// n cycles and reports whether the machine halted; PC and FinalRegisters
// expose the halt PC (for logging) and the final register file. Instruction
// decoding itself is entirely out of scope.
type Simulator interface {
	RunCycles(t *tracer.ExecutionTracer, n uint64) (halted bool)
	PC() uint32
	FinalRegisters() [32]uint32
}

// SkipKey identifies a (circuit type, chunk/delegation-count index) pair to
// omit emission for.
type SkipKey struct {
	CircuitType machine.CircuitType
	Index       uint64
}

// SkipSet is the set of SkipKeys a mode must not emit results for.
type SkipSet map[SkipKey]struct{}

// Contains reports whether the set names (ct, index).
func (s SkipSet) Contains(ct machine.CircuitType, index uint64) bool {
	_, ok := s[SkipKey{CircuitType: ct, Index: index}]
	return ok
}

// Identity is the batch/worker/logging identity threaded through a run.
type Identity struct {
	BatchID  uint64
	WorkerID int
}

// Params bundles the parameters common to every mode.
type Params struct {
	Identity
	CyclesPerChunk          uint64
	NumMainChunksUpperBound uint64
	CircuitType             machine.MainCircuitType
	SkipSet                 SkipSet
}

// FreeAllocator is the bounded pool a worker draws a chunk buffer token from
// before materializing a chunk, providing backpressure. Each token is an
// empty struct value; the worker only waits on and discards it.
type FreeAllocator <-chan struct{}

// Result is the sum of every message type a worker emits.
// Exactly one of the named fields is meaningful per message, selected by
// Kind.
type Result struct {
	Kind ResultKind

	SetupAndTeardownChunk *SetupAndTeardownChunk
	RAMTracing            *RAMTracingResult
	CyclesChunk           *CyclesChunk
	CyclesTracing         *CyclesTracingResult
	DelegationWitness     *tracer.DelegationWitness
	DelegationTracing     *DelegationTracingResult
}

// ResultKind discriminates the Result union.
type ResultKind int

const (
	KindSetupAndTeardownChunk ResultKind = iota
	KindRAMTracingResult
	KindCyclesChunk
	KindCyclesTracingResult
	KindDelegationWitness
	KindDelegationTracingResult
)

// SetupAndTeardownChunk carries a populated chunk (or nil, for a chunk the
// worker determined needs none).
type SetupAndTeardownChunk struct {
	Index uint64
	Chunk []chunker.LazyInitRecord
}

// FinalRegisterValue is the last observed value and access timestamp for
// one of the 32 registers.
type FinalRegisterValue struct {
	Value               uint32
	LastAccessTimestamp uint64
}

// RAMTracingResult is Mode A's terminal message.
type RAMTracingResult struct {
	ChunksTracedCount   uint64
	FinalRegisterValues [32]FinalRegisterValue
}

// CyclesChunk carries one traced chunk's cycle rows in Mode B.
type CyclesChunk struct {
	Index uint64
	Data  tracer.CycleTracingData
}

// CyclesTracingResult is Mode B's terminal message.
type CyclesTracingResult struct {
	ChunksTracedCount uint64
}

// DelegationTracingResult is Mode C's terminal message: the per-type count
// of delegation chunks produced.
type DelegationTracingResult struct {
	DelegationChunksCounts map[machine.DelegationCircuitType]uint64
}

// RunTraceTouchedRam implements Mode A. sim is driven
// chunk-by-chunk; after each chunk the touched-RAM counter decides whether
// the just-completed chunk needs a setup/teardown record now or later.
// finalState and touchedAddresses let the trailing chunker distribute the
// remaining touched cells once the simulator halts.
func RunTraceTouchedRam(
	wg *sync.WaitGroup,
	p Params,
	sim Simulator,
	freeAllocator FreeAllocator,
	finalState chunker.FinalRamState,
	touchedAddresses func() []uint32,
	results chan<- Result,
) error {
	defer wg.Done()
	logger := log.Default().Module("worker").With("batch", p.BatchID, "worker", p.WorkerID)
	cyclesMeter := metrics.DefaultRegistry.Meter("worker_cycles_throughput")

	ram := tracer.NewRamTracingData()
	delegations := tracer.NewDelegationTracingData()
	noSwap := func(machine.DelegationCircuitType, *tracer.PendingDelegation) *tracer.PendingDelegation {
		panic("worker: delegation swap invoked while tracing touched RAM")
	}
	t := tracer.New(ram, tracer.WithCyclesCapacity(0), delegations, noSwap, 0)
	t.TraceRam = true

	chunksTraced := uint64(0)
	nextChunkWithNoSetupTeardown := uint64(0)
	halted := false

	for chunkIndex := uint64(0); chunkIndex < p.NumMainChunksUpperBound; chunkIndex++ {
		halted = sim.RunCycles(t, p.CyclesPerChunk)
		chunksTraced++
		cyclesMeter.Mark(int64(p.CyclesPerChunk))

		touchedCount := ram.GetTouchedRamCellsCount()
		chunksNeededForSetupTeardowns := (touchedCount + p.CyclesPerChunk - 1) / p.CyclesPerChunk
		chunksDiff := chunksTraced - nextChunkWithNoSetupTeardown
		if chunksNeededForSetupTeardowns < chunksDiff {
			ct := machine.Main(p.CircuitType)
			if !p.SkipSet.Contains(ct, nextChunkWithNoSetupTeardown) {
				results <- Result{
					Kind: KindSetupAndTeardownChunk,
					SetupAndTeardownChunk: &SetupAndTeardownChunk{
						Index: nextChunkWithNoSetupTeardown,
						Chunk: nil,
					},
				}
			}
			nextChunkWithNoSetupTeardown++
		}

		if halted {
			logger.Debug("simulation halted", "pc", sim.PC(), "chunks_traced", chunksTraced)
			break
		}
		t.CurrentTimestamp = tracer.TimestampFromChunkCycleAndSequence(0, p.CyclesPerChunk, chunksTraced)
	}
	if !halted {
		return fmt.Errorf("%w: batch %d worker %d did not halt after %d chunks",
			ErrNonTermination, p.BatchID, p.WorkerID, p.NumMainChunksUpperBound)
	}

	c := chunker.New(touchedAddresses(), finalState, ram.RamWordsLastLiveTimestamps, p.CyclesPerChunk)
	setupTeardownChunksCount := c.GetChunksCount()
	if chunksTraced != setupTeardownChunksCount+nextChunkWithNoSetupTeardown {
		panic(fmt.Sprintf("worker: chunk accounting mismatch: traced=%d setup_teardown=%d no_setup=%d",
			chunksTraced, setupTeardownChunksCount, nextChunkWithNoSetupTeardown))
	}

	for index := nextChunkWithNoSetupTeardown; index < chunksTraced; index++ {
		ct := machine.Main(p.CircuitType)
		if p.SkipSet.Contains(ct, index) {
			c.SkipNextChunk()
			continue
		}
		<-freeAllocator
		buf := make([]chunker.LazyInitRecord, p.CyclesPerChunk)
		c.PopulateNextChunk(buf)
		results <- Result{
			Kind: KindSetupAndTeardownChunk,
			SetupAndTeardownChunk: &SetupAndTeardownChunk{
				Index: index,
				Chunk: buf,
			},
		}
	}

	regValues := sim.FinalRegisters()
	var finalRegisters [32]FinalRegisterValue
	for i := range finalRegisters {
		finalRegisters[i] = FinalRegisterValue{
			Value:               regValues[i],
			LastAccessTimestamp: ram.RegisterLastLiveTimestamps[i],
		}
	}
	results <- Result{
		Kind: KindRAMTracingResult,
		RAMTracing: &RAMTracingResult{
			ChunksTracedCount:   chunksTraced,
			FinalRegisterValues: finalRegisters,
		},
	}
	return nil
}

// RunTraceCycles implements Mode B: full per-cycle data is
// recorded only for chunks with index % splitCount == splitIndex and not in
// skipSet; other chunks are fast-forwarded with tracing disabled.
func RunTraceCycles(
	wg *sync.WaitGroup,
	p Params,
	sim Simulator,
	splitCount, splitIndex uint64,
	freeAllocator FreeAllocator,
	results chan<- Result,
) error {
	defer wg.Done()
	chunksTracedMetric := metrics.DefaultRegistry.Counter("worker_cycles_chunks_traced")
	cyclesMeter := metrics.DefaultRegistry.Meter("worker_cycles_throughput")

	ram := tracer.NewRamTracingData()
	delegations := tracer.NewDelegationTracingData()
	noSwap := func(machine.DelegationCircuitType, *tracer.PendingDelegation) *tracer.PendingDelegation {
		panic("worker: delegation swap invoked while tracing cycles")
	}
	t := tracer.New(ram, tracer.WithCyclesCapacity(0), delegations, noSwap, 0)

	chunksTraced := uint64(0)
	halted := false
	for chunkIndex := uint64(0); chunkIndex < p.NumMainChunksUpperBound; chunkIndex++ {
		ct := machine.Main(p.CircuitType)
		recordFull := chunkIndex%splitCount == splitIndex && !p.SkipSet.Contains(ct, chunkIndex)
		t.TraceCycles = recordFull
		if recordFull {
			t.Cycles = tracer.WithCyclesCapacity(p.CyclesPerChunk)
			<-freeAllocator
		}

		halted = sim.RunCycles(t, p.CyclesPerChunk)
		chunksTraced++
		cyclesMeter.Mark(int64(p.CyclesPerChunk))

		if recordFull {
			results <- Result{
				Kind: KindCyclesChunk,
				CyclesChunk: &CyclesChunk{
					Index: chunkIndex,
					Data:  t.Cycles,
				},
			}
			chunksTracedMetric.Inc()
		}
		if halted {
			break
		}
		t.CurrentTimestamp = tracer.TimestampFromChunkCycleAndSequence(0, p.CyclesPerChunk, chunksTraced)
	}
	if !halted {
		return fmt.Errorf("%w: batch %d worker %d did not halt after %d chunks",
			ErrNonTermination, p.BatchID, p.WorkerID, p.NumMainChunksUpperBound)
	}

	results <- Result{
		Kind:          KindCyclesTracingResult,
		CyclesTracing: &CyclesTracingResult{ChunksTracedCount: chunksTraced},
	}
	return nil
}

// RunTraceDelegations implements Mode C: delegation tracing
// is enabled; a swap function finalizes each delegation type's previous
// tracing state on every new request, acquiring a fresh allocator unless
// the pending chunk is in skipSet (in which case a counter-only record is
// installed instead).
func RunTraceDelegations(
	wg *sync.WaitGroup,
	p Params,
	sim Simulator,
	freeAllocator FreeAllocator,
	onWitness func(tracer.DelegationWitness),
	results chan<- Result,
) error {
	defer wg.Done()
	logger := log.Default().Module("worker").With("batch", p.BatchID, "worker", p.WorkerID)
	delegationsMeter := metrics.DefaultRegistry.Meter("worker_delegations_drained")

	ram := tracer.NewRamTracingData()
	delegations := tracer.NewDelegationTracingData()
	chunkCounters := map[machine.DelegationCircuitType]uint64{}

	swap := func(ct machine.DelegationCircuitType, prev *tracer.PendingDelegation) *tracer.PendingDelegation {
		if prev != nil {
			switch prev.Kind {
			case tracer.DelegationWitnessKind:
				if onWitness != nil && prev.Witness != nil {
					onWitness(*prev.Witness)
				}
				results <- Result{Kind: KindDelegationWitness, DelegationWitness: prev.Witness}
				delegationsMeter.Mark(1)
			case tracer.DelegationCounterKind:
				logger.Debug("delegation counter summary", "circuit_type", ct, "calls", prev.Count)
			}
		}
		index := chunkCounters[ct]
		chunkCounters[ct] = index + 1
		dct := machine.Delegation(ct)
		if p.SkipSet.Contains(dct, index) {
			return &tracer.PendingDelegation{Kind: tracer.DelegationCounterKind}
		}
		<-freeAllocator
		return &tracer.PendingDelegation{
			Kind:    tracer.DelegationWitnessKind,
			Witness: &tracer.DelegationWitness{CircuitType: ct, ChunkIndex: index},
		}
	}

	t := tracer.New(ram, tracer.WithCyclesCapacity(0), delegations, swap, 0)
	t.TraceDelegations = true

	chunksTraced := uint64(0)
	halted := false
	for chunkIndex := uint64(0); chunkIndex < p.NumMainChunksUpperBound; chunkIndex++ {
		halted = sim.RunCycles(t, p.CyclesPerChunk)
		chunksTraced++
		if halted {
			break
		}
		t.CurrentTimestamp = tracer.TimestampFromChunkCycleAndSequence(0, p.CyclesPerChunk, chunksTraced)
	}
	if !halted {
		return fmt.Errorf("%w: batch %d worker %d did not halt after %d chunks",
			ErrNonTermination, p.BatchID, p.WorkerID, p.NumMainChunksUpperBound)
	}
	t.Drain()

	results <- Result{
		Kind: KindDelegationTracingResult,
		DelegationTracing: &DelegationTracingResult{
			DelegationChunksCounts: delegations.ChunksCountByType,
		},
	}
	return nil
}

// BatchJob is one worker's run-to-completion closure within a batch; it
// receives the batch's shared WaitGroup and is responsible for its own
// wg.Done() (matching a RunTrace* function's signature directly).
type BatchJob func(wg *sync.WaitGroup) error

// RunBatch runs a batch of workers in parallel: each job owns one OS
// thread's worth of goroutine and releases the shared WaitGroup on exit, so
// the coordinator knows when every worker in the batch is done. RunBatch
// starts them all, waits for every job to finish, and returns the first
// error encountered; a failing job does not stop or cancel the others.
func RunBatch(jobs []BatchJob) error {
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	var g errgroup.Group
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return job(&wg)
		})
	}

	err := g.Wait()
	wg.Wait()
	return err
}
