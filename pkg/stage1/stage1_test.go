package stage1

import (
	"testing"

	"github.com/zkriscv/prover/pkg/device"
	"github.com/zkriscv/prover/pkg/field"
)

type fakeCommitter struct{ calls int }

func (c *fakeCommitter) ExtendAndCommit(evals []field.Element, logLDE, logCap uint32) (TreeCap, error) {
	c.calls++
	return TreeCap{Digests: [][]byte{{byte(len(evals))}}}, nil
}

func evalsOf(n int, fill func(i int) uint64) []field.Element {
	out := make([]field.Element, n)
	for i := range out {
		out[i] = field.FromUint64(fill(i))
	}
	return out
}

func TestCommitFailsWhenTransferNotReady(t *testing.T) {
	transfer := NewTracingDataTransfer()
	ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})
	defer ctx.Close()

	_, err := Commit(transfer, CircuitArtifact{TraceLen: 8}, 1, 1, ctx, &fakeCommitter{},
		func() []field.Element { return nil }, func() []field.Element { return nil }, func() []byte { return nil })
	if err != ErrTransferNotReady {
		t.Fatalf("expected ErrTransferNotReady, got %v", err)
	}
}

func TestCommitFailsOnNonPowerOfTwoTraceLen(t *testing.T) {
	transfer := NewTracingDataTransfer()
	transfer.MarkTransferred()
	ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})
	defer ctx.Close()

	_, err := Commit(transfer, CircuitArtifact{TraceLen: 9}, 1, 1, ctx, &fakeCommitter{},
		func() []field.Element { return nil }, func() []field.Element { return nil }, func() []byte { return nil })
	if err != ErrTraceLenNotPowerOfTwo {
		t.Fatalf("expected ErrTraceLenNotPowerOfTwo, got %v", err)
	}
}

func TestCommitFailsOnLastRowPublicInput(t *testing.T) {
	transfer := NewTracingDataTransfer()
	transfer.MarkTransferred()
	ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})
	defer ctx.Close()

	circuit := CircuitArtifact{
		TraceLen:     8,
		PublicInputs: []PublicInputSpec{{Column: 0, Location: LastRow}},
	}
	_, err := Commit(transfer, circuit, 1, 1, ctx, &fakeCommitter{},
		func() []field.Element { return nil }, func() []field.Element { return nil }, func() []byte { return nil })
	if err != ErrUnsupportedLocation {
		t.Fatalf("expected ErrUnsupportedLocation, got %v", err)
	}
}

// TestCommitGroupsPublicInputsByLocation proves that public inputs are
// grouped by location (every FirstRow value, in declared relative order,
// followed by every OneBeforeLastRow value) rather than emitted in the
// circuit's raw declaration order. The declaration order here
// deliberately interleaves the two locations.
func TestCommitGroupsPublicInputsByLocation(t *testing.T) {
	transfer := NewTracingDataTransfer()
	transfer.MarkTransferred()
	ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})
	defer ctx.Close()

	const traceLen = 8
	circuit := CircuitArtifact{
		TraceLen: traceLen,
		PublicInputs: []PublicInputSpec{
			{Column: 1, Location: OneBeforeLastRow},
			{Column: 0, Location: FirstRow},
			{Column: 2, Location: OneBeforeLastRow},
			{Column: 3, Location: FirstRow},
		},
	}
	committer := &fakeCommitter{}
	result, err := Commit(transfer, circuit, 2, 4, ctx, committer,
		func() []field.Element { return evalsOf(4*traceLen, func(i int) uint64 { return 100 + uint64(i) }) },
		func() []field.Element { return evalsOf(4*traceLen, func(i int) uint64 { return uint64(i) }) },
		func() []byte { return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if committer.calls != 2 {
		t.Fatalf("expected 2 commit calls (memory + witness), got %d", committer.calls)
	}
	if len(result.PublicInputs) != 4 {
		t.Fatalf("expected 4 public inputs, got %d", len(result.PublicInputs))
	}
	// FirstRow group first, in declared relative order: column 0, then column 3.
	if !result.PublicInputs[0].Equal(field.FromUint64(0 * traceLen)) {
		t.Fatalf("expected column 0 first-row value, got %v", result.PublicInputs[0])
	}
	if !result.PublicInputs[1].Equal(field.FromUint64(3 * traceLen)) {
		t.Fatalf("expected column 3 first-row value, got %v", result.PublicInputs[1])
	}
	// OneBeforeLastRow group second, in declared relative order: column 1, then column 2.
	if !result.PublicInputs[2].Equal(field.FromUint64(1*traceLen + traceLen - 2)) {
		t.Fatalf("expected column 1 one-before-last value, got %v", result.PublicInputs[2])
	}
	if !result.PublicInputs[3].Equal(field.FromUint64(2*traceLen + traceLen - 2)) {
		t.Fatalf("expected column 2 one-before-last value, got %v", result.PublicInputs[3])
	}
}

// TestCommitGeneratesLookupAuxRegardlessOfMainOrDelegation proves that the
// generic-lookup-mapping buffer is produced whenever the circuit declares
// lookup columns, independent of IsMainCircuit — both main and delegation
// circuits can carry generic lookups.
func TestCommitGeneratesLookupAuxRegardlessOfMainOrDelegation(t *testing.T) {
	for _, isMain := range []bool{true, false} {
		transfer := NewTracingDataTransfer()
		transfer.MarkTransferred()
		ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})

		const traceLen = 8
		circuit := CircuitArtifact{
			TraceLen:                  traceLen,
			IsMainCircuit:             isMain,
			GenericLookupColumnsCount: 1,
		}
		lookupCalls := 0
		result, err := Commit(transfer, circuit, 2, 4, ctx, &fakeCommitter{},
			func() []field.Element { return evalsOf(traceLen, func(i int) uint64 { return uint64(i) }) },
			func() []field.Element { return evalsOf(traceLen, func(i int) uint64 { return uint64(i) }) },
			func() []byte { lookupCalls++; return []byte{1, 2, 3} },
		)
		ctx.Close()
		if err != nil {
			t.Fatalf("unexpected error (isMain=%v): %v", isMain, err)
		}
		if lookupCalls != 1 {
			t.Fatalf("expected lookup aux to be generated once (isMain=%v), got %d calls", isMain, lookupCalls)
		}
		if result.LookupAux == nil {
			t.Fatalf("expected lookup aux buffer (isMain=%v)", isMain)
		}
	}
}

// TestCommitSkipsLookupAuxWhenNoLookupColumns proves the lookup-aux
// generator is not invoked when the circuit declares no generic-lookup
// columns.
func TestCommitSkipsLookupAuxWhenNoLookupColumns(t *testing.T) {
	transfer := NewTracingDataTransfer()
	transfer.MarkTransferred()
	ctx := device.New(device.DefaultConfig(), 0, 4, device.Properties{})
	defer ctx.Close()

	const traceLen = 8
	circuit := CircuitArtifact{TraceLen: traceLen}
	lookupCalls := 0
	result, err := Commit(transfer, circuit, 2, 4, ctx, &fakeCommitter{},
		func() []field.Element { return evalsOf(traceLen, func(i int) uint64 { return uint64(i) }) },
		func() []field.Element { return evalsOf(traceLen, func(i int) uint64 { return uint64(i) }) },
		func() []byte { lookupCalls++; return []byte{1} },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookupCalls != 0 {
		t.Fatalf("expected lookup aux generator not to be called, got %d calls", lookupCalls)
	}
	if result.LookupAux != nil {
		t.Fatalf("expected nil lookup aux buffer")
	}
}
