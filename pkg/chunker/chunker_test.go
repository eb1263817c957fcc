package chunker

import "testing"

type fakeRam map[uint32]uint32

func (f fakeRam) ValueAt(addr uint32) uint32 { return f[addr] }

func TestChunksCountAndPopulate(t *testing.T) {
	addrs := []uint32{40, 10, 30, 20}
	final := fakeRam{10: 1, 20: 2, 30: 3, 40: 4}
	lastAccess := map[uint32]uint64{10: 100, 20: 200, 30: 300, 40: 400}
	c := New(addrs, final, lastAccess, 2)

	if got := c.GetChunksCount(); got != 2 {
		t.Fatalf("expected 2 chunks, got %d", got)
	}

	first := make([]LazyInitRecord, 2)
	c.PopulateNextChunk(first)
	if first[0].Address != 10 || first[1].Address != 20 {
		t.Fatalf("expected canonical address order, got %+v", first)
	}
	if first[0].Value != 1 || first[0].LastAccessTimestamp != 100 {
		t.Fatalf("unexpected record %+v", first[0])
	}

	second := make([]LazyInitRecord, 2)
	c.PopulateNextChunk(second)
	if second[0].Address != 30 || second[1].Address != 40 {
		t.Fatalf("expected canonical address order, got %+v", second)
	}
}

func TestSkipNextChunkAdvancesWithoutPopulating(t *testing.T) {
	addrs := []uint32{1, 2, 3, 4}
	final := fakeRam{1: 9, 2: 9, 3: 9, 4: 9}
	c := New(addrs, final, map[uint32]uint64{}, 2)

	c.SkipNextChunk()
	out := make([]LazyInitRecord, 2)
	c.PopulateNextChunk(out)
	if out[0].Address != 3 || out[1].Address != 4 {
		t.Fatalf("expected second window after skip, got %+v", out)
	}
}

func TestPopulateZeroFillsPastTouchedSet(t *testing.T) {
	addrs := []uint32{5}
	final := fakeRam{5: 7}
	c := New(addrs, final, map[uint32]uint64{5: 50}, 3)

	out := make([]LazyInitRecord, 3)
	c.PopulateNextChunk(out)
	if out[0].Address != 5 || out[0].Value != 7 {
		t.Fatalf("unexpected first record %+v", out[0])
	}
	if out[1] != (LazyInitRecord{}) || out[2] != (LazyInitRecord{}) {
		t.Fatalf("expected zero-filled padding, got %+v", out[1:])
	}
}
