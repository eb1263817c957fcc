// Package chunker implements the setup/teardown chunker: given the list of
// touched RAM word addresses, the final RAM contents, and per-word
// last-access timestamps, it produces a sequence of cyclesPerChunk-sized
// setup/teardown chunks in canonical address order.
package chunker

import "sort"

// LazyInitRecord is one setup/teardown record: the RAM word at Address had
// final value Value, last touched at LastAccessTimestamp.
type LazyInitRecord struct {
	Address             uint32
	Value               uint32
	LastAccessTimestamp uint64
}

// FinalRamState resolves a touched address to its final value, as produced
// by the memory implementation's get_final_ram_state.
type FinalRamState interface {
	ValueAt(address uint32) uint32
}

// Chunker walks the touched RAM addresses, in ascending address order, in
// fixed-size windows of cyclesPerChunk records.
type Chunker struct {
	addresses      []uint32
	finalState     FinalRamState
	lastAccess     map[uint32]uint64
	cyclesPerChunk uint64
	cursor         uint64
}

// New builds a Chunker over the explicit touched-word addresses (copied
// and sorted ascending here), finalState, and lastAccess. Per-page
// touched-cell counts are not an input; the chunk count follows from the
// number of addresses.
func New(addresses []uint32, finalState FinalRamState, lastAccess map[uint32]uint64, cyclesPerChunk uint64) *Chunker {
	sorted := append([]uint32(nil), addresses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Chunker{
		addresses:      sorted,
		finalState:     finalState,
		lastAccess:     lastAccess,
		cyclesPerChunk: cyclesPerChunk,
	}
}

// GetChunksCount returns the total number of chunks (populated or skipped)
// needed to cover every touched address.
func (c *Chunker) GetChunksCount() uint64 {
	n := uint64(len(c.addresses))
	if n == 0 {
		return 0
	}
	return (n + c.cyclesPerChunk - 1) / c.cyclesPerChunk
}

// SkipNextChunk advances the cursor by one chunk's worth of addresses
// without materializing any records.
func (c *Chunker) SkipNextChunk() {
	c.cursor += c.cyclesPerChunk
	if c.cursor > uint64(len(c.addresses)) {
		c.cursor = uint64(len(c.addresses))
	}
}

// PopulateNextChunk writes the next cyclesPerChunk lazy-init records (in
// canonical address order) into out, which must have length cyclesPerChunk.
// Addresses beyond the touched set are zero-filled (address 0, value 0,
// timestamp 0), matching a chunk that only partially fills its capacity.
func (c *Chunker) PopulateNextChunk(out []LazyInitRecord) {
	for i := range out {
		idx := c.cursor + uint64(i)
		if idx >= uint64(len(c.addresses)) {
			out[i] = LazyInitRecord{}
			continue
		}
		addr := c.addresses[idx]
		out[i] = LazyInitRecord{
			Address:             addr,
			Value:               c.finalState.ValueAt(addr),
			LastAccessTimestamp: c.lastAccess[addr],
		}
	}
	c.cursor += uint64(len(out))
}
