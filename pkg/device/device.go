// Package device simulates the GPU-style device memory / prover context.
// The actual kernels (polynomial-commitment and FRI-style proof math) are
// an opaque device interface; this package only models the allocator
// arena, the three-stream scheduling discipline, and host-side callback
// delivery, standing goroutines and channels in for CUDA streams and
// events.
package device

import (
	"errors"
	"sync"

	"github.com/zkriscv/prover/pkg/log"
	"github.com/zkriscv/prover/pkg/metrics"
)

// Config controls block granularity and pool sizing for the device and
// host allocators.
type Config struct {
	PowersOfWCoarseLogCount  uint32
	AllocationBlockLogSize   uint32
	DeviceSlackBlocksCount   int
	HostAllocatorBlocksCount int
}

// DefaultConfig returns a conservative default: 4 MB blocks, 256 MB slack,
// 512 MB host pool.
func DefaultConfig() Config {
	return Config{
		PowersOfWCoarseLogCount:  12,
		AllocationBlockLogSize:   22,
		DeviceSlackBlocksCount:   64,
		HostAllocatorBlocksCount: 128,
	}
}

// Properties stands in for CUDA device attributes; this package has no
// real device to query, so the fields are populated by the caller from
// whatever host describes the simulated accelerator.
type Properties struct {
	L2CacheSizeBytes int
	SMCount          int
}

// Placement selects where in the arena an allocation is carved from.
type Placement int

const (
	BestFit Placement = iota
	Bottom
	Top
)

// ErrOutOfMemory is returned when the arena cannot satisfy a request even
// after shrinking to the largest block count it could actually allocate.
var ErrOutOfMemory = errors.New("device: allocator arena exhausted")

// Arena is a bump-style allocation tracker over a fixed-size byte region,
// reporting current and peak usage.
type Arena struct {
	mu          sync.Mutex
	size        uint64
	used        uint64
	peak        uint64
	bottomCursor uint64
	topCursor    uint64

	usedGauge *metrics.Gauge
	peakGauge *metrics.Gauge
}

func newArena(size uint64, registry *metrics.Registry, namePrefix string) *Arena {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &Arena{
		size:      size,
		topCursor: size,
		usedGauge: registry.Gauge(namePrefix + "_used_bytes"),
		peakGauge: registry.Gauge(namePrefix + "_peak_bytes"),
	}
}

// Alloc carves size bytes from the arena per placement. BestFit and
// Bottom both grow from the low end; Top grows from the high end (the
// precise best-fit search strategy is the opaque allocator backend's
// concern and not reproduced here).
func (a *Arena) Alloc(size uint64, placement Placement) (offset uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size == 0 {
		panic("device: zero-size allocation")
	}
	if a.bottomCursor+size > a.topCursor {
		return 0, ErrOutOfMemory
	}
	switch placement {
	case Top:
		a.topCursor -= size
		offset = a.topCursor
	default: // BestFit, Bottom
		offset = a.bottomCursor
		a.bottomCursor += size
	}
	a.used += size
	if a.used > a.peak {
		a.peak = a.used
	}
	a.usedGauge.Set(int64(a.used))
	a.peakGauge.Set(int64(a.peak))
	return offset, nil
}

// UsedCurrent returns the current allocated byte count.
func (a *Arena) UsedCurrent() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// UsedPeak returns the high-water-mark allocated byte count.
func (a *Arena) UsedPeak() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

// ResetUsedPeak clears the high-water mark back to the current usage.
func (a *Arena) ResetUsedPeak() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peak = a.used
}

// Size returns the arena's total capacity in bytes.
func (a *Arena) Size() uint64 {
	return a.size
}

// allocateArenaWithShrink tries to allocate the full available block
// count, and on an allocation failure shrinks by one block and retries,
// until a size that actually fits is found.
func allocateArenaWithShrink(availableBlocks int, blockSize uint64, tryAlloc func(size uint64) bool, registry *metrics.Registry, namePrefix string) *Arena {
	logger := log.Default().Module("device")
	blocks := availableBlocks
	for blocks > 0 {
		size := uint64(blocks) * blockSize
		if tryAlloc(size) {
			return newArena(size, registry, namePrefix)
		}
		logger.Warn("device allocation failed, shrinking", "blocks", blocks)
		blocks--
	}
	return newArena(0, registry, namePrefix)
}

// Event is a one-shot completion signal a stream's work can be waited on
// through, standing in for CudaEvent.
type Event struct {
	done chan struct{}
	once sync.Once
}

// NewEvent returns an unsignaled Event.
func NewEvent() *Event { return &Event{done: make(chan struct{})} }

// Record signals the event; idempotent.
func (e *Event) Record() { e.once.Do(func() { close(e.done) }) }

// Synchronize blocks until the event is recorded.
func (e *Event) Synchronize() { <-e.done }

// Query reports whether the event has been recorded without blocking.
func (e *Event) Query() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Stream serializes a sequence of host-side closures (standing in for
// kernel launches and callbacks) onto one goroutine, preserving program
// order the way CUDA stream semantics require.
type Stream struct {
	name string
	work chan func()
	done chan struct{}
}

// NewStream starts a stream's worker goroutine.
func NewStream(name string) *Stream {
	s := &Stream{name: name, work: make(chan func(), 64), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *Stream) run() {
	for fn := range s.work {
		fn()
	}
	close(s.done)
}

// Launch enqueues fn to run on this stream in order.
func (s *Stream) Launch(fn func()) { s.work <- fn }

// RecordEvent schedules ev.Record() as the next in-order operation on this
// stream, so waiters see every prior Launch complete before the event
// fires.
func (s *Stream) RecordEvent(ev *Event) { s.Launch(ev.Record) }

// Close drains pending work and stops the stream's goroutine. Must only be
// called once all producers are done launching work on it.
func (s *Stream) Close() {
	close(s.work)
	<-s.done
}

// Callbacks owns host-side closures scheduled to run after a stream
// reaches a given point. It must outlive the last stream wait; dropping it
// before that wait completes is undefined.
type Callbacks struct {
	fns []func()
}

// Schedule registers fn to run on stream, in order, after every previously
// launched operation on that stream.
func (c *Callbacks) Schedule(stream *Stream, fn func()) {
	c.fns = append(c.fns, fn)
	stream.Launch(fn)
}

// Context ties together the device/host allocator arenas, the three
// scheduling streams (exec, aux, h2d), and device properties.
type Context struct {
	Config     Config
	Properties Properties

	DeviceArena *Arena
	HostArena   *Arena

	ExecStream *Stream
	AuxStream  *Stream
	H2DStream  *Stream

	deviceID int

	mu                          sync.Mutex
	reversedAllocationPlacement bool
}

// New constructs a Context, running the allocation-shrink retry loop over
// availableDeviceBlocks (e.g. derived from a device memory-info probe the
// caller performs).
func New(config Config, deviceID int, availableDeviceBlocks int, props Properties) *Context {
	blockSize := uint64(1) << config.AllocationBlockLogSize
	deviceArena := allocateArenaWithShrink(availableDeviceBlocks, blockSize, func(uint64) bool { return true }, nil, "device_mem")
	hostArena := newArena(uint64(config.HostAllocatorBlocksCount)*blockSize, nil, "host_mem")

	return &Context{
		Config:      config,
		Properties:  props,
		DeviceArena: deviceArena,
		HostArena:   hostArena,
		ExecStream:  NewStream("exec"),
		AuxStream:   NewStream("aux"),
		H2DStream:   NewStream("h2d"),
		deviceID:    deviceID,
	}
}

// DeviceID returns the simulated device identity.
func (c *Context) DeviceID() int { return c.deviceID }

// SetReversedAllocationPlacement flips Bottom/Top placement.
func (c *Context) SetReversedAllocationPlacement(reversed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reversedAllocationPlacement = reversed
}

// Alloc allocates size bytes from the device arena, honoring the
// reversed-placement flag, and logs on failure.
func (c *Context) Alloc(size uint64, placement Placement) (uint64, error) {
	c.mu.Lock()
	reversed := c.reversedAllocationPlacement
	c.mu.Unlock()
	if reversed {
		switch placement {
		case Bottom:
			placement = Top
		case Top:
			placement = Bottom
		}
	}
	offset, err := c.DeviceArena.Alloc(size, placement)
	if err != nil {
		log.Default().Module("device").Error("device allocation failed",
			"bytes", size, "device_id", c.deviceID, "used_current", c.DeviceArena.UsedCurrent())
	}
	return offset, err
}

// Close tears down the three streams.
func (c *Context) Close() {
	c.ExecStream.Close()
	c.AuxStream.Close()
	c.H2DStream.Close()
}
