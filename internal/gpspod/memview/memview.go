// Package memview exposes the device's PMEM data file as a byte-
// addressable, read-only container fetched lazily over the command
// layer and cached for the session.
package memview

import (
	"sort"

	"github.com/banshee-data/gpspod/internal/gpspod/command"
	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/logging"
)

// RegionSize is the fixed size of the device's data file.
const RegionSize = 0x3C0000

// DefaultChunkSize is the device's preferred read alignment.
const DefaultChunkSize = 512

// DefaultMaxCoalesced is the per-command cap on coalesced chunk reads.
const DefaultMaxCoalesced = 32 * 1024

// Reader is the subset of command.Client the memory view needs,
// allowing tests to substitute a fake.
type Reader interface {
	ReadMemory(offset uint32, length uint32) ([]byte, error)
}

var _ Reader = (*command.Client)(nil)

// Persistent is an optional backing cache (see cache.go) the memory
// view consults before issuing a device read and updates afterwards.
type Persistent interface {
	Get(chunkOffset int64) ([]byte, bool)
	Put(chunkOffset int64, data []byte)
}

// MemoryView is a lazy, session-scoped cache over the device's PMEM
// region. Reads are idempotent and side-effect-free; the cache is never
// invalidated by a read, only by an explicit Invalidate call after a
// write command.
type MemoryView struct {
	client      Reader
	chunkSize   int
	maxCoalesce int
	chunks      map[int64][]byte
	persistent  Persistent
	log         *logging.Logger
}

// Option configures a MemoryView.
type Option func(*MemoryView)

// WithChunkSize overrides the default 512-byte alignment.
func WithChunkSize(n int) Option { return func(m *MemoryView) { m.chunkSize = n } }

// WithMaxCoalesce overrides the default 32 KB per-command cap.
func WithMaxCoalesce(n int) Option { return func(m *MemoryView) { m.maxCoalesce = n } }

// WithPersistent attaches an optional persistent chunk cache.
func WithPersistent(p Persistent) Option { return func(m *MemoryView) { m.persistent = p } }

// New builds a MemoryView over client.
func New(client Reader, log *logging.Logger, opts ...Option) *MemoryView {
	m := &MemoryView{
		client:      client,
		chunkSize:   DefaultChunkSize,
		maxCoalesce: DefaultMaxCoalesced,
		chunks:      make(map[int64][]byte),
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the exact byte slice memory[a:b]. It is an error to read
// past the end of the region.
func (m *MemoryView) Read(a, b int64) ([]byte, error) {
	if a < 0 || b < a {
		return nil, gpserr.New(gpserr.KindUsage, nil, "invalid range [%d, %d)", a, b)
	}
	if b > RegionSize {
		return nil, gpserr.New(gpserr.KindUsage, nil, "range [%d, %d) crosses region end %#x", a, b, RegionSize)
	}
	if a == b {
		return nil, nil
	}

	if err := m.fill(a, b); err != nil {
		return nil, err
	}

	out := make([]byte, 0, b-a)
	chunkSize := int64(m.chunkSize)
	for pos := a; pos < b; {
		base := (pos / chunkSize) * chunkSize
		chunk := m.chunks[base]
		offsetInChunk := pos - base
		end := offsetInChunk + (b - pos)
		if end > int64(len(chunk)) {
			end = int64(len(chunk))
		}
		out = append(out, chunk[offsetInChunk:end]...)
		pos = base + end
	}
	return out, nil
}

// Invalidate drops any cached chunks overlapping [a, b), so a subsequent
// Read re-fetches them. Called after WriteSetting touches a range that
// may overlap a previously-cached read.
func (m *MemoryView) Invalidate(a, b int64) {
	chunkSize := int64(m.chunkSize)
	first := (a / chunkSize) * chunkSize
	for base := first; base < b; base += chunkSize {
		delete(m.chunks, base)
	}
}

// fill ensures every chunk covering [a, b) is present in the cache,
// coalescing contiguous missing chunks into as few ReadMemory commands
// as the per-command cap allows.
func (m *MemoryView) fill(a, b int64) error {
	chunkSize := int64(m.chunkSize)
	firstChunk := (a / chunkSize) * chunkSize
	lastChunk := ((b - 1) / chunkSize) * chunkSize

	var missing []int64
	for base := firstChunk; base <= lastChunk; base += chunkSize {
		if _, ok := m.chunks[base]; ok {
			continue
		}
		if m.persistent != nil {
			if data, ok := m.persistent.Get(base); ok {
				m.chunks[base] = data
				continue
			}
		}
		missing = append(missing, base)
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	maxCoalescedChunks := int64(m.maxCoalesce) / chunkSize
	if maxCoalescedChunks < 1 {
		maxCoalescedChunks = 1
	}

	i := 0
	for i < len(missing) {
		runStart := missing[i]
		runEnd := runStart + chunkSize
		j := i + 1
		for j < len(missing) && missing[j] == runEnd && (runEnd-runStart) < int64(m.maxCoalesce) {
			runEnd += chunkSize
			j++
		}

		length := runEnd - runStart
		m.log.Diagf("fetching %d bytes at offset %#x (%d chunks)", length, runStart, j-i)
		data, err := m.client.ReadMemory(uint32(runStart), uint32(length))
		if err != nil {
			return err
		}

		for base := runStart; base < runEnd; base += chunkSize {
			start := base - runStart
			end := start + chunkSize
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			chunk := data[start:end]
			m.chunks[base] = chunk
			if m.persistent != nil {
				m.persistent.Put(base, chunk)
			}
		}

		i = j
	}

	return nil
}
