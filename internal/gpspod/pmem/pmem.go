// Package pmem walks the device's on-disk doubly-linked entry-block
// chains and yields the logical byte stream for each of the two
// top-level blocks (log, track).
package pmem

import (
	"encoding/binary"

	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/memview"
)

// Layout constants for the on-device data format. They are fixed by this
// package and are not taken from recorded device traffic.
const (
	// LogBlockHeaderOffset is the fixed offset of the log top-level block header.
	LogBlockHeaderOffset = 0x00000010
	// TrackBlockHeaderOffset is the fixed offset of the track top-level block header.
	TrackBlockHeaderOffset = 0x00000040

	topHeaderSize   = 0x20
	entryBlockSize  = 0x1000
	entryHeaderSize = 0x10

	// maxEntryBlocks bounds the chain walk; the region can hold no more
	// entry blocks than this.
	maxEntryBlocks = memview.RegionSize / entryBlockSize
)

// TopHeader is a top-level PMEM block header.
type TopHeader struct {
	FirstEntryOffset   uint32
	LastEntryOffset    uint32
	CurrentWriteOffset uint32
	EntryCount         uint32
}

func parseTopHeader(buf []byte) (TopHeader, error) {
	if len(buf) < topHeaderSize {
		return TopHeader{}, gpserr.New(gpserr.KindDecode, nil, "top-level block header truncated")
	}
	return TopHeader{
		FirstEntryOffset:   binary.LittleEndian.Uint32(buf[0:4]),
		LastEntryOffset:    binary.LittleEndian.Uint32(buf[4:8]),
		CurrentWriteOffset: binary.LittleEndian.Uint32(buf[8:12]),
		EntryCount:         binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// EntryBlockHeader is the per-block header within the chain.
type EntryBlockHeader struct {
	PrevOffset        uint32
	NextOffset        uint32
	FirstEntryOffset  uint16
	LastWrittenOffset uint16
}

func parseEntryBlockHeader(buf []byte) (EntryBlockHeader, error) {
	if len(buf) < entryHeaderSize {
		return EntryBlockHeader{}, gpserr.New(gpserr.KindDecode, nil, "entry block header truncated")
	}
	return EntryBlockHeader{
		PrevOffset:        binary.LittleEndian.Uint32(buf[0:4]),
		NextOffset:        binary.LittleEndian.Uint32(buf[4:8]),
		FirstEntryOffset:  binary.LittleEndian.Uint16(buf[8:10]),
		LastWrittenOffset: binary.LittleEndian.Uint16(buf[10:12]),
	}, nil
}

// noNext marks the newest block in a chain (no next block).
const noNext = 0xFFFFFFFF

// Warning records a non-fatal chain inconsistency encountered while
// decoding: the stream is truncated at the last good block rather than
// failing outright.
type Warning struct {
	Offset int64
	Reason string
}

// Chain is the decoded logical byte stream of one top-level block's
// entry-block chain, plus any partial-decode warnings encountered.
type Chain struct {
	Data     []byte
	Warnings []Warning
}

// Reader is the subset of *memview.MemoryView the decoder needs.
type Reader interface {
	Read(a, b int64) ([]byte, error)
}

var _ Reader = (*memview.MemoryView)(nil)

// DecodeChain walks the entry-block chain rooted at the top-level
// header at topOffset and concatenates each block's valid body bytes,
// oldest to newest.
func DecodeChain(r Reader, topOffset int64) (*Chain, error) {
	topRaw, err := r.Read(topOffset, topOffset+topHeaderSize)
	if err != nil {
		return nil, gpserr.New(gpserr.KindDecode, err, "reading top-level block header at %#x", topOffset)
	}
	top, err := parseTopHeader(topRaw)
	if err != nil {
		return nil, err
	}

	chain := &Chain{}
	visited := make(map[uint32]bool, top.EntryCount)

	offset := top.FirstEntryOffset
	cameFrom := uint32(noNext)
	for i := 0; i < maxEntryBlocks; i++ {
		if offset == noNext {
			return chain, nil
		}
		if int64(offset)+entryBlockSize > memview.RegionSize {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "entry block offset out of region bounds",
			})
			return chain, nil
		}
		if visited[offset] {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "entry block chain cycle detected",
			})
			return chain, nil
		}
		visited[offset] = true

		blockRaw, err := r.Read(int64(offset), int64(offset)+entryBlockSize)
		if err != nil {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "failed to read entry block: " + err.Error(),
			})
			return chain, nil
		}
		hdr, err := parseEntryBlockHeader(blockRaw)
		if err != nil {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "failed to parse entry block header",
			})
			return chain, nil
		}

		// Adjacent blocks must link back to each other; the head block's
		// prev is exempt since a wrapped ring points it at a newer block.
		if cameFrom != noNext && hdr.PrevOffset != cameFrom {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "entry block prev link does not match walk order",
			})
			return chain, nil
		}

		body := blockRaw[entryHeaderSize:]
		first := int(hdr.FirstEntryOffset)
		last := int(hdr.LastWrittenOffset)
		if first < 0 || last > len(body) || first > last {
			chain.Warnings = append(chain.Warnings, Warning{
				Offset: int64(offset),
				Reason: "entry range out of block bounds",
			})
			return chain, nil
		}
		chain.Data = append(chain.Data, body[first:last]...)

		if offset == top.LastEntryOffset {
			return chain, nil
		}
		cameFrom = offset
		offset = hdr.NextOffset
	}

	chain.Warnings = append(chain.Warnings, Warning{
		Offset: int64(offset),
		Reason: "entry block chain exceeded sanity limit",
	})
	return chain, nil
}

// DecodeLogChain decodes the device internal event log chain.
func DecodeLogChain(r Reader) (*Chain, error) {
	return DecodeChain(r, LogBlockHeaderOffset)
}

// DecodeTrackChain decodes the user-facing recorded-tracks chain.
func DecodeTrackChain(r Reader) (*Chain, error) {
	return DecodeChain(r, TrackBlockHeaderOffset)
}
