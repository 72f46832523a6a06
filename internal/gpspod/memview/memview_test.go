package memview

import (
	"testing"

	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/stretchr/testify/require"
)

// fakeReader serves ReadMemory from a flat in-memory image and counts
// how many commands were issued, so tests can assert coalescing.
type fakeReader struct {
	image   []byte
	reads   int
	lengths []int
}

func (f *fakeReader) ReadMemory(offset uint32, length uint32) ([]byte, error) {
	f.reads++
	f.lengths = append(f.lengths, int(length))
	return f.image[offset : offset+length], nil
}

func newFakeImage(size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i)
	}
	return img
}

func TestMemoryViewReadExactRange(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(4096)}
	mv := New(reader, logging.Default("test"))

	got, err := mv.Read(100, 150)
	require.NoError(t, err)
	require.Len(t, got, 50)
	require.Equal(t, byte(100), got[0])
	require.Equal(t, byte(149), got[49])
}

func TestMemoryViewCachesWithinSession(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(4096)}
	mv := New(reader, logging.Default("test"))

	a, err := mv.Read(0, 512)
	require.NoError(t, err)
	b, err := mv.Read(0, 512)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, 1, reader.reads, "second read should be served from cache")
}

func TestMemoryViewCoalescesContiguousChunks(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(4096)}
	mv := New(reader, logging.Default("test"), WithChunkSize(512))

	_, err := mv.Read(0, 2000) // spans 4 chunks, should be a single read
	require.NoError(t, err)
	require.Equal(t, 1, reader.reads)
}

func TestMemoryViewOutOfBoundsIsUsageError(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(4096)}
	mv := New(reader, logging.Default("test"))

	_, err := mv.Read(RegionSize-10, RegionSize+10)
	require.Error(t, err)
}

func TestMemoryViewInvalidateForcesRefetch(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(4096)}
	mv := New(reader, logging.Default("test"), WithChunkSize(512))

	_, err := mv.Read(0, 512)
	require.NoError(t, err)
	mv.Invalidate(0, 512)
	_, err = mv.Read(0, 512)
	require.NoError(t, err)
	require.Equal(t, 2, reader.reads)
}

func TestMemoryViewIdempotentOverlappingReads(t *testing.T) {
	reader := &fakeReader{image: newFakeImage(8192)}
	mv := New(reader, logging.Default("test"), WithChunkSize(512))

	first, err := mv.Read(200, 1000)
	require.NoError(t, err)
	second, err := mv.Read(600, 1400)
	require.NoError(t, err)

	// Overlapping region [600, 1000) must agree between both reads.
	require.Equal(t, first[400:800], second[:400])
}
