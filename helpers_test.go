package apng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

type rawChunk struct {
	Type string
	Data []byte
}

// readChunks splits a PNG stream into chunks, checking the signature, each
// length field and each CRC on the way.
func readChunks(t *testing.T, b []byte) []rawChunk {
	t.Helper()
	require.True(t, bytes.HasPrefix(b, []byte(PngHeader)), "missing PNG signature")
	b = b[len(PngHeader):]
	var chunks []rawChunk
	for len(b) > 0 {
		require.GreaterOrEqual(t, len(b), 12, "truncated chunk")
		n := int(binary.BigEndian.Uint32(b[:4]))
		require.GreaterOrEqual(t, len(b), 12+n, "truncated chunk data")
		typ := b[4:8]
		data := b[8 : 8+n]
		crc := binary.BigEndian.Uint32(b[8+n : 12+n])
		require.Equal(t, crc32.ChecksumIEEE(b[4:8+n]), crc, "bad CRC in %s chunk", typ)
		chunks = append(chunks, rawChunk{Type: string(typ), Data: data})
		b = b[12+n:]
	}
	return chunks
}

func chunkTypes(chunks []rawChunk) []string {
	types := make([]string, len(chunks))
	for i, c := range chunks {
		types[i] = c.Type
	}
	return types
}

// sequenceNumbers returns the sequence numbers of the fcTL and fdAT chunks,
// in stream order.
func sequenceNumbers(chunks []rawChunk) []uint32 {
	var seq []uint32
	for _, c := range chunks {
		if c.Type == "fcTL" || c.Type == "fdAT" {
			seq = append(seq, binary.BigEndian.Uint32(c.Data[:4]))
		}
	}
	return seq
}

type decodedFctl struct {
	Width, Height, XOffset, YOffset uint32
	DelayNum, DelayDen              uint16
	DisposeOp                       DisposeOp
	BlendOp                         BlendOp
}

func parseFctl(t *testing.T, data []byte) decodedFctl {
	t.Helper()
	require.Len(t, data, 26)
	return decodedFctl{
		Width:     binary.BigEndian.Uint32(data[4:8]),
		Height:    binary.BigEndian.Uint32(data[8:12]),
		XOffset:   binary.BigEndian.Uint32(data[12:16]),
		YOffset:   binary.BigEndian.Uint32(data[16:20]),
		DelayNum:  binary.BigEndian.Uint16(data[20:22]),
		DelayDen:  binary.BigEndian.Uint16(data[22:24]),
		DisposeOp: DisposeOp(data[24]),
		BlendOp:   BlendOp(data[25]),
	}
}

// frameData is the compressed stream of one frame and the fcTL before it,
// if any.
type frameData struct {
	fctl *decodedFctl
	z    []byte
}

func splitFrames(t *testing.T, chunks []rawChunk) []frameData {
	t.Helper()
	var frames []frameData
	open := false
	for _, c := range chunks {
		switch c.Type {
		case "fcTL":
			f := parseFctl(t, c.Data)
			frames = append(frames, frameData{fctl: &f})
			open = true
		case "IDAT", "fdAT":
			if !open {
				frames = append(frames, frameData{})
				open = true
			}
			data := c.Data
			if c.Type == "fdAT" {
				data = data[4:]
			}
			frames[len(frames)-1].z = append(frames[len(frames)-1].z, data...)
		default:
			open = false
		}
	}
	return frames
}

func inflate(t *testing.T, z []byte) []byte {
	t.Helper()
	zr, err := zlib.NewReader(bytes.NewReader(z))
	require.NoError(t, err)
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	return raw
}

// unfilterFrame turns filtered scanlines (each with its tag byte) back into
// the raw image data.
func unfilterFrame(t *testing.T, filtered []byte, lineLen int, bpp BytesPerPixel) []byte {
	t.Helper()
	require.Zero(t, len(filtered)%(lineLen+1), "frame is not a whole number of scanlines")
	var out []byte
	pr := make([]byte, lineLen)
	for len(filtered) > 0 {
		ft, ok := FilterTypeFromByte(filtered[0])
		require.True(t, ok, "bad filter type %d", filtered[0])
		cr := append([]byte(nil), filtered[1:1+lineLen]...)
		require.NoError(t, Unfilter(ft, bpp, pr, cr))
		out = append(out, cr...)
		pr = cr
		filtered = filtered[1+lineLen:]
	}
	return out
}

var errSink = errors.New("sink failure")

// failWriter passes writes through to w until fail is set.
type failWriter struct {
	w    io.Writer
	fail bool
}

func (f *failWriter) Write(p []byte) (int, error) {
	if f.fail {
		return 0, errSink
	}
	return f.w.Write(p)
}

// countdownWriter passes the next n writes through to w and fails the rest.
type countdownWriter struct {
	w io.Writer
	n int
}

func (c *countdownWriter) Write(p []byte) (int, error) {
	if c.n <= 0 {
		return 0, errSink
	}
	c.n--
	return c.w.Write(p)
}

// pattern returns n bytes that compress poorly but are reproducible.
func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	x := uint32(seed) + 1
	for i := range b {
		x = x*1664525 + 1013904223
		b[i] = byte(x >> 24)
	}
	return b
}
