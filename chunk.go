// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"hash/crc32"
	"image/color"
	"io"
)

// PngHeader is the 8-byte signature every PNG stream starts with.
const PngHeader = "\x89PNG\r\n\x1a\n"

// maxChunkLen is the largest payload a chunk length field may announce.
const maxChunkLen = 1<<31 - 1

// ChunkType is the 4-byte type tag of a chunk.
type ChunkType [4]byte

func (t ChunkType) String() string { return string(t[:]) }

var (
	IHDR = ChunkType{'I', 'H', 'D', 'R'}
	PLTE = ChunkType{'P', 'L', 'T', 'E'}
	TRNS = ChunkType{'t', 'R', 'N', 'S'}
	ACTL = ChunkType{'a', 'c', 'T', 'L'}
	FCTL = ChunkType{'f', 'c', 'T', 'L'}
	IDAT = ChunkType{'I', 'D', 'A', 'T'}
	FDAT = ChunkType{'f', 'd', 'A', 'T'}
	IEND = ChunkType{'I', 'E', 'N', 'D'}
)

// CompressionMethod is the compression method, as per the PNG spec.
type CompressionMethod uint8

const sizeOfCompressionMethod = 1

const (
	CompressionMethod_Default = CompressionMethod(0)
)

// FilterMethod is the filter method, as per the PNG spec.
type FilterMethod uint8

const sizeOfFilterMethod = 1

const (
	FilterMethod_Default = FilterMethod(0)
)

// InterlaceMethod is the interlace method, as per the PNG spec.  Only
// non-interlaced images are written.
type InterlaceMethod uint8

const sizeOfInterlaceMethod = 1

const (
	InterlaceMethod_NonInterlaced = InterlaceMethod(0)
)

// Chunk_IHDR is the image header chunk, as per the PNG spec.
type Chunk_IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          BitDepth
	ColorType         ColorType
	CompressionMethod CompressionMethod
	FilterMethod      FilterMethod
	InterlaceMethod   InterlaceMethod
}

// WriteTo encodes the IHDR chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_IHDR) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOfUint32*2 + sizeOfBitDepth + sizeOfColorType + sizeOfCompressionMethod + sizeOfFilterMethod + sizeOfInterlaceMethod]byte{}
	writeUint32(buf[0:4], c.Width)
	writeUint32(buf[4:8], c.Height)
	buf[8] = byte(c.BitDepth)
	buf[9] = byte(c.ColorType)
	buf[10] = byte(c.CompressionMethod)
	buf[11] = byte(c.FilterMethod)
	buf[12] = byte(c.InterlaceMethod)
	return writeChunkTo(IHDR, buf[:], w)
}

// Chunk_PLTE is the raw content of the palette chunk: three bytes (R, G, B)
// per entry.  Write this after IHDR but before tRNS or any image data.
type Chunk_PLTE []byte

// NewChunk_PLTE makes a new palette chunk from a color.Palette.
func NewChunk_PLTE(p color.Palette) Chunk_PLTE {
	chunk := make(Chunk_PLTE, 3*len(p))
	for i, c := range p {
		c1 := color.NRGBAModel.Convert(c).(color.NRGBA)
		chunk[3*i+0] = c1.R
		chunk[3*i+1] = c1.G
		chunk[3*i+2] = c1.B
	}
	return chunk
}

// WriteTo encodes the palette chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c Chunk_PLTE) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo(PLTE, c, w)
}

// Chunk_tRNS is the raw content of the transparency chunk.  Write this after
// IHDR and PLTE but before any image data.
type Chunk_tRNS []byte

// NewChunk_tRNS makes a new transparency chunk from a color.Palette.  Trailing
// opaque entries are dropped; nil is returned for a fully opaque palette.
func NewChunk_tRNS(p color.Palette) Chunk_tRNS {
	last := -1
	alpha := make(Chunk_tRNS, len(p))
	for i, c := range p {
		c1 := color.NRGBAModel.Convert(c).(color.NRGBA)
		alpha[i] = c1.A
		if c1.A != 0xff {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	return alpha[:last+1]
}

// WriteTo encodes the transparency chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c Chunk_tRNS) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo(TRNS, c, w)
}

// Chunk_IEND is the ending chunk, as per the PNG spec.  Write this after all other chunks.
type Chunk_IEND struct{}

// WriteTo encodes the ending chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_IEND) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo(IEND, nil, w)
}

// Chunk_acTL is the animation control chunk, as per the APNG spec.  Write this
// before any image data.
type Chunk_acTL struct {
	NumFrames uint32 // Number of frames
	NumPlays  uint32 // Number of times to loop this APNG. 0 indicates infinite looping.
}

// WriteTo encodes the animation control chunk to the io.Writer.  This supports
// the io.WriterTo interface.
func (c *Chunk_acTL) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOfUint32 * 2]byte{}
	writeUint32(buf[0:4], c.NumFrames)
	writeUint32(buf[4:8], c.NumPlays)
	return writeChunkTo(ACTL, buf[:], w)
}

// DisposeOp is the dispose operator, as per the APNG spec.
type DisposeOp uint8

const sizeOfDisposeOp = 1

const (
	DisposeOp_None       = DisposeOp(0)
	DisposeOp_Background = DisposeOp(1)
	DisposeOp_Previous   = DisposeOp(2)
)

// BlendOp is the blend operator, as per the APNG spec.
type BlendOp uint8

const sizeOfBlendOp = 1

const (
	BlendOp_Source = BlendOp(0)
	BlendOp_Over   = BlendOp(1)
)

// Chunk_fcTL is the frame control chunk, as per the APNG spec.
type Chunk_fcTL struct {
	SequenceNumber uint32    // Sequence number of the animation chunk, starting from 0
	Width          uint32    // Width of the following frame
	Height         uint32    // Height of the following frame
	XOffset        uint32    // X position at which to render the following frame
	YOffset        uint32    // Y position at which to render the following frame
	DelayNum       uint16    // Frame delay fraction numerator
	DelayDen       uint16    // Frame delay fraction denominator
	DisposeOp      DisposeOp // Type of frame area disposal to be done after rendering this frame
	BlendOp        BlendOp   // Type of frame area rendering for this frame
}

// WriteTo encodes the frame control chunk to the io.Writer.  This supports the
// io.WriterTo interface.
func (c *Chunk_fcTL) WriteTo(w io.Writer) (int64, error) {
	buf := [sizeOfUint32*5 + sizeOfUint16*2 + sizeOfDisposeOp + sizeOfBlendOp]byte{}
	writeUint32(buf[0:4], c.SequenceNumber)
	writeUint32(buf[4:8], c.Width)
	writeUint32(buf[8:12], c.Height)
	writeUint32(buf[12:16], c.XOffset)
	writeUint32(buf[16:20], c.YOffset)
	writeUint16(buf[20:22], c.DelayNum)
	writeUint16(buf[22:24], c.DelayDen)
	buf[24] = byte(c.DisposeOp)
	buf[25] = byte(c.BlendOp)
	return writeChunkTo(FCTL, buf[:], w)
}

// setDimension resizes the frame inside an image of the given size.
func (c *Chunk_fcTL) setDimension(imageWidth, imageHeight, width, height uint32) error {
	if uint64(width)+uint64(c.XOffset) > uint64(imageWidth) ||
		uint64(height)+uint64(c.YOffset) > uint64(imageHeight) {
		return ErrOutOfBounds
	} else if width == 0 {
		return ErrZeroWidth
	} else if height == 0 {
		return ErrZeroHeight
	}
	c.Width = width
	c.Height = height
	return nil
}

// setPosition moves the frame inside an image of the given size.
func (c *Chunk_fcTL) setPosition(imageWidth, imageHeight, x, y uint32) error {
	if uint64(x)+uint64(c.Width) > uint64(imageWidth) ||
		uint64(y)+uint64(c.Height) > uint64(imageHeight) {
		return ErrOutOfBounds
	}
	c.XOffset = x
	c.YOffset = y
	return nil
}

// SequenceNumbers is used to track sequence numbers across all fcTL and fdAT
// chunks of an animation.  It wraps around on overflow.
type SequenceNumbers uint32

// NewSequenceNumbers returns a counter starting at 0.
func NewSequenceNumbers() *SequenceNumbers {
	return new(SequenceNumbers)
}

func (s *SequenceNumbers) Next() uint32 {
	tmp := uint32(*s)
	*s++
	return tmp
}

// Big-endian.
func writeUint16(b []uint8, u uint16) {
	b[0] = uint8(u >> 8)
	b[1] = uint8(u >> 0)
}

const sizeOfUint16 = 2

// Big-endian.
func writeUint32(b []uint8, u uint32) {
	b[0] = uint8(u >> 24)
	b[1] = uint8(u >> 16)
	b[2] = uint8(u >> 8)
	b[3] = uint8(u >> 0)
}

const sizeOfUint32 = 4

// writeChunkTo frames b as one chunk: length, type, data, then the CRC-32 of
// type and data.  The length and CRC are computed before the first byte
// reaches w.
func writeChunkTo(name ChunkType, b []byte, w io.Writer) (int64, error) {
	if len(b) > maxChunkLen {
		return 0, ErrChunkTooLarge
	}
	header := [8]byte{}
	footer := [4]byte{}

	writeUint32(header[:4], uint32(len(b)))
	copy(header[4:8], name[:])

	crc := crc32.NewIEEE()
	crc.Write(header[4:8])
	crc.Write(b)
	writeUint32(footer[:4], crc.Sum32())

	hl, err := w.Write(header[:8])
	if err != nil {
		return int64(hl), wrapIO(err)
	}
	bl, err := w.Write(b)
	if err != nil {
		return int64(hl + bl), wrapIO(err)
	}
	fl, err := w.Write(footer[:4])
	return int64(hl + bl + fl), wrapIO(err)
}

// writeChunk is writeChunkTo for callers that only care about the error.
func writeChunk(w io.Writer, name ChunkType, b []byte) error {
	_, err := writeChunkTo(name, b, w)
	return err
}
