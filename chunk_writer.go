// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "github.com/klauspost/compress/zlib"

const defaultBufferLength = 4 * 1024

// chunkOutput is the Writer a chunkWriter writes to: either borrowed from
// the caller, who keeps finishing it, or owned, in which case finishing the
// stream finishes the Writer too.
type chunkOutput interface {
	writer() *Writer
	finish() error
	close()
}

type borrowedOutput struct{ w *Writer }

func (o borrowedOutput) writer() *Writer { return o.w }
func (o borrowedOutput) finish() error   { return nil }
func (o borrowedOutput) close()          {}

type ownedOutput struct{ w *Writer }

func (o ownedOutput) writer() *Writer { return o.w }
func (o ownedOutput) finish() error   { return o.w.Finish() }
func (o ownedOutput) close()          { o.w.Close() }

// chunkWriter sits between the compressor and the Writer's sink and packs
// the compressed stream into chunks.  It holds one chunk at a time and
// writes it out when the buffer is full or on flush.
//
// Chunks are at most min(size, 2^31-1) bytes.  In an fdAT chunk the first 4
// bytes of that are the sequence number.
type chunkWriter struct {
	out   chunkOutput
	buf   []byte
	index int // end of the buffered data
	curr  ChunkType
}

func newChunkWriter(out chunkOutput, size int) *chunkWriter {
	// An fdAT chunk needs room for the sequence number and one byte.
	size = max(min(size, maxChunkLen), 5)
	wr := out.writer()
	curr := FDAT
	if wr.sepDefImg || wr.info.frameControl == nil || wr.written == 0 {
		curr = IDAT
	}
	return &chunkWriter{
		out:  out,
		buf:  make([]byte, size),
		curr: curr,
	}
}

// nextFrameInfo returns the length of a scanline of the next frame, without
// the filter type byte, and the size of the whole frame.
func (c *chunkWriter) nextFrameInfo() (lineLen, frameSize int) {
	wr := c.out.writer()
	width, height := wr.info.frameSize()
	lineLen = wr.info.rawRowLength(width) - 1
	return lineLen, lineLen * int(height)
}

// writeHeader starts the next frame: it picks IDAT or fdAT and writes the
// fcTL chunk if the frame has one.  It writes straight to the sink, so the
// buffer must have been flushed.
func (c *chunkWriter) writeHeader() error {
	if c.index != 0 {
		panic("apng: chunkWriter.writeHeader called with unflushed data")
	}
	wr := c.out.writer()
	switch {
	case wr.sepDefImg:
		wr.sepDefImg = false
		c.curr = IDAT
	case wr.info.frameControl == nil:
		c.curr = IDAT
	default:
		if err := wr.writeFctl(); err != nil {
			return err
		}
		if wr.written == 0 {
			c.curr = IDAT
		} else {
			c.curr = FDAT
		}
	}
	return nil
}

// setFctl sets the frame control of the following frame.  The sequence
// number is the Writer's; f.SequenceNumber is ignored.
func (c *chunkWriter) setFctl(f Chunk_fcTL) {
	wr := c.out.writer()
	if wr.info.frameControl == nil {
		panic("apng: setFctl called on an image that is not animated")
	}
	*wr.info.frameControl = f
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		if c.index == 0 && c.curr == FDAT {
			writeUint32(c.buf[:4], c.out.writer().seq.Next())
			c.index = 4
		}
		k := copy(c.buf[c.index:], p)
		c.index += k
		n += k
		p = p[k:]
		if c.index == len(c.buf) {
			if err := c.flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// flush writes the buffered data, if any, as one chunk.
func (c *chunkWriter) flush() error {
	if c.index == 0 {
		return nil
	}
	if err := writeChunk(c.out.writer().w, c.curr, c.buf[:c.index]); err != nil {
		return err
	}
	c.index = 0
	return nil
}

type stageKind uint8

const (
	// stageNone only exists while take hands a stage over.
	stageNone stageKind = iota
	// stageCompressing: a frame is in progress; zw compresses into cw.
	stageCompressing
	// stageBare: between frames; only cw is held.
	stageBare
	// stagePoisoned: finishing a compressed stream failed.  Permanent.
	stagePoisoned
)

// stage is what a StreamWriter currently writes its scanlines to.
type stage struct {
	kind stageKind
	zw   *zlib.Writer
	cw   *chunkWriter
}

// take returns s and leaves stageNone in its place, so the old stage can
// only be installed back once.
func (s *stage) take() stage {
	old := *s
	*s = stage{kind: stageNone}
	return old
}
