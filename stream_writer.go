// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"io"
)

// StreamWriter writes image data incrementally, for images that do not fit
// in memory.  Frames are written back to back: once a frame has received all
// its bytes the next Write starts the next frame.
//
// Frame data is buffered in chunks; call Finish after the last frame to
// terminate the stream and learn about errors.  Close is the best-effort
// variant for deferred cleanup and never reports failures.
//
// If moving from one frame to the next fails, or finishing a frame's
// compressed stream does, the StreamWriter is left unusable and every later
// call returns ErrUnrecoverable.
type StreamWriter struct {
	stage   stage
	prevBuf []byte
	currBuf []byte
	outBuf  []byte
	index   int // bytes of the current scanline received so far
	lineLen int
	toWrite int // bytes still owed for the current frame
	end     bool
	done    bool

	width          uint32
	height         uint32
	bpp            BytesPerPixel
	filter         FilterType
	adaptiveFilter AdaptiveFilterType
	fctl           *Chunk_fcTL
	compression    CompressionLevel
	fr             filterer
}

func newStreamWriter(out chunkOutput, size int) (*StreamWriter, error) {
	wr := out.writer()
	if wr.broken {
		return nil, ErrUnrecoverable
	}
	if wr.finished || wr.written >= wr.maxFrames() {
		return nil, ErrEndReached
	}
	if wr.info.colorType == ColorType_Paletted && !wr.info.hasPalette {
		return nil, ErrNoPalette
	}

	inLen := wr.info.rawRowLength(wr.info.width) - 1
	s := &StreamWriter{
		prevBuf:        make([]byte, inLen),
		currBuf:        make([]byte, inLen),
		outBuf:         make([]byte, inLen),
		width:          wr.info.width,
		height:         wr.info.height,
		bpp:            wr.info.bppInPrediction(),
		filter:         wr.filter,
		adaptiveFilter: wr.adaptiveFilter,
		compression:    wr.info.compression,
	}
	if wr.info.frameControl != nil {
		fctl := *wr.info.frameControl
		s.fctl = &fctl
	}

	cw := newChunkWriter(out, size)
	s.lineLen, s.toWrite = cw.nextFrameInfo()
	if err := cw.writeHeader(); err != nil {
		return nil, err
	}
	s.end = wr.written+1 == wr.maxFrames()
	zw, err := s.compression.newWriter(cw)
	if err != nil {
		return nil, err
	}
	s.stage = stage{kind: stageCompressing, zw: zw, cw: cw}
	return s, nil
}

// Write consumes p, starting new frames as needed.  It stops with
// ErrEndReached if p holds more data than the remaining frames take.
func (s *StreamWriter) Write(p []byte) (int, error) {
	if s.stage.kind == stagePoisoned {
		return 0, ErrUnrecoverable
	}
	n := 0
	for len(p) > 0 {
		k, err := s.write(p)
		n += k
		if err != nil {
			return n, err
		}
		p = p[k:]
	}
	return n, nil
}

// write consumes at most the rest of the current scanline.
func (s *StreamWriter) write(p []byte) (int, error) {
	if s.stage.kind == stagePoisoned {
		return 0, ErrUnrecoverable
	}
	if len(p) == 0 {
		return 0, nil
	}

	if s.toWrite == 0 || s.done {
		if s.end || s.done {
			return 0, ErrEndReached
		}
		st := s.stage.take()
		switch st.kind {
		case stageCompressing:
			if err := st.zw.Close(); err != nil {
				s.poison(st.cw)
				return 0, wrapIO(err)
			}
			s.stage = stage{kind: stageBare, cw: st.cw}
		case stageBare:
			s.stage = st
		default:
			panic("apng: StreamWriter in an unexpected stage")
		}
		if err := s.newFrame(); err != nil {
			s.poison(s.stage.cw)
			return 0, err
		}
	}

	n := copy(s.currBuf[s.index:s.lineLen], p)
	s.index += n
	s.toWrite -= n

	if s.index == s.lineLen {
		cur := s.outBuf[:s.lineLen]
		copy(cur, s.currBuf[:s.lineLen])
		ft := s.fr.filter(s.filter, s.adaptiveFilter, s.bpp, s.prevBuf[:s.lineLen], cur)
		zw := s.stage.zw
		if _, err := zw.Write([]byte{byte(ft)}); err != nil {
			return n, wrapIO(err)
		}
		if _, err := zw.Write(cur); err != nil {
			return n, wrapIO(err)
		}
		// The current row becomes the previous row, unfiltered.
		s.prevBuf, s.currBuf = s.currBuf, s.prevBuf
		s.index = 0
	}
	return n, nil
}

// poison makes the failure permanent, for the Writer behind cw too.
func (s *StreamWriter) poison(cw *chunkWriter) {
	cw.out.writer().broken = true
	s.stage = stage{kind: stagePoisoned}
}

// newFrame flushes the chunk of the previous frame, writes the header of
// the next one and starts a new compressed stream for it.  The stage must be
// bare.  The frame geometry only changes once all of that succeeded.
func (s *StreamWriter) newFrame() error {
	cw := s.stage.cw
	if err := cw.flush(); err != nil {
		return err
	}
	wr := cw.out.writer()
	if s.fctl != nil {
		cw.setFctl(*s.fctl)
	}
	wr.written++
	if err := cw.writeHeader(); err != nil {
		return err
	}
	zw, err := s.compression.newWriter(cw)
	if err != nil {
		return err
	}

	s.lineLen, s.toWrite = cw.nextFrameInfo()
	s.end = wr.written+1 == wr.maxFrames()
	clear(s.prevBuf)
	s.stage.take()
	s.stage = stage{kind: stageCompressing, zw: zw, cw: cw}
	return nil
}

// ReadFrom writes everything r yields.  It implements io.ReaderFrom.
func (s *StreamWriter) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		nr, rerr := r.Read(buf)
		if nr > 0 {
			nw, err := s.Write(buf[:nr])
			total += int64(nw)
			if err != nil {
				return total, err
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// Flush writes out the compressed data buffered so far as a chunk.  It
// fails with ErrWrittenTooMuch if the data written so far ends in the middle
// of a scanline.
func (s *StreamWriter) Flush() error {
	switch s.stage.kind {
	case stagePoisoned:
		return ErrUnrecoverable
	case stageCompressing:
		if err := s.stage.zw.Flush(); err != nil {
			return wrapIO(err)
		}
		if err := s.stage.cw.flush(); err != nil {
			return err
		}
	case stageBare:
		if err := s.stage.cw.flush(); err != nil {
			return err
		}
	}
	if s.index > 0 {
		return &FormatError{kind: fkWrittenTooMuch, Bytes: s.index}
	}
	return nil
}

// Finish checks that every frame has been written in full, then ends the
// compressed stream and writes out the last chunk.  If the StreamWriter owns
// its Writer the Writer is finished too.
func (s *StreamWriter) Finish() error {
	if s.stage.kind == stagePoisoned {
		return ErrUnrecoverable
	}
	if s.done {
		return nil
	}
	if !s.end {
		return ErrMissingFrames
	}
	if s.toWrite > 0 {
		return &FormatError{kind: fkMissingData, Bytes: s.toWrite}
	}

	st := s.stage.take()
	if st.kind == stageCompressing {
		if err := st.zw.Close(); err != nil {
			s.poison(st.cw)
			return wrapIO(err)
		}
	}
	s.stage = stage{kind: stageBare, cw: st.cw}
	if err := st.cw.flush(); err != nil {
		return err
	}
	s.done = true
	st.cw.out.writer().written++
	return st.cw.out.finish()
}

// Close ends the compressed stream and writes out what is buffered,
// ignoring errors.  It is meant to be deferred; a stream closed without a
// successful Finish may be truncated.
func (s *StreamWriter) Close() error {
	if s.done || s.stage.kind == stagePoisoned {
		return nil
	}
	s.done = true
	st := s.stage.take()
	if st.kind == stageCompressing {
		_ = st.zw.Close()
	}
	s.stage = stage{kind: stageBare, cw: st.cw}
	_ = st.cw.flush()
	st.cw.out.close()
	return nil
}

// SetFilter sets the filter used from the next scanline on.
func (s *StreamWriter) SetFilter(f FilterType) { s.filter = f }

// SetAdaptiveFilter turns per-scanline filter selection on or off from the
// next scanline on.
func (s *StreamWriter) SetAdaptiveFilter(a AdaptiveFilterType) { s.adaptiveFilter = a }

// SetFrameDelay sets how long the frames after the current one are
// displayed, in seconds, as the fraction num/den.
func (s *StreamWriter) SetFrameDelay(num, den uint16) error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	s.fctl.DelayNum = num
	s.fctl.DelayDen = den
	return nil
}

// SetFrameDimension sets the size of the frames after the current one.
func (s *StreamWriter) SetFrameDimension(width, height uint32) error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	return s.fctl.setDimension(s.width, s.height, width, height)
}

// SetFramePosition sets the offset of the frames after the current one.
func (s *StreamWriter) SetFramePosition(x, y uint32) error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	return s.fctl.setPosition(s.width, s.height, x, y)
}

func (s *StreamWriter) ResetFrameDimension() error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	s.fctl.Width = s.width - s.fctl.XOffset
	s.fctl.Height = s.height - s.fctl.YOffset
	return nil
}

func (s *StreamWriter) ResetFramePosition() error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	s.fctl.XOffset = 0
	s.fctl.YOffset = 0
	return nil
}

// SetBlendOp sets the blend operation of the frames after the current one.
func (s *StreamWriter) SetBlendOp(op BlendOp) error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	s.fctl.BlendOp = op
	return nil
}

// SetDisposeOp sets the dispose operation of the frames after the current
// one.
func (s *StreamWriter) SetDisposeOp(op DisposeOp) error {
	if s.fctl == nil {
		return ErrNotAnimated
	}
	s.fctl.DisposeOp = op
	return nil
}
