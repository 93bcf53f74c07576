// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"bytes"
	"io"
)

const (
	maxIDATChunkLen = maxChunkLen
	maxFDATChunkLen = maxChunkLen - 4 // room for the sequence number
)

// Writer writes the image data of one PNG or APNG, frame by frame.  It is
// obtained from Encoder.WriteHeader.
//
// Finish must be called once all frames are written; it terminates the
// stream with IEND and reports the error, if any.  Close is the best-effort
// variant for deferred cleanup: it writes IEND unless Finish already did and
// discards any failure.
type Writer struct {
	w              io.Writer
	info           partialInfo
	seq            *SequenceNumbers
	filter         FilterType
	adaptiveFilter AdaptiveFilterType

	// sepDefImg is pending until the default image has been written;
	// hasSepDefImg stays set for the Writer's lifetime.
	sepDefImg    bool
	hasSepDefImg bool

	written   uint64
	wroteFctl bool
	finished  bool
	broken    bool // a frame was cut short by a sink error
	fr        filterer
}

// WriteChunk writes a raw chunk, such as a metadata chunk, to the stream.
// The content is not interpreted.
func (w *Writer) WriteChunk(name ChunkType, data []byte) error {
	return writeChunk(w.w, name, data)
}

// maxFrames is the number of WriteImageData calls the image takes.
func (w *Writer) maxFrames() uint64 {
	switch {
	case w.info.animationControl == nil:
		return 1
	case w.hasSepDefImg:
		return uint64(w.info.animationControl.NumFrames) + 1
	default:
		return uint64(w.info.animationControl.NumFrames)
	}
}

// writeFctl writes the frame control chunk of the next frame with the next
// sequence number.
func (w *Writer) writeFctl() error {
	fctl := *w.info.frameControl
	fctl.SequenceNumber = w.seq.Next()
	if !w.wroteFctl && fctl.DisposeOp == DisposeOp_Previous {
		fctl.DisposeOp = DisposeOp_Background
	}
	w.wroteFctl = true
	_, err := fctl.WriteTo(w.w)
	return err
}

// WriteImageData writes one whole frame.  data holds the raw, unfiltered
// scanlines of the frame back to back, without filter type bytes.
//
// The first frame, and the separate default image if there is one, is
// written as IDAT chunks; later animation frames as fdAT chunks, each
// preceded by an fcTL.
//
// A sink error while a frame is being written leaves that frame partly in
// the stream; every later call fails with ErrUnrecoverable.  Finish can
// still be called to terminate the stream.
func (w *Writer) WriteImageData(data []byte) error {
	if w.broken {
		return ErrUnrecoverable
	}
	if w.info.colorType == ColorType_Paletted && !w.info.hasPalette {
		return ErrNoPalette
	}
	if w.finished || w.written >= w.maxFrames() {
		return ErrEndReached
	}

	width, height := w.info.frameSize()
	inLen := w.info.rawRowLength(width) - 1
	dataSize := inLen * int(height)
	if dataSize != len(data) {
		return &ParameterError{Expected: dataSize, Actual: len(data)}
	}

	var zbuf bytes.Buffer
	zw, err := w.info.compression.newWriter(&zbuf)
	if err != nil {
		return err
	}
	bpp := w.info.bppInPrediction()
	pr := make([]byte, inLen)
	cr := make([]byte, inLen)
	tag := [1]byte{}
	for y := 0; y < int(height); y++ {
		line := data[y*inLen : (y+1)*inLen]
		copy(cr, line)
		tag[0] = byte(w.fr.filter(w.filter, w.adaptiveFilter, bpp, pr, cr))
		if _, err := zw.Write(tag[:]); err != nil {
			return wrapIO(err)
		}
		if _, err := zw.Write(cr); err != nil {
			return wrapIO(err)
		}
		// The current row for y is the previous row for y+1.
		pr = line
	}
	if err := zw.Close(); err != nil {
		return wrapIO(err)
	}
	if err := w.emitFrame(zbuf.Bytes()); err != nil {
		w.broken = true
		return err
	}
	w.written++
	return nil
}

// emitFrame writes the compressed data of one frame, with its fcTL if it
// has one.
func (w *Writer) emitFrame(zdata []byte) error {
	if w.sepDefImg || w.info.frameControl == nil {
		w.sepDefImg = false
		return w.writeIDATs(zdata)
	}
	if err := w.writeFctl(); err != nil {
		return err
	}
	if w.written == 0 {
		return w.writeIDATs(zdata)
	}
	return w.writeFDATs(zdata)
}

func (w *Writer) writeIDATs(zdata []byte) error {
	for len(zdata) > 0 {
		n := min(len(zdata), maxIDATChunkLen)
		if err := writeChunk(w.w, IDAT, zdata[:n]); err != nil {
			return err
		}
		zdata = zdata[n:]
	}
	return nil
}

func (w *Writer) writeFDATs(zdata []byte) error {
	buf := make([]byte, 4+min(len(zdata), maxFDATChunkLen))
	for len(zdata) > 0 {
		n := min(len(zdata), maxFDATChunkLen)
		writeUint32(buf[:4], w.seq.Next())
		copy(buf[4:], zdata[:n])
		if err := writeChunk(w.w, FDAT, buf[:4+n]); err != nil {
			return err
		}
		zdata = zdata[n:]
	}
	return nil
}

// SetFilter sets the filter used for the following frames.
func (w *Writer) SetFilter(f FilterType) { w.filter = f }

// SetAdaptiveFilter turns per-scanline filter selection on or off for the
// following frames.
func (w *Writer) SetAdaptiveFilter(a AdaptiveFilterType) { w.adaptiveFilter = a }

// SetFrameDelay sets how long the following frames are displayed, in
// seconds, as the fraction num/den.  A zero den means 100.
func (w *Writer) SetFrameDelay(num, den uint16) error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	w.info.frameControl.DelayNum = num
	w.info.frameControl.DelayDen = den
	return nil
}

// SetFrameDimension sets the size of the following frames.  The frame,
// at its current position, must fit inside the image.
func (w *Writer) SetFrameDimension(width, height uint32) error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	return w.info.frameControl.setDimension(w.info.width, w.info.height, width, height)
}

// SetFramePosition sets the offset of the following frames.  The frame, at
// its current size, must fit inside the image.
func (w *Writer) SetFramePosition(x, y uint32) error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	return w.info.frameControl.setPosition(w.info.width, w.info.height, x, y)
}

// ResetFrameDimension makes the following frames extend from their current
// position to the edges of the image.  Call ResetFramePosition first to
// cover the whole image.
func (w *Writer) ResetFrameDimension() error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	w.info.frameControl.Width = w.info.width - w.info.frameControl.XOffset
	w.info.frameControl.Height = w.info.height - w.info.frameControl.YOffset
	return nil
}

// ResetFramePosition moves the following frames to (0, 0).
func (w *Writer) ResetFramePosition() error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	w.info.frameControl.XOffset = 0
	w.info.frameControl.YOffset = 0
	return nil
}

// SetBlendOp sets the blend operation of the following frames.
func (w *Writer) SetBlendOp(op BlendOp) error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	w.info.frameControl.BlendOp = op
	return nil
}

// SetDisposeOp sets the dispose operation of the following frames.
func (w *Writer) SetDisposeOp(op DisposeOp) error {
	if w.info.frameControl == nil {
		return ErrNotAnimated
	}
	w.info.frameControl.DisposeOp = op
	return nil
}

// StreamWriter returns a StreamWriter that writes the next frames through w
// in 4 KiB chunks.  w stays usable afterwards, for instance to append
// chunks, and must still be finished by the caller.
func (w *Writer) StreamWriter() (*StreamWriter, error) {
	return w.StreamWriterSize(defaultBufferLength)
}

// StreamWriterSize is StreamWriter with chunks of up to size bytes.
func (w *Writer) StreamWriterSize(size int) (*StreamWriter, error) {
	return newStreamWriter(borrowedOutput{w}, size)
}

// IntoStreamWriter hands w over to a StreamWriter writing 4 KiB chunks.
// Finishing the StreamWriter finishes w; w must not be used any more.
func (w *Writer) IntoStreamWriter() (*StreamWriter, error) {
	return w.IntoStreamWriterSize(defaultBufferLength)
}

// IntoStreamWriterSize is IntoStreamWriter with chunks of up to size bytes.
func (w *Writer) IntoStreamWriterSize(size int) (*StreamWriter, error) {
	return newStreamWriter(ownedOutput{w}, size)
}

// Finish writes the IEND chunk.  Later calls do nothing.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true
	_, err := (&Chunk_IEND{}).WriteTo(w.w)
	return err
}

// Close writes the IEND chunk if Finish has not, ignoring any error.  It
// always returns nil; use Finish to learn whether the stream was terminated.
func (w *Writer) Close() error {
	_ = w.Finish()
	return nil
}
