// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "io"

// Encoder collects the parameters of an image.  WriteHeader validates them,
// writes the signature and header chunks and hands back the Writer used for
// the image data.  An Encoder can be used for one image only.
type Encoder struct {
	w              io.Writer
	info           Info
	filter         FilterType
	adaptiveFilter AdaptiveFilterType
	sepDefImg      bool
	used           bool
}

// NewEncoder makes an encoder for a width x height image written to w.  The
// image defaults to 8-bit grayscale, the Sub filter and default compression.
func NewEncoder(w io.Writer, width, height uint32) *Encoder {
	return &Encoder{
		w: w,
		info: Info{
			Width:     width,
			Height:    height,
			BitDepth:  BitDepth_8,
			ColorType: ColorType_Grayscale,
		},
		filter: FilterType_Sub,
	}
}

// SetColor sets the color type.  The length of the image data later supplied
// must match it.
func (e *Encoder) SetColor(c ColorType) { e.info.ColorType = c }

// SetDepth sets the bit depth.
func (e *Encoder) SetDepth(d BitDepth) { e.info.BitDepth = d }

func (e *Encoder) SetCompression(l CompressionLevel) { e.info.Compression = l }

// SetPalette sets the raw content of the PLTE chunk.  Paletted images require
// one.
func (e *Encoder) SetPalette(p []byte) { e.info.Palette = Chunk_PLTE(p) }

// SetTrns sets the raw content of the tRNS chunk.
func (e *Encoder) SetTrns(t []byte) { e.info.Trns = Chunk_tRNS(t) }

// SetFilter sets the filter used for every scanline, or the fallback when
// adaptive filtering is off.  The default is FilterType_Sub.
func (e *Encoder) SetFilter(f FilterType) { e.filter = f }

// SetAdaptiveFilter turns per-scanline filter selection on or off.
func (e *Encoder) SetAdaptiveFilter(a AdaptiveFilterType) { e.adaptiveFilter = a }

// SetAnimated marks the image as an APNG of numFrames frames, looping
// numPlays times (0 loops forever).  Frames default to the full image size.
func (e *Encoder) SetAnimated(numFrames, numPlays uint32) error {
	if numFrames == 0 {
		return ErrZeroFrames
	}
	e.info.AnimationControl = &Chunk_acTL{
		NumFrames: numFrames,
		NumPlays:  numPlays,
	}
	e.info.FrameControl = &Chunk_fcTL{
		Width:  e.info.Width,
		Height: e.info.Height,
	}
	return nil
}

// SetSepDefImg makes the first image written the default image shown by
// decoders without APNG support, separate from the animation's numFrames
// frames.
func (e *Encoder) SetSepDefImg(sep bool) error {
	if e.info.AnimationControl == nil {
		return ErrNotAnimated
	}
	e.sepDefImg = sep
	return nil
}

// SetFrameDelay sets how long every frame is displayed, in seconds, as the
// fraction num/den.  A zero den means 100.
func (e *Encoder) SetFrameDelay(num, den uint16) error {
	if e.info.FrameControl == nil {
		return ErrNotAnimated
	}
	e.info.FrameControl.DelayNum = num
	e.info.FrameControl.DelayDen = den
	return nil
}

// SetBlendOp sets the blend operation of every frame.
func (e *Encoder) SetBlendOp(op BlendOp) error {
	if e.info.FrameControl == nil {
		return ErrNotAnimated
	}
	e.info.FrameControl.BlendOp = op
	return nil
}

// SetDisposeOp sets the dispose operation of every frame.  The first frame
// is never written with DisposeOp_Previous; it gets DisposeOp_Background.
func (e *Encoder) SetDisposeOp(op DisposeOp) error {
	if e.info.FrameControl == nil {
		return ErrNotAnimated
	}
	e.info.FrameControl.DisposeOp = op
	return nil
}

// WriteHeader validates the parameters and writes the PNG signature followed
// by IHDR, PLTE, tRNS and acTL as configured.  Nothing is written if
// validation fails.
func (e *Encoder) WriteHeader() (*Writer, error) {
	if e.used {
		return nil, ErrEncoderUsed
	}
	e.used = true

	if e.info.Width == 0 {
		return nil, ErrZeroWidth
	}
	if e.info.Height == 0 {
		return nil, ErrZeroHeight
	}
	if e.info.ColorType.IsCombinationInvalid(e.info.BitDepth) {
		return nil, &FormatError{
			kind:      fkInvalidColorCombination,
			BitDepth:  e.info.BitDepth,
			ColorType: e.info.ColorType,
		}
	}

	w := &Writer{
		w:              e.w,
		info:           newPartialInfo(&e.info),
		seq:            NewSequenceNumbers(),
		filter:         e.filter,
		adaptiveFilter: e.adaptiveFilter,
		sepDefImg:      e.sepDefImg,
		hasSepDefImg:   e.sepDefImg,
	}
	if _, err := io.WriteString(e.w, PngHeader); err != nil {
		return nil, wrapIO(err)
	}
	if err := e.info.encode(e.w); err != nil {
		return nil, err
	}
	return w, nil
}
