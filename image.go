// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"errors"
	"image"
	"image/color"
	"io"
)

// A cb is a combination of color type and bit depth.
const (
	cbInvalid = iota
	cbG8
	cbTC8
	cbP8
	cbTCA8
	cbG16
	cbTC16
	cbTCA16
)

func (c *Chunk_IHDR) cb() int {
	switch true {
	case c.ColorType == ColorType_Grayscale && c.BitDepth == BitDepth_8:
		return cbG8
	case c.ColorType == ColorType_TrueColor && c.BitDepth == BitDepth_8:
		return cbTC8
	case c.ColorType == ColorType_Paletted && c.BitDepth == BitDepth_8:
		return cbP8
	case c.ColorType == ColorType_TrueColorAlpha && c.BitDepth == BitDepth_8:
		return cbTCA8
	case c.ColorType == ColorType_TrueColor && c.BitDepth == BitDepth_16:
		return cbTC16
	case c.ColorType == ColorType_TrueColorAlpha && c.BitDepth == BitDepth_16:
		return cbTCA16
	case c.ColorType == ColorType_Grayscale && c.BitDepth == BitDepth_16:
		return cbG16
	}
	return cbInvalid
}

// headerFor returns the IHDR fields that hold m without loss.
func headerFor(m image.Image) Chunk_IHDR {
	b := m.Bounds()
	h := Chunk_IHDR{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}
	opaque := isOpaque(m)
	if p, ok := m.ColorModel().(color.Palette); ok && len(p) <= 256 {
		if _, ok := m.(image.PalettedImage); ok {
			h.ColorType, h.BitDepth = ColorType_Paletted, BitDepth_8
			return h
		}
	}
	switch m.ColorModel() {
	case color.GrayModel:
		h.ColorType, h.BitDepth = ColorType_Grayscale, BitDepth_8
	case color.Gray16Model:
		h.ColorType, h.BitDepth = ColorType_Grayscale, BitDepth_16
	case color.RGBAModel, color.NRGBAModel, color.AlphaModel:
		if opaque {
			h.ColorType, h.BitDepth = ColorType_TrueColor, BitDepth_8
		} else {
			h.ColorType, h.BitDepth = ColorType_TrueColorAlpha, BitDepth_8
		}
	default:
		if opaque {
			h.ColorType, h.BitDepth = ColorType_TrueColor, BitDepth_16
		} else {
			h.ColorType, h.BitDepth = ColorType_TrueColorAlpha, BitDepth_16
		}
	}
	return h
}

func isOpaque(m image.Image) bool {
	if o, ok := m.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := m.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

var errNotPaletted = errors.New("png: paletted animation frame is not a paletted image")

// imageData converts m to the raw scanlines WriteImageData takes for the
// given color type and bit depth combination.
func imageData(m image.Image, cb int) ([]byte, error) {
	bpp := 0 // Bytes per pixel.

	switch cb {
	case cbG8:
		bpp = 1
	case cbTC8:
		bpp = 3
	case cbP8:
		bpp = 1
	case cbTCA8:
		bpp = 4
	case cbTC16:
		bpp = 6
	case cbTCA16:
		bpp = 8
	case cbG16:
		bpp = 2
	}
	b := m.Bounds()
	rowLen := bpp * b.Dx()
	data := make([]byte, rowLen*b.Dy())

	gray, _ := m.(*image.Gray)
	rgba, _ := m.(*image.RGBA)
	paletted, _ := m.(*image.Paletted)
	nrgba, _ := m.(*image.NRGBA)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		cr0 := data[(y-b.Min.Y)*rowLen : (y-b.Min.Y+1)*rowLen]
		// Convert from colors to bytes.
		i := 0
		switch cb {
		case cbG8:
			if gray != nil {
				offset := gray.PixOffset(b.Min.X, y)
				copy(cr0, gray.Pix[offset:offset+b.Dx()])
			} else {
				for x := b.Min.X; x < b.Max.X; x++ {
					c := color.GrayModel.Convert(m.At(x, y)).(color.Gray)
					cr0[i] = c.Y
					i++
				}
			}
		case cbTC8:
			// We have previously verified that the alpha value is fully opaque.
			stride, pix, j0 := 0, []byte(nil), 0
			if rgba != nil {
				stride, pix, j0 = rgba.Stride, rgba.Pix, rgba.PixOffset(b.Min.X, y)
			} else if nrgba != nil {
				stride, pix, j0 = nrgba.Stride, nrgba.Pix, nrgba.PixOffset(b.Min.X, y)
			}
			if stride != 0 {
				j1 := j0 + b.Dx()*4
				for j := j0; j < j1; j += 4 {
					cr0[i+0] = pix[j+0]
					cr0[i+1] = pix[j+1]
					cr0[i+2] = pix[j+2]
					i += 3
				}
			} else {
				for x := b.Min.X; x < b.Max.X; x++ {
					r, g, b, _ := m.At(x, y).RGBA()
					cr0[i+0] = uint8(r >> 8)
					cr0[i+1] = uint8(g >> 8)
					cr0[i+2] = uint8(b >> 8)
					i += 3
				}
			}
		case cbP8:
			if paletted != nil {
				offset := paletted.PixOffset(b.Min.X, y)
				copy(cr0, paletted.Pix[offset:offset+b.Dx()])
			} else {
				pi, ok := m.(image.PalettedImage)
				if !ok {
					return nil, errNotPaletted
				}
				for x := b.Min.X; x < b.Max.X; x++ {
					cr0[i] = pi.ColorIndexAt(x, y)
					i += 1
				}
			}
		case cbTCA8:
			if nrgba != nil {
				offset := nrgba.PixOffset(b.Min.X, y)
				copy(cr0, nrgba.Pix[offset:offset+b.Dx()*4])
			} else {
				// Convert from image.Image (which is alpha-premultiplied) to PNG's non-alpha-premultiplied.
				for x := b.Min.X; x < b.Max.X; x++ {
					c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
					cr0[i+0] = c.R
					cr0[i+1] = c.G
					cr0[i+2] = c.B
					cr0[i+3] = c.A
					i += 4
				}
			}
		case cbG16:
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.Gray16Model.Convert(m.At(x, y)).(color.Gray16)
				cr0[i+0] = uint8(c.Y >> 8)
				cr0[i+1] = uint8(c.Y)
				i += 2
			}
		case cbTC16:
			// We have previously verified that the alpha value is fully opaque.
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, b, _ := m.At(x, y).RGBA()
				cr0[i+0] = uint8(r >> 8)
				cr0[i+1] = uint8(r)
				cr0[i+2] = uint8(g >> 8)
				cr0[i+3] = uint8(g)
				cr0[i+4] = uint8(b >> 8)
				cr0[i+5] = uint8(b)
				i += 6
			}
		case cbTCA16:
			// Convert from image.Image (which is alpha-premultiplied) to PNG's non-alpha-premultiplied.
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(m.At(x, y)).(color.NRGBA64)
				cr0[i+0] = uint8(c.R >> 8)
				cr0[i+1] = uint8(c.R)
				cr0[i+2] = uint8(c.G >> 8)
				cr0[i+3] = uint8(c.G)
				cr0[i+4] = uint8(c.B >> 8)
				cr0[i+5] = uint8(c.B)
				cr0[i+6] = uint8(c.A >> 8)
				cr0[i+7] = uint8(c.A)
				i += 8
			}
		}
	}
	return data, nil
}

// newImageEncoder configures an Encoder for images shaped like ref.
func newImageEncoder(w io.Writer, ref image.Image, cl CompressionLevel) (*Encoder, int) {
	h := headerFor(ref)
	enc := NewEncoder(w, h.Width, h.Height)
	enc.SetColor(h.ColorType)
	enc.SetDepth(h.BitDepth)
	enc.SetCompression(cl)
	cb := h.cb()
	if cb == cbP8 {
		p := ref.ColorModel().(color.Palette)
		enc.SetPalette(NewChunk_PLTE(p))
		if t := NewChunk_tRNS(p); t != nil {
			enc.SetTrns(t)
		}
	}
	// Filters are rarely useful on palette images and pointless without
	// compression.
	if cb == cbP8 || cl == NoCompression {
		enc.SetFilter(FilterType_None)
	} else {
		enc.SetAdaptiveFilter(AdaptiveFilter_Adaptive)
	}
	return enc, cb
}

// Encode writes m to w as a PNG.
func Encode(w io.Writer, m image.Image, cl CompressionLevel) error {
	enc, cb := newImageEncoder(w, m, cl)
	wr, err := enc.WriteHeader()
	if err != nil {
		return err
	}
	data, err := imageData(m, cb)
	if err != nil {
		wr.Close()
		return err
	}
	if err := wr.WriteImageData(data); err != nil {
		wr.Close()
		return err
	}
	return wr.Finish()
}

// Animation is a sequence of frames to encode as an APNG.
type Animation struct {
	// Frames are the animation frames.  Each frame's bounds must lie
	// inside the canvas, which is the bounds of Default if set and of the
	// first frame otherwise.  Paletted animations must use one palette.
	Frames []image.Image

	// Delays are the frame delays in 100ths of a second, one per frame.
	// Missing entries mean 0.
	Delays []uint16

	// Disposals and Blends are the per-frame operations.  Missing entries
	// mean DisposeOp_None and BlendOp_Source.
	Disposals []DisposeOp
	Blends    []BlendOp

	// LoopCount is the number of times the animation plays; 0 is forever.
	LoopCount uint32

	// Default, if not nil, is a still image shown by decoders without APNG
	// support.  It is not part of the animation.
	Default image.Image
}

// EncodeAll writes a to w as an APNG.
func EncodeAll(w io.Writer, a *Animation, cl CompressionLevel) error {
	if len(a.Frames) == 0 {
		return ErrZeroFrames
	}
	ref := a.Frames[0]
	if a.Default != nil {
		ref = a.Default
	}
	canvas := ref.Bounds()
	for _, f := range a.Frames {
		if !f.Bounds().In(canvas) {
			return ErrOutOfBounds
		}
	}

	enc, cb := newImageEncoder(w, ref, cl)
	if err := enc.SetAnimated(uint32(len(a.Frames)), a.LoopCount); err != nil {
		return err
	}
	if err := enc.SetSepDefImg(a.Default != nil); err != nil {
		return err
	}
	wr, err := enc.WriteHeader()
	if err != nil {
		return err
	}
	defer wr.Close()

	if a.Default != nil {
		data, err := imageData(a.Default, cb)
		if err != nil {
			return err
		}
		if err := wr.WriteImageData(data); err != nil {
			return err
		}
	}
	for i, f := range a.Frames {
		if err := setFrame(wr, a, i, canvas); err != nil {
			return err
		}
		data, err := imageData(f, cb)
		if err != nil {
			return err
		}
		if err := wr.WriteImageData(data); err != nil {
			return err
		}
	}
	return wr.Finish()
}

// setFrame configures wr for frame i of a.
func setFrame(wr *Writer, a *Animation, i int, canvas image.Rectangle) error {
	b := a.Frames[i].Bounds()
	if err := wr.ResetFramePosition(); err != nil {
		return err
	}
	if err := wr.SetFrameDimension(uint32(b.Dx()), uint32(b.Dy())); err != nil {
		return err
	}
	if err := wr.SetFramePosition(uint32(b.Min.X-canvas.Min.X), uint32(b.Min.Y-canvas.Min.Y)); err != nil {
		return err
	}
	var delay uint16
	if i < len(a.Delays) {
		delay = a.Delays[i]
	}
	if err := wr.SetFrameDelay(delay, 100); err != nil {
		return err
	}
	dispose := DisposeOp_None
	if i < len(a.Disposals) {
		dispose = a.Disposals[i]
	}
	if err := wr.SetDisposeOp(dispose); err != nil {
		return err
	}
	blend := BlendOp_Source
	if i < len(a.Blends) {
		blend = a.Blends[i]
	}
	return wr.SetBlendOp(blend)
}
