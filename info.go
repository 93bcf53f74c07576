// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// CompressionLevel tells the encoding algorithm how to trade compression speed
// for image size.
type CompressionLevel int

const (
	DefaultCompression CompressionLevel = 0
	NoCompression      CompressionLevel = -1
	BestSpeed          CompressionLevel = -2
	BestCompression    CompressionLevel = -3
	HuffmanOnly        CompressionLevel = -4
	RunLength          CompressionLevel = -5
)

func (l CompressionLevel) zlib() int {
	switch l {
	case DefaultCompression:
		return zlib.DefaultCompression
	case NoCompression:
		return zlib.NoCompression
	case BestSpeed, RunLength:
		// klauspost/compress has no distance-1-only matcher; its fastest
		// level is the closest stand-in.
		return zlib.BestSpeed
	case BestCompression:
		return zlib.BestCompression
	case HuffmanOnly:
		return zlib.HuffmanOnly
	default:
		return zlib.DefaultCompression
	}
}

// newWriter starts a zlib stream at this level on top of w.
func (l CompressionLevel) newWriter(w io.Writer) (*zlib.Writer, error) {
	return zlib.NewWriterLevel(w, l.zlib())
}

// ColorType is the type of color of the image, per the PNG spec.
type ColorType uint8

const sizeOfColorType = 1

const (
	ColorType_Grayscale      = ColorType(0)
	ColorType_TrueColor      = ColorType(2)
	ColorType_Paletted       = ColorType(3)
	ColorType_GrayscaleAlpha = ColorType(4)
	ColorType_TrueColorAlpha = ColorType(6)
)

// samples is the number of samples per pixel.
func (c ColorType) samples() int {
	switch c {
	case ColorType_TrueColor:
		return 3
	case ColorType_GrayscaleAlpha:
		return 2
	case ColorType_TrueColorAlpha:
		return 4
	default:
		return 1
	}
}

// IsCombinationInvalid reports whether a PNG may not use bit depth d with
// this color type.
func (c ColorType) IsCombinationInvalid(d BitDepth) bool {
	switch c {
	case ColorType_Grayscale:
		return d != BitDepth_1 && d != BitDepth_2 && d != BitDepth_4 && d != BitDepth_8 && d != BitDepth_16
	case ColorType_TrueColor, ColorType_GrayscaleAlpha, ColorType_TrueColorAlpha:
		return d != BitDepth_8 && d != BitDepth_16
	case ColorType_Paletted:
		return d != BitDepth_1 && d != BitDepth_2 && d != BitDepth_4 && d != BitDepth_8
	}
	return true
}

// BitDepth is the bit depth of the image, as per the PNG spec.
type BitDepth uint8

const sizeOfBitDepth = 1

const (
	BitDepth_1  = BitDepth(1)
	BitDepth_2  = BitDepth(2)
	BitDepth_4  = BitDepth(4)
	BitDepth_8  = BitDepth(8)
	BitDepth_16 = BitDepth(16)
)

// BytesPerPixel is the distance, in bytes, between a byte and the byte it is
// predicted from.  It is one of 1, 2, 3, 4, 6 or 8.
type BytesPerPixel int

// Info is the full description of an image to encode.  Encoder fills it in;
// it is read once when the header is written.
type Info struct {
	Width       uint32
	Height      uint32
	BitDepth    BitDepth
	ColorType   ColorType
	Compression CompressionLevel

	Palette Chunk_PLTE
	Trns    Chunk_tRNS

	AnimationControl *Chunk_acTL
	FrameControl     *Chunk_fcTL
}

// encode writes IHDR and the optional PLTE, tRNS and acTL chunks.
func (info *Info) encode(w io.Writer) error {
	ihdr := &Chunk_IHDR{
		Width:     info.Width,
		Height:    info.Height,
		BitDepth:  info.BitDepth,
		ColorType: info.ColorType,
	}
	if _, err := ihdr.WriteTo(w); err != nil {
		return err
	}
	if info.Palette != nil {
		if _, err := info.Palette.WriteTo(w); err != nil {
			return err
		}
	}
	if info.Trns != nil {
		if _, err := info.Trns.WriteTo(w); err != nil {
			return err
		}
	}
	if info.AnimationControl != nil {
		if _, err := info.AnimationControl.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// partialInfo is the part of Info a Writer needs.  It is copied out of Info
// when the header is written, so later changes to the Encoder's Info do not
// reach the Writer.
type partialInfo struct {
	width            uint32
	height           uint32
	bitDepth         BitDepth
	colorType        ColorType
	frameControl     *Chunk_fcTL
	animationControl *Chunk_acTL
	compression      CompressionLevel
	hasPalette       bool
}

func newPartialInfo(info *Info) partialInfo {
	p := partialInfo{
		width:       info.Width,
		height:      info.Height,
		bitDepth:    info.BitDepth,
		colorType:   info.ColorType,
		compression: info.Compression,
		hasPalette:  info.Palette != nil,
	}
	if info.FrameControl != nil {
		fctl := *info.FrameControl
		p.frameControl = &fctl
	}
	if info.AnimationControl != nil {
		actl := *info.AnimationControl
		p.animationControl = &actl
	}
	return p
}

func (p *partialInfo) bppInPrediction() BytesPerPixel {
	bits := p.colorType.samples() * int(p.bitDepth)
	if bits < 8 {
		return 1
	}
	return BytesPerPixel(bits / 8)
}

// rawRowLength is the size of one scanline of the given width, including the
// leading filter type byte.
func (p *partialInfo) rawRowLength(width uint32) int {
	bits := uint64(p.colorType.samples()) * uint64(p.bitDepth) * uint64(width)
	return 1 + int((bits+7)/8)
}

// frameSize is the size of the next frame: the frame control's if the image
// is animated, the whole image's otherwise.
func (p *partialInfo) frameSize() (width, height uint32) {
	if p.frameControl != nil {
		return p.frameControl.Width, p.frameControl.Height
	}
	return p.width, p.height
}
