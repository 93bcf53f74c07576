package apng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrayWriter(t *testing.T, buf *bytes.Buffer, width, height uint32, configure func(*Encoder)) *Writer {
	t.Helper()
	enc := NewEncoder(buf, width, height)
	if configure != nil {
		configure(enc)
	}
	wr, err := enc.WriteHeader()
	require.NoError(t, err)
	return wr
}

func animated(numFrames uint32) func(*Encoder) {
	return func(e *Encoder) {
		if err := e.SetAnimated(numFrames, 0); err != nil {
			panic(err)
		}
	}
}

func TestWriteOnePixelRGB(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	enc := NewEncoder(&buf, 1, 1)
	enc.SetColor(ColorType_TrueColor)
	enc.SetDepth(BitDepth_8)
	enc.SetFilter(FilterType_None)
	wr, err := enc.WriteHeader()
	require.NoError(t, err)
	require.NoError(t, wr.WriteImageData([]byte{255, 0, 0}))
	require.NoError(t, wr.Finish())

	chunks := readChunks(t, buf.Bytes())
	require.Equal(t, []string{"IHDR", "IDAT", "IEND"}, chunkTypes(chunks))
	assert.Equal([]byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}, chunks[0].Data)
	assert.Equal([]byte{0, 255, 0, 0}, inflate(t, chunks[1].Data))
	assert.Empty(chunks[2].Data)
	assert.Equal([]byte{0xAE, 0x42, 0x60, 0x82}, buf.Bytes()[buf.Len()-4:])

	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(color.NRGBA{R: 255, A: 255}, color.NRGBAModel.Convert(img.At(0, 0)))
}

func TestWriteHeaderValidation(t *testing.T) {
	var testCases = []struct {
		name   string
		width  uint32
		height uint32
		color  ColorType
		depth  BitDepth
		err    error
	}{
		{"zero width", 0, 1, ColorType_Grayscale, BitDepth_8, ErrZeroWidth},
		{"zero height", 1, 0, ColorType_Grayscale, BitDepth_8, ErrZeroHeight},
		{"4-bit truecolor", 1, 1, ColorType_TrueColor, BitDepth_4, ErrInvalidColorCombination},
		{"16-bit palette", 1, 1, ColorType_Paletted, BitDepth_16, ErrInvalidColorCombination},
		{"unknown color type", 1, 1, ColorType(5), BitDepth_8, ErrInvalidColorCombination},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf, tt.width, tt.height)
			enc.SetColor(tt.color)
			enc.SetDepth(tt.depth)
			wr, err := enc.WriteHeader()
			assert.Nil(t, wr)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, buf.Len(), "nothing may be written before validation passes")
		})
	}
}

func TestInvalidCombinationReportsParameters(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{}, 1, 1)
	enc.SetColor(ColorType_GrayscaleAlpha)
	enc.SetDepth(BitDepth_2)
	_, err := enc.WriteHeader()

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, BitDepth_2, fe.BitDepth)
	assert.Equal(t, ColorType_GrayscaleAlpha, fe.ColorType)
}

func TestWriteHeaderTwice(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{}, 1, 1)
	_, err := enc.WriteHeader()
	require.NoError(t, err)
	_, err = enc.WriteHeader()
	assert.ErrorIs(t, err, ErrEncoderUsed)
}

func TestSetAnimatedZeroFrames(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{}, 1, 1)
	assert.ErrorIs(t, enc.SetAnimated(0, 0), ErrZeroFrames)
	assert.ErrorIs(t, enc.SetSepDefImg(true), ErrNotAnimated)
	assert.ErrorIs(t, enc.SetFrameDelay(1, 2), ErrNotAnimated)
	assert.ErrorIs(t, enc.SetBlendOp(BlendOp_Over), ErrNotAnimated)
	assert.ErrorIs(t, enc.SetDisposeOp(DisposeOp_Background), ErrNotAnimated)
}

func TestWriteImageDataSizeMismatch(t *testing.T) {
	var testCases = []struct {
		name     string
		color    ColorType
		depth    BitDepth
		width    uint32
		height   uint32
		expected int
	}{
		{"gray8", ColorType_Grayscale, BitDepth_8, 5, 3, 15},
		{"rgb16", ColorType_TrueColor, BitDepth_16, 5, 3, 90},
		{"gray1", ColorType_Grayscale, BitDepth_1, 9, 3, 6},
		{"gray4", ColorType_Grayscale, BitDepth_4, 3, 2, 4},
		{"rgba8", ColorType_TrueColorAlpha, BitDepth_8, 2, 2, 16},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			wr := newGrayWriter(t, &bytes.Buffer{}, tt.width, tt.height, func(e *Encoder) {
				e.SetColor(tt.color)
				e.SetDepth(tt.depth)
			})
			err := wr.WriteImageData(make([]byte, tt.expected+1))

			var pe *ParameterError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.expected, pe.Expected)
			assert.Equal(t, tt.expected+1, pe.Actual)
			assert.NoError(t, wr.WriteImageData(make([]byte, tt.expected)))
		})
	}
}

func TestWriteImageDataEndReached(t *testing.T) {
	t.Run("still", func(t *testing.T) {
		wr := newGrayWriter(t, &bytes.Buffer{}, 2, 2, nil)
		require.NoError(t, wr.WriteImageData(make([]byte, 4)))
		assert.ErrorIs(t, wr.WriteImageData(make([]byte, 4)), ErrEndReached)
	})
	t.Run("animated", func(t *testing.T) {
		wr := newGrayWriter(t, &bytes.Buffer{}, 2, 2, animated(2))
		require.NoError(t, wr.WriteImageData(make([]byte, 4)))
		require.NoError(t, wr.WriteImageData(make([]byte, 4)))
		assert.ErrorIs(t, wr.WriteImageData(make([]byte, 4)), ErrEndReached)
	})
	t.Run("separate default image", func(t *testing.T) {
		wr := newGrayWriter(t, &bytes.Buffer{}, 2, 2, func(e *Encoder) {
			animated(2)(e)
			require.NoError(t, e.SetSepDefImg(true))
		})
		for i := 0; i < 3; i++ {
			require.NoError(t, wr.WriteImageData(make([]byte, 4)), "frame %d", i)
		}
		assert.ErrorIs(t, wr.WriteImageData(make([]byte, 4)), ErrEndReached)
	})
	t.Run("finished", func(t *testing.T) {
		wr := newGrayWriter(t, &bytes.Buffer{}, 2, 2, nil)
		require.NoError(t, wr.Finish())
		assert.ErrorIs(t, wr.WriteImageData(make([]byte, 4)), ErrEndReached)
	})
}

func TestWriteImageDataNoPalette(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 2, 2, func(e *Encoder) {
		e.SetColor(ColorType_Paletted)
	})
	n := buf.Len()
	assert.ErrorIs(t, wr.WriteImageData(make([]byte, 4)), ErrNoPalette)
	assert.Equal(t, n, buf.Len())
}

func TestWriterSettersNotAnimated(t *testing.T) {
	wr := newGrayWriter(t, &bytes.Buffer{}, 2, 2, nil)
	assert.ErrorIs(t, wr.SetFrameDelay(1, 10), ErrNotAnimated)
	assert.ErrorIs(t, wr.SetFrameDimension(1, 1), ErrNotAnimated)
	assert.ErrorIs(t, wr.SetFramePosition(0, 0), ErrNotAnimated)
	assert.ErrorIs(t, wr.ResetFrameDimension(), ErrNotAnimated)
	assert.ErrorIs(t, wr.ResetFramePosition(), ErrNotAnimated)
	assert.ErrorIs(t, wr.SetBlendOp(BlendOp_Over), ErrNotAnimated)
	assert.ErrorIs(t, wr.SetDisposeOp(DisposeOp_None), ErrNotAnimated)
}

func TestWriterFrameGeometry(t *testing.T) {
	wr := newGrayWriter(t, &bytes.Buffer{}, 10, 8, animated(1))

	assert.ErrorIs(t, wr.SetFramePosition(1, 0), ErrOutOfBounds, "full-size frame cannot move")
	require.NoError(t, wr.SetFrameDimension(4, 4))
	require.NoError(t, wr.SetFramePosition(6, 4))
	assert.ErrorIs(t, wr.SetFrameDimension(5, 4), ErrOutOfBounds)
	assert.ErrorIs(t, wr.SetFrameDimension(0, 4), ErrZeroWidth)
	assert.ErrorIs(t, wr.SetFrameDimension(4, 0), ErrZeroHeight)

	require.NoError(t, wr.ResetFramePosition())
	require.NoError(t, wr.ResetFrameDimension())
	assert.Equal(t, uint32(10), wr.info.frameControl.Width)
	assert.Equal(t, uint32(8), wr.info.frameControl.Height)

	require.NoError(t, wr.SetFrameDimension(4, 4))
	require.NoError(t, wr.SetFramePosition(6, 4))
	require.NoError(t, wr.ResetFrameDimension())
	assert.Equal(t, uint32(4), wr.info.frameControl.Width)
	assert.Equal(t, uint32(4), wr.info.frameControl.Height)
}

func TestSeparateDefaultImage(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 3, 2, func(e *Encoder) {
		animated(1)(e)
		require.NoError(t, e.SetSepDefImg(true))
	})

	require.NoError(t, wr.WriteImageData(pattern(6, 1)))
	chunks := readChunks(t, buf.Bytes())
	assert.Equal(t, []string{"IHDR", "acTL", "IDAT"}, chunkTypes(chunks))

	require.NoError(t, wr.WriteImageData(pattern(6, 2)))
	require.NoError(t, wr.Finish())
	chunks = readChunks(t, buf.Bytes())
	require.Equal(t, []string{"IHDR", "acTL", "IDAT", "fcTL", "fdAT", "IEND"}, chunkTypes(chunks))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(chunks[3].Data[:4]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(chunks[4].Data[:4]))

	frames := splitFrames(t, chunks)
	require.Len(t, frames, 2)
	assert.Nil(t, frames[0].fctl)
	assert.Equal(t, pattern(6, 1), unfilterFrame(t, inflate(t, frames[0].z), 3, 1))
	assert.Equal(t, pattern(6, 2), unfilterFrame(t, inflate(t, frames[1].z), 3, 1))
}

func TestAnimationSequenceNumbers(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 4, 3, animated(3))
	for i := 0; i < 3; i++ {
		require.NoError(t, wr.WriteImageData(pattern(12, byte(i))))
	}
	require.NoError(t, wr.Finish())

	chunks := readChunks(t, buf.Bytes())
	assert.Equal(t, []string{"IHDR", "acTL", "fcTL", "IDAT", "fcTL", "fdAT", "fcTL", "fdAT", "IEND"}, chunkTypes(chunks))
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, sequenceNumbers(chunks))
	assert.Equal(t, []byte{0, 0, 0, 3, 0, 0, 0, 0}, chunks[1].Data)
}

func TestAnimationFramesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 6, 5, func(e *Encoder) {
		e.SetColor(ColorType_TrueColorAlpha)
		animated(3)(e)
		require.NoError(t, e.SetFrameDelay(1, 25))
	})
	wr.SetAdaptiveFilter(AdaptiveFilter_Adaptive)

	full := pattern(6*5*4, 1)
	require.NoError(t, wr.WriteImageData(full))

	require.NoError(t, wr.SetFrameDimension(2, 3))
	require.NoError(t, wr.SetFramePosition(4, 2))
	require.NoError(t, wr.SetBlendOp(BlendOp_Over))
	require.NoError(t, wr.SetDisposeOp(DisposeOp_Background))
	sub := pattern(2*3*4, 2)
	require.NoError(t, wr.WriteImageData(sub))

	wr.SetFilter(FilterType_Paeth)
	wr.SetAdaptiveFilter(AdaptiveFilter_NonAdaptive)
	require.NoError(t, wr.SetFrameDelay(3, 0))
	sub2 := pattern(2*3*4, 3)
	require.NoError(t, wr.WriteImageData(sub2))
	require.NoError(t, wr.Finish())

	frames := splitFrames(t, readChunks(t, buf.Bytes()))
	require.Len(t, frames, 3)

	assert.Equal(t, decodedFctl{Width: 6, Height: 5, DelayNum: 1, DelayDen: 25}, *frames[0].fctl)
	assert.Equal(t, decodedFctl{Width: 2, Height: 3, XOffset: 4, YOffset: 2, DelayNum: 1, DelayDen: 25,
		DisposeOp: DisposeOp_Background, BlendOp: BlendOp_Over}, *frames[1].fctl)
	assert.Equal(t, decodedFctl{Width: 2, Height: 3, XOffset: 4, YOffset: 2, DelayNum: 3,
		DisposeOp: DisposeOp_Background, BlendOp: BlendOp_Over}, *frames[2].fctl)

	assert.Equal(t, full, unfilterFrame(t, inflate(t, frames[0].z), 24, 4))
	assert.Equal(t, sub, unfilterFrame(t, inflate(t, frames[1].z), 8, 4))

	filtered := inflate(t, frames[2].z)
	for y := 0; y < 3; y++ {
		assert.Equal(t, byte(FilterType_Paeth), filtered[y*9], "row %d", y)
	}
	assert.Equal(t, sub2, unfilterFrame(t, filtered, 8, 4))

	// Without APNG support the first frame is the image.
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
}

func TestFirstFrameDisposePrevious(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 2, 2, func(e *Encoder) {
		animated(2)(e)
		require.NoError(t, e.SetDisposeOp(DisposeOp_Previous))
	})
	require.NoError(t, wr.WriteImageData(make([]byte, 4)))
	require.NoError(t, wr.WriteImageData(make([]byte, 4)))
	require.NoError(t, wr.Finish())

	frames := splitFrames(t, readChunks(t, buf.Bytes()))
	require.Len(t, frames, 2)
	assert.Equal(t, DisposeOp_Background, frames[0].fctl.DisposeOp)
	assert.Equal(t, DisposeOp_Previous, frames[1].fctl.DisposeOp)
}

func TestWriterIgnoresLaterEncoderChanges(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, 2, 2)
	require.NoError(t, enc.SetAnimated(1, 0))
	require.NoError(t, enc.SetFrameDelay(1, 10))
	wr, err := enc.WriteHeader()
	require.NoError(t, err)

	require.NoError(t, enc.SetFrameDelay(9, 9))
	enc.SetColor(ColorType_TrueColor)
	require.NoError(t, wr.WriteImageData(make([]byte, 4)))
	require.NoError(t, wr.Finish())

	frames := splitFrames(t, readChunks(t, buf.Bytes()))
	assert.Equal(t, uint16(1), frames[0].fctl.DelayNum)
	assert.Equal(t, uint16(10), frames[0].fctl.DelayDen)
}

func TestWriteChunkPassthrough(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 1, 1, nil)
	require.NoError(t, wr.WriteChunk(ChunkType{'t', 'E', 'X', 't'}, []byte("k\x00v")))
	require.NoError(t, wr.WriteImageData([]byte{7}))
	require.NoError(t, wr.Finish())

	chunks := readChunks(t, buf.Bytes())
	assert.Equal(t, []string{"IHDR", "tEXt", "IDAT", "IEND"}, chunkTypes(chunks))
	assert.Equal(t, []byte("k\x00v"), chunks[1].Data)
}

func TestFinishWritesIENDOnce(t *testing.T) {
	var buf bytes.Buffer
	wr := newGrayWriter(t, &buf, 1, 1, nil)
	require.NoError(t, wr.WriteImageData([]byte{7}))
	require.NoError(t, wr.Finish())
	require.NoError(t, wr.Finish())
	require.NoError(t, wr.Close())

	assert.Equal(t, []string{"IHDR", "IDAT", "IEND"}, chunkTypes(readChunks(t, buf.Bytes())))
}

func TestFinishReportsAndCloseSwallowsSinkErrors(t *testing.T) {
	fw := &failWriter{w: &bytes.Buffer{}}
	enc := NewEncoder(fw, 1, 1)
	wr, err := enc.WriteHeader()
	require.NoError(t, err)
	fw.fail = true

	err = wr.WriteImageData([]byte{1})
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.ErrorIs(t, err, errSink)

	wr2, err := NewEncoder(&failWriter{w: &bytes.Buffer{}, fail: false}, 1, 1).WriteHeader()
	require.NoError(t, err)
	wr2.w.(*failWriter).fail = true
	assert.ErrorIs(t, wr2.Finish(), errSink)

	wr3, err := NewEncoder(&failWriter{w: &bytes.Buffer{}, fail: false}, 1, 1).WriteHeader()
	require.NoError(t, err)
	wr3.w.(*failWriter).fail = true
	assert.NoError(t, wr3.Close())
}

func TestCompressionLevelsDecode(t *testing.T) {
	for _, cl := range []CompressionLevel{DefaultCompression, NoCompression, BestSpeed, BestCompression, HuffmanOnly, RunLength} {
		var buf bytes.Buffer
		wr := newGrayWriter(t, &buf, 8, 8, func(e *Encoder) {
			e.SetCompression(cl)
			e.SetAdaptiveFilter(AdaptiveFilter_Adaptive)
		})
		data := pattern(64, byte(-cl))
		require.NoError(t, wr.WriteImageData(data))
		require.NoError(t, wr.Finish())

		img, err := png.Decode(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, "level %d", cl)
		gray, ok := img.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, data, gray.Pix, "level %d", cl)
	}
}

func TestWriteImageDataAfterSinkError(t *testing.T) {
	var buf bytes.Buffer
	cw := &countdownWriter{w: &buf, n: 1 << 30}
	enc := NewEncoder(cw, 2, 2)
	require.NoError(t, enc.SetAnimated(2, 0))
	wr, err := enc.WriteHeader()
	require.NoError(t, err)
	require.NoError(t, wr.WriteImageData(pattern(4, 1)))

	// The fcTL goes out, the fdAT does not.
	cw.n = 3
	assert.ErrorIs(t, wr.WriteImageData(pattern(4, 2)), errSink)

	cw.n = 1 << 30
	n := buf.Len()
	assert.ErrorIs(t, wr.WriteImageData(pattern(4, 2)), ErrUnrecoverable)
	assert.Equal(t, n, buf.Len(), "no second fcTL may be written")
	require.NoError(t, wr.Finish())
}
