// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"errors"
	"fmt"
)

// An IOError reports a failure of the underlying sink. The sink's error is
// returned unchanged by Unwrap.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// wrapIO wraps err as an *IOError unless it already is one (or one of this
// package's own errors surfacing through the compressor).
func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	var fe *FormatError
	if errors.As(err, &ioe) || errors.As(err, &fe) {
		return err
	}
	return &IOError{Err: err}
}

type formatErrorKind uint8

const (
	fkZeroWidth formatErrorKind = iota + 1
	fkZeroHeight
	fkZeroFrames
	fkInvalidColorCombination
	fkNoPalette
	fkWrittenTooMuch
	fkNotAnimated
	fkOutOfBounds
	fkEndReached
	fkMissingFrames
	fkMissingData
	fkUnrecoverable
)

// A FormatError reports a protocol or state violation: the image parameters,
// the frame layout or the order of calls would not produce a valid PNG.
//
// FormatErrors of the same kind compare equal under errors.Is, so callers can
// match on the Err* values below regardless of payload.
type FormatError struct {
	kind formatErrorKind

	// BitDepth and ColorType are set for an invalid combination.
	BitDepth  BitDepth
	ColorType ColorType

	// Bytes is set for WrittenTooMuch and MissingData.
	Bytes int
}

func (e *FormatError) Error() string {
	switch e.kind {
	case fkZeroWidth:
		return "png: zero width not allowed"
	case fkZeroHeight:
		return "png: zero height not allowed"
	case fkZeroFrames:
		return "png: zero frames not allowed"
	case fkInvalidColorCombination:
		return fmt.Sprintf("png: invalid combination of bit depth %d and color type %d", e.BitDepth, e.ColorType)
	case fkNoPalette:
		return "png: can't write indexed image without palette"
	case fkWrittenTooMuch:
		return fmt.Sprintf("png: wrong data size, got %d bytes too many", e.Bytes)
	case fkNotAnimated:
		return "png: not an animation"
	case fkOutOfBounds:
		return "png: the dimension and position go over the frame boundaries"
	case fkEndReached:
		return "png: all the frames have been already written"
	case fkMissingFrames:
		return "png: there are still frames to be written"
	case fkMissingData:
		return fmt.Sprintf("png: there are still %d bytes to be written", e.Bytes)
	case fkUnrecoverable:
		return "png: a previous error put the writer into an unrecoverable state"
	}
	return "png: invalid format"
}

func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.kind == e.kind
}

var (
	ErrZeroWidth               = &FormatError{kind: fkZeroWidth}
	ErrZeroHeight              = &FormatError{kind: fkZeroHeight}
	ErrZeroFrames              = &FormatError{kind: fkZeroFrames}
	ErrInvalidColorCombination = &FormatError{kind: fkInvalidColorCombination}
	ErrNoPalette               = &FormatError{kind: fkNoPalette}
	ErrWrittenTooMuch          = &FormatError{kind: fkWrittenTooMuch}
	ErrNotAnimated             = &FormatError{kind: fkNotAnimated}
	ErrOutOfBounds             = &FormatError{kind: fkOutOfBounds}
	ErrEndReached              = &FormatError{kind: fkEndReached}
	ErrMissingFrames           = &FormatError{kind: fkMissingFrames}
	ErrMissingData             = &FormatError{kind: fkMissingData}
	ErrUnrecoverable           = &FormatError{kind: fkUnrecoverable}
)

// A ParameterError reports a caller-supplied image buffer of the wrong size.
type ParameterError struct {
	Expected int
	Actual   int
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("png: wrong data size, expected %d got %d", e.Expected, e.Actual)
}

var (
	// ErrChunkTooLarge is returned when a chunk payload does not fit the
	// 31-bit length field.
	ErrChunkTooLarge = errors.New("png: chunk is too large")

	// ErrEncoderUsed is returned by a second call to Encoder.WriteHeader.
	ErrEncoderUsed = errors.New("png: encoder already used")
)
