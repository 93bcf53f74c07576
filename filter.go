// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "errors"

// FilterType is the per-scanline filter type, as per the PNG spec.  The
// value is the tag byte written in front of each filtered scanline.
type FilterType uint8

const (
	FilterType_None    = FilterType(0)
	FilterType_Sub     = FilterType(1)
	FilterType_Up      = FilterType(2)
	FilterType_Average = FilterType(3)
	FilterType_Paeth   = FilterType(4)
	nFilter            = 5
)

// FilterTypeFromByte maps a scanline tag byte back to its FilterType.
func FilterTypeFromByte(b byte) (FilterType, bool) {
	if b >= nFilter {
		return 0, false
	}
	return FilterType(b), true
}

// AdaptiveFilterType selects between applying one configured filter to every
// scanline and picking the best filter per scanline.
type AdaptiveFilterType uint8

const (
	AdaptiveFilter_NonAdaptive = AdaptiveFilterType(0)
	AdaptiveFilter_Adaptive    = AdaptiveFilterType(1)
)

// The absolute value of a byte interpreted as a signed int8.
func abs8(d uint8) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// paeth implements the Paeth predictor: a is the byte to the left, b the
// byte above and c the byte above-left.  Ties prefer a, then b.
func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// filterer holds the candidate rows used by adaptive filtering, so that
// consecutive rows of the same width do not allocate.
type filterer struct {
	cr [nFilter][]byte
}

// filter filters cr in place against the previous row pr and returns the
// filter type that was applied.  pr must be at least as long as cr; the first
// row of a frame is filtered against a row of zeros.
//
// In adaptive mode every filter is tried on the unmodified row and the one
// with the smallest sum of absolute signed bytes is kept.  The unfiltered row
// is the baseline, so another filter has to be strictly better to win, and
// among equally good filters the first in the order Sub, Up, Average, Paeth
// wins.
func (f *filterer) filter(method FilterType, adaptive AdaptiveFilterType, bpp BytesPerPixel, pr, cr []byte) FilterType {
	if adaptive != AdaptiveFilter_Adaptive {
		applyFilter(method, int(bpp), pr, cr)
		return method
	}

	n := len(cr)
	for i := range f.cr {
		if cap(f.cr[i]) < n {
			f.cr[i] = make([]byte, n)
		} else {
			f.cr[i] = f.cr[i][:n]
		}
	}

	best := 0
	for _, b := range cr {
		best += abs8(b)
	}
	choice := FilterType_None
	for _, ft := range [...]FilterType{FilterType_Sub, FilterType_Up, FilterType_Average, FilterType_Paeth} {
		if sum := filterInto(ft, int(bpp), pr, cr, f.cr[ft], best); sum < best {
			best = sum
			choice = ft
		}
	}
	if choice != FilterType_None {
		copy(cr, f.cr[choice])
	}
	return choice
}

// filterInto writes cr filtered with ft into dst and returns the score of
// the result.  It stops early once the score reaches limit, leaving dst
// incomplete, since such a candidate can no longer be chosen.
func filterInto(ft FilterType, bpp int, pr, cr, dst []byte, limit int) int {
	n := len(cr)
	sum := 0
	switch ft {
	case FilterType_Sub:
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cr[i]
			sum += abs8(dst[i])
		}
		for i := bpp; i < n; i++ {
			dst[i] = cr[i] - cr[i-bpp]
			sum += abs8(dst[i])
			if sum >= limit {
				break
			}
		}
	case FilterType_Up:
		for i := 0; i < n; i++ {
			dst[i] = cr[i] - pr[i]
			sum += abs8(dst[i])
			if sum >= limit {
				break
			}
		}
	case FilterType_Average:
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cr[i] - pr[i]/2
			sum += abs8(dst[i])
		}
		for i := bpp; i < n; i++ {
			dst[i] = cr[i] - uint8((int(cr[i-bpp])+int(pr[i]))/2)
			sum += abs8(dst[i])
			if sum >= limit {
				break
			}
		}
	case FilterType_Paeth:
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cr[i] - pr[i]
			sum += abs8(dst[i])
		}
		for i := bpp; i < n; i++ {
			dst[i] = cr[i] - paeth(cr[i-bpp], pr[i], pr[i-bpp])
			sum += abs8(dst[i])
			if sum >= limit {
				break
			}
		}
	default:
		copy(dst, cr)
		for _, b := range dst {
			sum += abs8(b)
		}
	}
	return sum
}

// applyFilter filters cr in place.  It walks the row backwards so every
// prediction still sees the unfiltered bytes to its left.
func applyFilter(ft FilterType, bpp int, pr, cr []byte) {
	n := len(cr)
	switch ft {
	case FilterType_Sub:
		for i := n - 1; i >= bpp; i-- {
			cr[i] -= cr[i-bpp]
		}
	case FilterType_Up:
		for i := 0; i < n; i++ {
			cr[i] -= pr[i]
		}
	case FilterType_Average:
		for i := n - 1; i >= bpp; i-- {
			cr[i] -= uint8((int(cr[i-bpp]) + int(pr[i])) / 2)
		}
		for i := 0; i < bpp && i < n; i++ {
			cr[i] -= pr[i] / 2
		}
	case FilterType_Paeth:
		for i := n - 1; i >= bpp; i-- {
			cr[i] -= paeth(cr[i-bpp], pr[i], pr[i-bpp])
		}
		for i := 0; i < bpp && i < n; i++ {
			cr[i] -= pr[i]
		}
	}
}

var (
	errShortPrevious = errors.New("png: filtering failed: not enough data in previous row")
	errBppTooLarge   = errors.New("png: filtering failed: bytes per pixel is greater than length of row")
)

// Unfilter reverses the filter ft on cr in place, given the already
// reconstructed previous row pr.
func Unfilter(ft FilterType, bpp BytesPerPixel, pr, cr []byte) error {
	n := len(cr)
	b := int(bpp)
	switch ft {
	case FilterType_None:
	case FilterType_Sub:
		for i := b; i < n; i++ {
			cr[i] += cr[i-b]
		}
	case FilterType_Up:
		if len(pr) < n {
			return errShortPrevious
		}
		for i := 0; i < n; i++ {
			cr[i] += pr[i]
		}
	case FilterType_Average:
		if len(pr) < n {
			return errShortPrevious
		}
		if b > n {
			return errBppTooLarge
		}
		for i := 0; i < b; i++ {
			cr[i] += pr[i] / 2
		}
		for i := b; i < n; i++ {
			cr[i] += uint8((int(cr[i-b]) + int(pr[i])) / 2)
		}
	case FilterType_Paeth:
		if len(pr) < n {
			return errShortPrevious
		}
		if b > n {
			return errBppTooLarge
		}
		for i := 0; i < b; i++ {
			cr[i] += paeth(0, pr[i], 0)
		}
		for i := b; i < n; i++ {
			cr[i] += paeth(cr[i-b], pr[i], pr[i-b])
		}
	default:
		return errors.New("png: unknown filter type")
	}
	return nil
}
