// Package apng is used to do low-level PNG and APNG encoding of raw pixel
// data.  An Encoder describes the image; its Writer takes whole frames at a
// time, while a StreamWriter takes the same bytes in pieces of any size, for
// images that do not fit in memory.  Scanlines are filtered (optionally
// choosing the filter per scanline), deflate-compressed and framed into
// IDAT, fcTL and fdAT chunks with the sequence numbers APNG requires.
//
// Encode and EncodeAll cover the common case of writing an image.Image or a
// sequence of them.
//
// For encoding details, see:
//
// https://en.wikipedia.org/wiki/APNG#Technical_details
// https://wiki.mozilla.org/APNG_Specification
// https://www.w3.org/TR/PNG/
package apng
