// Package bip reads and writes band-interleaved-by-pixel (BIP) raster data
// embedded in larger container files.
//
// A segment is a flat run of rows*cols*bands samples starting at a byte offset.
// Chipper serves arbitrary strided sub-arrays of one segment under a declared
// symmetry, MultiSegmentChipper stitches several segments into one logical image,
// and Writer (MultiSegmentWriter) is the write-side counterpart.
//
// Segments are memory-mapped when possible. When mapping is unavailable the
// accessor keeps a file handle and falls back to one seek and one read per
// physical row; both paths produce identical results.
package bip
