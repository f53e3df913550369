package rcf

import (
	"errors"
	"fmt"
)

// ErrSegmentTooLarge is returned by PlanSegments when a single row of a
// segment already exceeds the byte limit.
var ErrSegmentTooLarge = errors.New("rcf: segment row exceeds the segment size limit")

// PlanSegments splits a rows × cols image of pixelBytes-wide pixels into
// segments no larger than maxSegmentBytes (0 means unlimited). The image is
// cut into row bands; each band is cut into column tiles at most maxCols wide
// (0 means full width). Records come back in row band, then column order with
// DataSize set and DataOff zero.
func PlanSegments(rows, cols, pixelBytes int, maxSegmentBytes int64, maxCols int) ([]SegmentRecord, error) {
	if rows <= 0 || cols <= 0 || pixelBytes <= 0 {
		return nil, fmt.Errorf("rcf: cannot plan segments for %d x %d pixels of %d bytes", rows, cols, pixelBytes)
	}
	tileCols := cols
	if maxCols > 0 && maxCols < cols {
		tileCols = maxCols
	}
	rowBytes := int64(tileCols) * int64(pixelBytes)
	bandRows := rows
	if maxSegmentBytes > 0 {
		if rowBytes > maxSegmentBytes {
			return nil, fmt.Errorf("%w: %d bytes per row, limit %d", ErrSegmentTooLarge, rowBytes, maxSegmentBytes)
		}
		bandRows = int(min(int64(rows), maxSegmentBytes/rowBytes))
	}

	var recs []SegmentRecord
	for r0 := 0; r0 < rows; r0 += bandRows {
		r1 := min(r0+bandRows, rows)
		for c0 := 0; c0 < cols; c0 += tileCols {
			c1 := min(c0+tileCols, cols)
			recs = append(recs, SegmentRecord{
				RowStart: uint64(r0),
				RowEnd:   uint64(r1),
				ColStart: uint64(c0),
				ColEnd:   uint64(c1),
				DataSize: uint64(r1-r0) * uint64(c1-c0) * uint64(pixelBytes),
			})
		}
	}
	return recs, nil
}
