package rollcall

import "fmt"

// IntegralImage is a summed-area table built over a grayscale region.
// The table has one extra leading row and column of zeros, so that
// the sum of any rectangle is obtained with four lookups.
type IntegralImage struct {
	width  int // columns of the source region
	height int // rows of the source region
	table  []int64
}

// NewIntegralImage computes the summed-area table of a row-major grayscale buffer.
func NewIntegralImage(pixels []uint8, cols, rows int) *IntegralImage {
	stride := cols + 1
	ii := &IntegralImage{
		width:  cols,
		height: rows,
		table:  make([]int64, (rows+1)*stride),
	}

	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			ii.table[r*stride+c] = int64(pixels[(r-1)*cols+(c-1)]) +
				ii.table[(r-1)*stride+c] +
				ii.table[r*stride+c-1] -
				ii.table[(r-1)*stride+c-1]
		}
	}
	return ii
}

// At returns the table value S[r, c].
func (ii *IntegralImage) At(r, c int) int64 {
	return ii.table[r*(ii.width+1)+c]
}

// RectSum returns the sum of the pixels inside [y, y+h) × [x, x+w).
func (ii *IntegralImage) RectSum(x, y, w, h int) (int64, error) {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > ii.width || y+h > ii.height {
		return 0, fmt.Errorf("%w: (%d,%d %dx%d) in %dx%d", ErrRectOutOfBounds, x, y, w, h, ii.width, ii.height)
	}
	return ii.At(y, x) - ii.At(y, x+w) - ii.At(y+h, x) + ii.At(y+h, x+w), nil
}
