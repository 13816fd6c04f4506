package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMath_MinMax(t *testing.T) {
	assert.Equal(t, 2, Min(2, 5))
	assert.Equal(t, 2, Min(5, 2))
	assert.Equal(t, 5, Max(2, 5))
}

func TestMath_Clamp(t *testing.T) {
	testCases := []struct {
		x, lo, hi, want int
	}{
		{x: -4, lo: 0, hi: 10, want: 0},
		{x: 4, lo: 0, hi: 10, want: 4},
		{x: 14, lo: 0, hi: 10, want: 10},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Clamp(tc.x, tc.lo, tc.hi))
	}
}

func TestMath_Round(t *testing.T) {
	assert.Equal(t, 66.67, Round(200.0/3.0, 2))
	assert.Equal(t, 50.0, Round(50, 2))
}
