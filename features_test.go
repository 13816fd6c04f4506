package rollcall

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// halfWindow returns a size×size window whose left half is dark and right half bright.
func halfWindow(size int, dark, bright uint8) []uint8 {
	px := make([]uint8, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < size/2 {
				px[y*size+x] = dark
			} else {
				px[y*size+x] = bright
			}
		}
	}
	return px
}

func TestFeatures_TwoRectangleEdge(t *testing.T) {
	templates := []FeatureTemplate{
		{ID: "edge", Rects: []Rect{{0, 0, 12, 24, 1}, {12, 0, 12, 24, -1}}},
		{ID: "full", Rects: []Rect{{0, 0, 24, 24, 1}}},
	}
	fe := NewFeatureExtractor(24, templates)

	vec, err := fe.Extract(halfWindow(24, 10, 200))
	require.NoError(t, err)
	require.Len(t, vec, 2)

	assert.Equal(t, float64(12*24*10-12*24*200), vec[0])
	assert.Equal(t, float64(12*24*10+12*24*200), vec[1])
}

func TestFeatures_ExtractIntoReusesBuffer(t *testing.T) {
	fe := NewFeatureExtractor(4, []FeatureTemplate{{Rects: []Rect{{0, 0, 4, 4, 0.5}}}})
	buf := make([]float64, 0, 8)

	vec, err := fe.ExtractInto(buf, make([]uint8, 16))
	require.NoError(t, err)
	assert.Len(t, vec, 1)
	assert.Equal(t, 8, cap(vec))
}

func TestFeatures_Errors(t *testing.T) {
	_, err := NewFeatureExtractor(24, nil).Extract(make([]uint8, 24*24))
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	fe := NewFeatureExtractor(24, []FeatureTemplate{{Rects: []Rect{{20, 20, 8, 8, 1}}}})
	_, err = fe.Extract(make([]uint8, 24*24))
	assert.True(t, errors.Is(err, ErrRectOutOfBounds))

	_, err = fe.Extract(make([]uint8, 10))
	assert.Error(t, err)
}

func TestFeatures_RectYAML(t *testing.T) {
	var tpl FeatureTemplate
	src := `
id: f1
rects:
  - [0, 0, 12, 24, 1]
  - {x: 12, y: 0, w: 12, h: 24, weight: -1}
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &tpl))
	assert.Equal(t, "f1", tpl.ID)
	assert.Equal(t, []Rect{{0, 0, 12, 24, 1}, {12, 0, 12, 24, -1}}, tpl.Rects)

	err := yaml.Unmarshal([]byte("rects: [[1, 2, 3]]"), &tpl)
	assert.True(t, errors.Is(err, ErrInvalidModel))
}
