package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupPages(t *testing.T) {
	pages := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name string
		grid Grid
		want [][]int
	}{
		{"skip first page", Grid{Columns: 2, Rows: 2, SkipFirstPage: true}, [][]int{{1}, {2, 3, 4, 5}}},
		{"partial final group", Grid{Columns: 2, Rows: 2}, [][]int{{1, 2, 3, 4}, {5}}},
		{"single page mode", Grid{Columns: 1, Rows: 1}, [][]int{{1}, {2}, {3}, {4}, {5}}},
		{"single page mode ignores skip", Grid{Columns: 1, Rows: 1, SkipFirstPage: true}, [][]int{{1}, {2}, {3}, {4}, {5}}},
		{"wide grid", Grid{Columns: 3, Rows: 1}, [][]int{{1, 2, 3}, {4, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupPages(pages, tt.grid))
		})
	}
}

func TestGroupPagesEmpty(t *testing.T) {
	assert.Empty(t, GroupPages(nil, Grid{Columns: 2, Rows: 2, SkipFirstPage: true}))
}

func TestGridGeometryCentersPages(t *testing.T) {
	sizes := []Size{
		{W: 100, H: 200}, // portrait
		{W: 200, H: 100}, // landscape
		{W: 50, H: 50},
	}
	geo := GridGeometry(sizes, Grid{Columns: 2, Rows: 2})

	assert.Equal(t, Size{W: 200, H: 200}, geo.Cell)
	assert.Equal(t, Size{W: 400, H: 400}, geo.Canvas)
	require.Len(t, geo.Placements, 3)

	assert.Equal(t, Placement{X: 50, Y: 0, W: 100, H: 200}, geo.Placements[0])
	assert.Equal(t, Placement{X: 200, Y: 50, W: 200, H: 100}, geo.Placements[1])
	// row 1, column 0
	assert.Equal(t, Placement{X: 75, Y: 275, W: 50, H: 50}, geo.Placements[2])
}

func TestGridGeometryPerGroupCells(t *testing.T) {
	small := GridGeometry([]Size{{W: 10, H: 10}, {W: 10, H: 10}}, Grid{Columns: 2, Rows: 1})
	big := GridGeometry([]Size{{W: 600, H: 800}}, Grid{Columns: 2, Rows: 1})

	assert.Equal(t, Size{W: 20, H: 10}, small.Canvas)
	assert.Equal(t, Size{W: 1200, H: 800}, big.Canvas)
}
