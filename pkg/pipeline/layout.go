package pipeline

// Grid packs several pages onto one output surface
type Grid struct {
	Columns       int
	Rows          int
	SkipFirstPage bool
}

// Cells is the number of pages one surface holds
func (g Grid) Cells() int {
	return g.Columns * g.Rows
}

// Single reports whether the grid degenerates to one page per output
func (g Grid) Single() bool {
	return g.Cells() <= 1
}

// GroupPages batches pages into ordered groups of g.Cells(). With
// SkipFirstPage the first page forms its own group before batching the rest.
func GroupPages(pages []int, g Grid) [][]int {
	size := max(g.Cells(), 1)
	groups := make([][]int, 0, len(pages)/size+2)

	rest := pages
	if g.SkipFirstPage && len(rest) > 0 && size > 1 {
		groups = append(groups, []int{rest[0]})
		rest = rest[1:]
	}

	for len(rest) > 0 {
		n := min(size, len(rest))
		group := make([]int, n)
		copy(group, rest[:n])
		groups = append(groups, group)
		rest = rest[n:]
	}
	return groups
}

// Size is a width and height in points or pixels
type Size struct {
	W, H float64
}

// Placement is the top-left corner and size of one page on a grid canvas
type Placement struct {
	X, Y, W, H float64
}

// Geometry describes one composed surface
type Geometry struct {
	Cell       Size
	Canvas     Size
	Placements []Placement
}

// GridGeometry sizes the cells of one group to the largest page width and
// height in that group and centres every page in its cell, row-major.
// Cells beyond len(sizes) stay empty.
func GridGeometry(sizes []Size, g Grid) Geometry {
	cols := max(g.Columns, 1)
	rows := max(g.Rows, 1)

	var cell Size
	for _, s := range sizes {
		cell.W = max(cell.W, s.W)
		cell.H = max(cell.H, s.H)
	}

	geo := Geometry{
		Cell:       cell,
		Canvas:     Size{W: cell.W * float64(cols), H: cell.H * float64(rows)},
		Placements: make([]Placement, len(sizes)),
	}
	for i, s := range sizes {
		col := i % cols
		row := i / cols
		geo.Placements[i] = Placement{
			X: float64(col)*cell.W + (cell.W-s.W)/2,
			Y: float64(row)*cell.H + (cell.H-s.H)/2,
			W: s.W,
			H: s.H,
		}
	}
	return geo
}
