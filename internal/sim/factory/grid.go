package factory

import "fmt"

// Grid is a fixed width x height array of cells stored row-major (y, then x).
type Grid struct {
	Width, Height int
	cells         []*Cell
}

func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad grid size %dx%d", width, height)
	}
	g := &Grid{Width: width, Height: height, cells: make([]*Cell, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.cells[y*width+x] = &Cell{X: x, Y: y, Machine: &Blank{}}
		}
	}
	return g, nil
}

func (g *Grid) InBounds(x, y int) bool {
	return g != nil && x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

func (g *Grid) At(x, y int) *Cell {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.cells[y*g.Width+x]
}

// Cells returns every cell in scan order (row-major from y=0).
func (g *Grid) Cells() []*Cell {
	if g == nil {
		return nil
	}
	return g.cells
}

// Locate finds where an item is held: in some cell's items, or in some cell's waiting queue.
func (g *Grid) Locate(id string) (*Cell, bool) {
	for _, cell := range g.Cells() {
		if it, _ := cell.FindItem(id); it != nil {
			return cell, false
		}
		if it, _ := cell.FindWaiting(id); it != nil {
			return cell, true
		}
	}
	return nil, false
}

// ItemCount counts items held anywhere in the grid.
func (g *Grid) ItemCount() int {
	n := 0
	for _, c := range g.Cells() {
		n += len(c.Items) + len(c.WaitingItems)
	}
	return n
}
