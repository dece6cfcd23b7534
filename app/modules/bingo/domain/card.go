package bingodomain

import (
	"slices"

	"github.com/google/uuid"
)

// Card is a dealt bingo card. Grid never changes after dealing; Marked only
// grows during a round.
type Card struct {
	ID     uuid.UUID  `json:"id"`
	Grid   [][]Cell   `json:"grid"`
	Marked []Position `json:"marked_positions"`
}

func (c *Card) IsMarked(p Position) bool {
	return slices.Contains(c.Marked, p)
}

// Find returns the position holding number, if the card has it.
func (c *Card) Find(number int) (Position, bool) {
	if number <= 0 {
		return Position{}, false
	}
	for r, row := range c.Grid {
		for col, cell := range row {
			if int(cell) == number {
				return Position{Row: r, Col: col}, true
			}
		}
	}
	return Position{}, false
}

// Mark records p as daubed. It reports false when p was already marked.
func (c *Card) Mark(p Position) bool {
	if c.IsMarked(p) {
		return false
	}
	c.Marked = append(c.Marked, p)
	return true
}

// Clone returns a deep copy safe to hand outside the owning room.
func (c Card) Clone() Card {
	out := Card{ID: c.ID, Marked: slices.Clone(c.Marked)}
	if c.Marked == nil {
		out.Marked = []Position{}
	}
	out.Grid = make([][]Cell, len(c.Grid))
	for i, row := range c.Grid {
		out.Grid[i] = slices.Clone(row)
	}
	return out
}

// wellFormed checks the grid shape for mode.
func wellFormed(grid [][]Cell, mode Mode) bool {
	if !mode.Valid() || len(grid) != mode.Rows() {
		return false
	}
	for r, row := range grid {
		if len(row) != mode.Cols() {
			return false
		}
		numbers := 0
		for c, cell := range row {
			switch mode {
			case Mode75:
				if r == 2 && c == 2 {
					if cell != Free {
						return false
					}
					continue
				}
				if !cell.IsNumber() || int(cell) > 75 {
					return false
				}
			case Mode90:
				if cell == Free || int(cell) > 90 {
					return false
				}
				if cell.IsNumber() {
					numbers++
				}
			}
		}
		if mode == Mode90 && numbers != 5 {
			return false
		}
	}
	return true
}
