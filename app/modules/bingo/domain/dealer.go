package bingodomain

import (
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
)

// Dealer produces random cards. It is not safe for concurrent use.
type Dealer struct {
	rng *rand.Rand
}

func NewDealer(rng *rand.Rand) *Dealer {
	if rng == nil {
		rng = NewRandom()
	}
	return &Dealer{rng: rng}
}

// Deal returns a fresh unmarked card for mode.
func (d *Dealer) Deal(mode Mode) Card {
	card := Card{ID: d.newID(), Marked: []Position{}}
	if mode == Mode90 {
		card.Grid = d.grid90()
	} else {
		card.Grid = d.grid75()
	}
	return card
}

func (d *Dealer) newID() uuid.UUID {
	var b [16]byte
	for i := range b {
		b[i] = byte(d.rng.Uint32())
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

// grid75 draws five distinct numbers per column from its 15-number band.
func (d *Dealer) grid75() [][]Cell {
	grid := make([][]Cell, 5)
	for r := range grid {
		grid[r] = make([]Cell, 5)
	}
	for col := 0; col < 5; col++ {
		base := col*15 + 1
		perm := d.rng.Perm(15)
		for row := 0; row < 5; row++ {
			grid[row][col] = Cell(base + perm[row])
		}
	}
	grid[2][2] = Free
	return grid
}

func column90Range(col int) (lo, hi int) {
	switch col {
	case 0:
		return 1, 9
	case 8:
		return 80, 90
	default:
		return col * 10, col*10 + 9
	}
}

// grid90 lays out 15 numbers in 3 rows of 5 with every column used at least
// once and numbers ascending down each column.
func (d *Dealer) grid90() [][]Cell {
	// Column counts: one each, then six extra spread so no column exceeds 3.
	counts := make([]int, 9)
	for i := range counts {
		counts[i] = 1
	}
	for extra := 0; extra < 6; {
		c := d.rng.IntN(9)
		if counts[c] < 3 {
			counts[c]++
			extra++
		}
	}

	for {
		if layout, ok := d.layout90(counts); ok {
			return d.fill90(layout)
		}
	}
}

// layout90 assigns each column's cells to rows so every row gets five.
func (d *Dealer) layout90(counts []int) ([3][9]bool, bool) {
	var layout [3][9]bool
	rowFill := [3]int{}

	order := make([]int, 9)
	for i := range order {
		order[i] = i
	}
	// Place the fullest columns first.
	slices.SortStableFunc(order, func(a, b int) int { return counts[b] - counts[a] })

	for _, col := range order {
		rows := []int{0, 1, 2}
		d.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		slices.SortStableFunc(rows, func(a, b int) int { return rowFill[a] - rowFill[b] })
		placed := 0
		for _, r := range rows {
			if placed == counts[col] {
				break
			}
			if rowFill[r] < 5 {
				layout[r][col] = true
				rowFill[r]++
				placed++
			}
		}
		if placed != counts[col] {
			return layout, false
		}
	}
	return layout, rowFill == [3]int{5, 5, 5}
}

func (d *Dealer) fill90(layout [3][9]bool) [][]Cell {
	grid := make([][]Cell, 3)
	for r := range grid {
		grid[r] = make([]Cell, 9)
	}
	for col := 0; col < 9; col++ {
		lo, hi := column90Range(col)
		var rows []int
		for r := 0; r < 3; r++ {
			if layout[r][col] {
				rows = append(rows, r)
			}
		}
		perm := d.rng.Perm(hi - lo + 1)[:len(rows)]
		slices.Sort(perm)
		for i, r := range rows {
			grid[r][col] = Cell(lo + perm[i])
		}
	}
	return grid
}
