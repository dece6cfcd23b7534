package bingodomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// card75 builds a valid 75-ball card with cell (r,c) = c*15+r+1.
func card75() *Card {
	grid := make([][]Cell, 5)
	for r := range grid {
		grid[r] = make([]Cell, 5)
		for c := range grid[r] {
			grid[r][c] = Cell(c*15 + r + 1)
		}
	}
	grid[2][2] = Free
	return &Card{Grid: grid, Marked: []Position{}}
}

func markAll(card *Card, except ...Position) {
	skip := map[Position]bool{}
	for _, p := range except {
		skip[p] = true
	}
	for r, row := range card.Grid {
		for c, cell := range row {
			p := Position{Row: r, Col: c}
			if cell.IsNumber() && !skip[p] {
				card.Mark(p)
			}
		}
	}
}

func card90() *Card {
	layout := [3][9]bool{
		{true, false, true, false, true, false, true, false, true},
		{false, true, false, true, false, true, false, true, true},
		{true, true, true, true, true, false, false, false, false},
	}
	grid := make([][]Cell, 3)
	for r := range grid {
		grid[r] = make([]Cell, 9)
		for c := range grid[r] {
			if layout[r][c] {
				lo, _ := column90Range(c)
				grid[r][c] = Cell(lo + r)
			}
		}
	}
	return &Card{Grid: grid, Marked: []Position{}}
}

func TestCheckPatternComplete_Line75(t *testing.T) {
	tests := []struct {
		name  string
		marks []Position
		want  bool
	}{
		{
			name:  "top row",
			marks: []Position{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}},
			want:  true,
		},
		{
			name:  "middle row uses FREE",
			marks: []Position{{2, 0}, {2, 1}, {2, 3}, {2, 4}},
			want:  true,
		},
		{
			name:  "column",
			marks: []Position{{0, 3}, {1, 3}, {2, 3}, {3, 3}, {4, 3}},
			want:  true,
		},
		{
			name:  "main diagonal",
			marks: []Position{{0, 0}, {1, 1}, {3, 3}, {4, 4}},
			want:  true,
		},
		{
			name:  "anti diagonal",
			marks: []Position{{0, 4}, {1, 3}, {3, 1}, {4, 0}},
			want:  true,
		},
		{
			name:  "four of a row",
			marks: []Position{{0, 0}, {0, 1}, {0, 2}, {0, 3}},
			want:  false,
		},
		{
			name: "nothing marked",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := card75()
			for _, p := range tt.marks {
				card.Mark(p)
			}
			assert.Equal(t, tt.want, CheckPatternComplete(card, PatternLine, Mode75))
		})
	}
}

func TestCheckPatternComplete_LineMissingOneCellEverywhere(t *testing.T) {
	card := card75()
	// One gap per row and column, also hitting both diagonals.
	markAll(card, Position{0, 0}, Position{1, 3}, Position{2, 1}, Position{3, 4}, Position{4, 2})

	assert.False(t, CheckPatternComplete(card, PatternLine, Mode75))
}

func TestCheckPatternComplete_FullCard75(t *testing.T) {
	card := card75()
	markAll(card, Position{4, 4})
	assert.Len(t, card.Marked, 23)
	assert.False(t, CheckPatternComplete(card, PatternFullCard, Mode75))

	card.Mark(Position{4, 4})
	assert.True(t, CheckPatternComplete(card, PatternFullCard, Mode75))
}

func TestCheckPatternComplete_Corners75(t *testing.T) {
	corners := []Position{{0, 0}, {0, 4}, {4, 0}, {4, 4}}
	for skip := range corners {
		card := card75()
		// Everything except one corner.
		markAll(card, corners[skip])
		assert.False(t, CheckPatternComplete(card, PatternCorners, Mode75), "missing %v", corners[skip])
	}

	card := card75()
	for _, p := range corners {
		card.Mark(p)
	}
	assert.True(t, CheckPatternComplete(card, PatternCorners, Mode75))
}

func TestCheckPatternComplete_RowWithFreeExample(t *testing.T) {
	card := card75()
	card.Grid[2] = []Cell{5, 12, Free, 34, 41}

	for _, n := range []int{5, 12, 34, 41} {
		pos, ok := card.Find(n)
		assert.True(t, ok)
		card.Mark(pos)
	}

	assert.True(t, CheckPatternComplete(card, PatternLine, Mode75))
}

func TestCheckPatternComplete_90Ball(t *testing.T) {
	t.Run("line needs five in one row", func(t *testing.T) {
		card := card90()
		for c, cell := range card.Grid[1] {
			if cell.IsNumber() {
				card.Mark(Position{Row: 1, Col: c})
			}
		}
		assert.True(t, CheckPatternComplete(card, PatternLine, Mode90))
		assert.False(t, CheckPatternComplete(card, PatternFullCard, Mode90))
	})

	t.Run("marks spread over rows are not a line", func(t *testing.T) {
		card := card90()
		card.Mark(Position{0, 0})
		card.Mark(Position{0, 2})
		card.Mark(Position{1, 1})
		card.Mark(Position{1, 3})
		card.Mark(Position{2, 4})
		assert.False(t, CheckPatternComplete(card, PatternLine, Mode90))
	})

	t.Run("fullcard", func(t *testing.T) {
		card := card90()
		markAll(card)
		assert.True(t, CheckPatternComplete(card, PatternFullCard, Mode90))
	})

	t.Run("corners are first and last numbers of outer rows", func(t *testing.T) {
		card := card90()
		card.Mark(Position{0, 0})
		card.Mark(Position{0, 8})
		card.Mark(Position{2, 0})
		assert.False(t, CheckPatternComplete(card, PatternCorners, Mode90))
		card.Mark(Position{2, 4})
		assert.True(t, CheckPatternComplete(card, PatternCorners, Mode90))
	})
}

func TestCheckPatternComplete_Malformed(t *testing.T) {
	short := card75()
	short.Grid = short.Grid[:4]

	noFree := card75()
	noFree.Grid[2][2] = 33

	ragged := card90()
	ragged.Grid[0] = ragged.Grid[0][:8]

	tests := []struct {
		name    string
		card    *Card
		pattern PatternType
		mode    Mode
	}{
		{name: "nil card", card: nil, pattern: PatternLine, mode: Mode75},
		{name: "missing row", card: short, pattern: PatternLine, mode: Mode75},
		{name: "centre not free", card: noFree, pattern: PatternCorners, mode: Mode75},
		{name: "ragged 90", card: ragged, pattern: PatternLine, mode: Mode90},
		{name: "75 card in 90 mode", card: card75(), pattern: PatternLine, mode: Mode90},
		{name: "unknown pattern", card: card75(), pattern: "diamond", mode: Mode75},
		{name: "unknown mode", card: card75(), pattern: PatternLine, mode: 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.card != nil {
				markAll(tt.card)
			}
			assert.NotPanics(t, func() {
				assert.False(t, CheckPatternComplete(tt.card, tt.pattern, tt.mode))
			})
		})
	}
}
