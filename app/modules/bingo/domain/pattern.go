package bingodomain

// CheckPatternComplete reports whether card's marks complete pattern under
// mode. Malformed cards and unknown modes or patterns never complete.
func CheckPatternComplete(card *Card, pattern PatternType, mode Mode) bool {
	if card == nil || !pattern.Valid() || !wellFormed(card.Grid, mode) {
		return false
	}

	marks := make(map[Position]struct{}, len(card.Marked))
	for _, p := range card.Marked {
		marks[p] = struct{}{}
	}
	marked := func(r, c int) bool {
		cell := card.Grid[r][c]
		if cell == Free {
			return true
		}
		if !cell.IsNumber() {
			return false
		}
		_, ok := marks[Position{Row: r, Col: c}]
		return ok
	}

	if mode == Mode90 {
		return check90(card.Grid, pattern, marked)
	}
	return check75(pattern, marked)
}

func check75(pattern PatternType, marked func(r, c int) bool) bool {
	const n = 5
	switch pattern {
	case PatternLine:
		for i := 0; i < n; i++ {
			row, col := true, true
			for j := 0; j < n; j++ {
				row = row && marked(i, j)
				col = col && marked(j, i)
			}
			if row || col {
				return true
			}
		}
		diag, anti := true, true
		for i := 0; i < n; i++ {
			diag = diag && marked(i, i)
			anti = anti && marked(i, n-1-i)
		}
		return diag || anti
	case PatternCorners:
		return marked(0, 0) && marked(0, n-1) && marked(n-1, 0) && marked(n-1, n-1)
	case PatternFullCard:
		count := 0
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				if (r != 2 || c != 2) && marked(r, c) {
					count++
				}
			}
		}
		return count >= 24
	}
	return false
}

func check90(grid [][]Cell, pattern PatternType, marked func(r, c int) bool) bool {
	rowMarks := func(r int) int {
		count := 0
		for c := range grid[r] {
			if grid[r][c].IsNumber() && marked(r, c) {
				count++
			}
		}
		return count
	}

	switch pattern {
	case PatternLine:
		for r := range grid {
			if rowMarks(r) >= 5 {
				return true
			}
		}
		return false
	case PatternFullCard:
		total := 0
		for r := range grid {
			total += rowMarks(r)
		}
		return total >= 15
	case PatternCorners:
		for _, r := range []int{0, len(grid) - 1} {
			first, last := -1, -1
			for c, cell := range grid[r] {
				if cell.IsNumber() {
					if first < 0 {
						first = c
					}
					last = c
				}
			}
			if first < 0 || !marked(r, first) || !marked(r, last) {
				return false
			}
		}
		return true
	}
	return false
}
