package bingodomain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cell is one square of a card grid. Positive values are numbers, Blank is an
// empty 90-ball square and Free is the 75-ball centre.
type Cell int

const (
	Blank Cell = 0
	Free  Cell = -1
)

const freeLabel = "FREE"

func (c Cell) IsNumber() bool { return c > 0 }

func (c Cell) MarshalJSON() ([]byte, error) {
	switch {
	case c == Free:
		return json.Marshal(freeLabel)
	case c == Blank:
		return []byte("null"), nil
	case c > 0:
		return json.Marshal(int(c))
	}
	return nil, fmt.Errorf("invalid cell value %d", int(c))
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Blank
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != freeLabel {
			return fmt.Errorf("invalid cell label %q", s)
		}
		*c = Free
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid cell: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("invalid cell number %d", n)
	}
	*c = Cell(n)
	return nil
}
