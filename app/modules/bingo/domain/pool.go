package bingodomain

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// DrawPool hands out each number of a mode's range once per round.
type DrawPool struct {
	mode      Mode
	rng       *rand.Rand
	drawn     []int
	remaining []int
}

func NewDrawPool(mode Mode, rng *rand.Rand) *DrawPool {
	if rng == nil {
		rng = NewRandom()
	}
	p := &DrawPool{mode: mode, rng: rng}
	p.Reset()
	return p
}

// RestoreDrawPool rebuilds a pool from a persisted history, preserving order.
func RestoreDrawPool(mode Mode, drawn []int, rng *rand.Rand) (*DrawPool, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	p := NewDrawPool(mode, rng)
	seen := make(map[int]bool, len(drawn))
	for _, n := range drawn {
		if n < 1 || n > mode.PoolSize() {
			return nil, fmt.Errorf("drawn number %d outside 1..%d", n, mode.PoolSize())
		}
		if seen[n] {
			return nil, fmt.Errorf("drawn number %d repeated", n)
		}
		seen[n] = true
	}
	p.drawn = slices.Clone(drawn)
	p.remaining = p.remaining[:0]
	for n := 1; n <= mode.PoolSize(); n++ {
		if !seen[n] {
			p.remaining = append(p.remaining, n)
		}
	}
	return p, nil
}

// Next draws a uniformly random undrawn number.
func (p *DrawPool) Next() (int, error) {
	if len(p.remaining) == 0 {
		return 0, ErrPoolExhausted
	}
	i := p.rng.IntN(len(p.remaining))
	n := p.remaining[i]
	last := len(p.remaining) - 1
	p.remaining[i] = p.remaining[last]
	p.remaining = p.remaining[:last]
	p.drawn = append(p.drawn, n)
	return n, nil
}

// Reset refills the pool for a new round.
func (p *DrawPool) Reset() {
	p.drawn = []int{}
	p.remaining = make([]int, 0, p.mode.PoolSize())
	for n := 1; n <= p.mode.PoolSize(); n++ {
		p.remaining = append(p.remaining, n)
	}
}

// Drawn returns the history in draw order.
func (p *DrawPool) Drawn() []int { return slices.Clone(p.drawn) }

func (p *DrawPool) Remaining() int { return len(p.remaining) }

func (p *DrawPool) IsDrawn(n int) bool { return slices.Contains(p.drawn, n) }

func (p *DrawPool) Last() (int, bool) {
	if len(p.drawn) == 0 {
		return 0, false
	}
	return p.drawn[len(p.drawn)-1], true
}
