package bingodomain

import (
	"fmt"
	"math/rand/v2"
)

// PrizeSplit is how a finished pot is divided. Platform absorbs rounding.
type PrizeSplit struct {
	Winner   int64 `json:"winner"`
	Host     int64 `json:"host"`
	Platform int64 `json:"platform"`
}

func SplitPot(pot int64) PrizeSplit {
	if pot <= 0 {
		return PrizeSplit{}
	}
	winner := pot * 70 / 100
	host := pot * 20 / 100
	return PrizeSplit{Winner: winner, Host: host, Platform: pot - winner - host}
}

// GenerateRoomCode returns a six digit numeric code.
func GenerateRoomCode(rng *rand.Rand) string {
	return fmt.Sprintf("%06d", rng.IntN(1_000_000))
}

func ValidRoomCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
