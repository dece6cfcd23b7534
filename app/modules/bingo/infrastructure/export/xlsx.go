package bingoexport

import (
	"fmt"
	"io"
	"time"

	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/xuri/excelize/v2"
)

const roundsSheet = "Rounds"

var roundsHeader = []any{
	"Room", "Round", "Mode", "Pattern", "Host", "Winner", "Winner Name", "Card",
	"Exhausted", "Drawn", "Pot", "Currency", "Winner Prize", "Host Prize", "Platform Prize",
	"Settled", "Finished At",
}

// WriteRounds renders finished rounds as a single-sheet workbook.
func WriteRounds(w io.Writer, rounds []bingodb.RoundResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), roundsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(roundsSheet, "A1", &roundsHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rounds {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := roundRow(r)
		if err := f.SetSheetRow(roundsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write round %s/%d: %w", r.RoomCode, r.Round, err)
		}
	}

	if err := f.SetPanes(roundsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func roundRow(r bingodb.RoundResult) []any {
	card := ""
	if r.CardID != nil {
		card = r.CardID.String()
	}
	return []any{
		r.RoomCode, r.Round, r.Mode, r.PatternType, r.HostID, r.WinnerID, r.WinnerName, card,
		r.Exhausted, r.DrawnCount, r.Pot, r.CurrencyType, r.PrizeWinner, r.PrizeHost, r.PrizePlatform,
		r.Settled, r.FinishedAt.UTC().Format(time.RFC3339),
	}
}
