package bingoexport

import (
	"bytes"
	"testing"
	"time"

	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteRounds(t *testing.T) {
	cardID := uuid.New()
	finished := time.Date(2026, 6, 1, 20, 30, 0, 0, time.UTC)
	rounds := []bingodb.RoundResult{
		{
			RoomCode: "ABC123", Round: 1, Mode: 75, PatternType: "line", HostID: "host",
			WinnerID: "u1", WinnerName: "Ana", CardID: &cardID, DrawnCount: 31,
			Pot: 100, CurrencyType: "coins", PrizeWinner: 70, PrizeHost: 20, PrizePlatform: 10,
			Settled: true, FinishedAt: finished,
		},
		{
			RoomCode: "ABC123", Round: 2, Mode: 75, PatternType: "line", HostID: "host",
			Exhausted: true, DrawnCount: 75, CurrencyType: "coins", FinishedAt: finished.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRounds(&buf, rounds))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{roundsSheet}, f.GetSheetList())
	rows, err := f.GetRows(roundsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Room", rows[0][0])
	assert.Equal(t, "Finished At", rows[0][len(rows[0])-1])
	assert.Equal(t, []string{"ABC123", "1", "75", "line", "host", "u1", "Ana", cardID.String()}, rows[1][:8])
	assert.Equal(t, "2026-06-01T20:30:00Z", rows[1][16])
	assert.Equal(t, "TRUE", rows[2][8])
	assert.Equal(t, "", rows[2][5])
}

func TestWriteRounds_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRounds(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(roundsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
