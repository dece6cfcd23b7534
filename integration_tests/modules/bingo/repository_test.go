//go:build integration

package bingointegration

import (
	"testing"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/Black-And-White-Club/mundo-bingo/integration_tests/testutils"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomRow(code string) *bingodb.Room {
	return &bingodb.Room{
		ID:                uuid.New(),
		Code:              code,
		Mode:              75,
		PatternType:       string(bingodomain.PatternLine),
		Status:            string(bingodomain.StatusWaiting),
		HostID:            gofakeit.UUID(),
		MaxPlayers:        10,
		MaxCardsPerPlayer: 5,
		CardCost:          10,
		CurrencyType:      string(bingodomain.CurrencyCoins),
		DrawnNumbers:      []int{},
		Players:           []bingodomain.Player{},
	}
}

func runRepositoryTests(t *testing.T, env *testutils.TestEnvironment) {
	repo := bingodb.NewRepository(env.DB)
	ctx := env.Ctx

	t.Run("insert and get room", func(t *testing.T) {
		env.ResetDB(t)
		room := newRoomRow("100001")
		require.NoError(t, repo.InsertRoom(ctx, nil, room))

		got, err := repo.GetRoom(ctx, nil, "100001")
		require.NoError(t, err)
		assert.Equal(t, room.ID, got.ID)
		assert.Equal(t, room.HostID, got.HostID)
		assert.Empty(t, got.DrawnNumbers)
	})

	t.Run("open code is unique", func(t *testing.T) {
		env.ResetDB(t)
		require.NoError(t, repo.InsertRoom(ctx, nil, newRoomRow("100002")))
		err := repo.InsertRoom(ctx, nil, newRoomRow("100002"))
		assert.ErrorIs(t, err, bingodb.ErrCodeTaken)
	})

	t.Run("closed code can be reused", func(t *testing.T) {
		env.ResetDB(t)
		old := newRoomRow("100003")
		require.NoError(t, repo.InsertRoom(ctx, nil, old))
		closedAt := time.Now().UTC()
		old.Status = string(bingodomain.StatusFinished)
		old.ClosedAt = &closedAt
		require.NoError(t, repo.UpsertRoom(ctx, nil, old))

		fresh := newRoomRow("100003")
		require.NoError(t, repo.InsertRoom(ctx, nil, fresh))

		got, err := repo.GetRoom(ctx, nil, "100003")
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, got.ID)
	})

	t.Run("missing room", func(t *testing.T) {
		env.ResetDB(t)
		_, err := repo.GetRoom(ctx, nil, "999999")
		assert.ErrorIs(t, err, bingodb.ErrNotFound)
	})

	t.Run("upsert persists progress", func(t *testing.T) {
		env.ResetDB(t)
		room := newRoomRow("100004")
		require.NoError(t, repo.InsertRoom(ctx, nil, room))

		room.Status = string(bingodomain.StatusInProgress)
		room.DrawnNumbers = []int{12, 40, 3}
		room.AutoCall = true
		room.TotalPot = 30
		require.NoError(t, repo.UpsertRoom(ctx, nil, room))

		got, err := repo.GetRoom(ctx, nil, "100004")
		require.NoError(t, err)
		assert.Equal(t, []int{12, 40, 3}, got.DrawnNumbers)
		assert.True(t, got.AutoCall)
		assert.Equal(t, int64(30), got.TotalPot)

		codes, err := repo.ListInProgressRoomCodes(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"100004"}, codes)
	})

	t.Run("rounds are idempotent and settle", func(t *testing.T) {
		env.ResetDB(t)
		room := newRoomRow("100005")
		require.NoError(t, repo.InsertRoom(ctx, nil, room))

		finished := time.Now().UTC().Truncate(time.Second)
		round := &bingodb.RoundResult{
			ID: uuid.New(), RoomID: room.ID, RoomCode: room.Code, Round: 1,
			Mode: 75, PatternType: room.PatternType, HostID: room.HostID,
			WinnerID: "winner", DrawnCount: 20, Pot: 100, CurrencyType: "coins",
			PrizeWinner: 70, PrizeHost: 20, PrizePlatform: 10, FinishedAt: finished,
		}
		require.NoError(t, repo.InsertRound(ctx, nil, round))
		dup := *round
		dup.ID = uuid.New()
		require.NoError(t, repo.InsertRound(ctx, nil, &dup))

		rounds, err := repo.ListRoundsSince(ctx, nil, finished.Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, rounds, 1)
		assert.False(t, rounds[0].Settled)

		require.NoError(t, repo.MarkRoundSettled(ctx, nil, room.ID, 1, finished))
		rounds, err = repo.ListRoundsSince(ctx, nil, finished.Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, rounds[0].Settled)

		assert.ErrorIs(t, repo.MarkRoundSettled(ctx, nil, room.ID, 2, finished), bingodb.ErrNotFound)
	})
}
