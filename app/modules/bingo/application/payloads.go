package bingoservice

import (
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/google/uuid"
)

const (
	cardsPurchasedTopic = bingoevents.CardsPurchasedV1
	gameFinishedTopic   = bingoevents.GameFinishedV1
	roomClosedTopic     = bingoevents.RoomClosedV1
)

func cardsPurchasedPayload(state *bingodomain.RoomState, userID string, change bingodomain.CardChange, now time.Time) bingoevents.CardsPurchasedPayloadV1 {
	return bingoevents.CardsPurchasedPayloadV1{
		RoomID:     state.ID,
		RoomCode:   state.Code,
		Round:      state.Round,
		UserID:     userID,
		Delta:      change.Delta,
		Cards:      change.Cards,
		Amount:     change.Amount,
		Currency:   string(state.CurrencyType),
		OccurredAt: now,
	}
}

func gameFinishedPayload(roomID uuid.UUID, code string, o *bingodomain.Outcome) bingoevents.GameFinishedPayloadV1 {
	return bingoevents.GameFinishedPayloadV1{
		RoomID:        roomID,
		RoomCode:      code,
		Round:         o.Round,
		HostID:        o.HostID,
		WinnerID:      o.WinnerID,
		WinnerName:    o.WinnerName,
		CardID:        o.CardID,
		PatternType:   string(o.PatternType),
		Exhausted:     o.Exhausted,
		Pot:           o.Pot,
		Currency:      string(o.Currency),
		PrizeWinner:   o.Prizes.Winner,
		PrizeHost:     o.Prizes.Host,
		PrizePlatform: o.Prizes.Platform,
		FinishedAt:    o.FinishedAt,
	}
}

func roomClosedPayload(state *bingodomain.RoomState, round int, reason string, refunds []bingodomain.Refund) bingoevents.RoomClosedPayloadV1 {
	out := bingoevents.RoomClosedPayloadV1{
		RoomID:   state.ID,
		RoomCode: state.Code,
		Round:    round,
		Reason:   reason,
		Currency: string(state.CurrencyType),
		Refunds:  make([]bingoevents.RefundV1, 0, len(refunds)),
	}
	if state.ClosedAt != nil {
		out.ClosedAt = *state.ClosedAt
	}
	for _, r := range refunds {
		out.Refunds = append(out.Refunds, bingoevents.RefundV1{UserID: r.UserID, Cards: r.Cards, Amount: r.Amount})
	}
	return out
}
