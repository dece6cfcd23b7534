package bingohandlers

import (
	"encoding/json"

	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// HandleWalletSettled records that the wallet paid out a finished round.
// Malformed payloads are acked and logged; service errors are returned so the
// router retries the message.
func (h *BingoHandlers) HandleWalletSettled(msg *message.Message) error {
	ctx := attr.WithCorrelationID(msg.Context(), middleware.MessageCorrelationID(msg))

	var payload bingoevents.WalletSettledPayloadV1
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.logger.ErrorContext(ctx, "Discarding malformed settlement event",
			attr.CorrelationIDFromMsg(msg),
			attr.String("message_id", msg.UUID),
			attr.Error(err),
		)
		return nil
	}

	if err := h.service.RecordSettlement(ctx, payload); err != nil {
		h.logger.ErrorContext(ctx, "Failed to record settlement",
			attr.CorrelationIDFromMsg(msg),
			attr.RoomCode(payload.RoomCode),
			attr.Int("round", payload.Round),
			attr.Error(err),
		)
		return err
	}

	h.logger.InfoContext(ctx, "Round settlement recorded",
		attr.CorrelationIDFromMsg(msg),
		attr.RoomCode(payload.RoomCode),
		attr.Int("round", payload.Round),
	)
	return nil
}
