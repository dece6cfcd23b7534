package bingohandlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestHandleWalletSettled(t *testing.T) {
	payload := bingoevents.WalletSettledPayloadV1{
		RoomID:    uuid.New(),
		RoomCode:  gofakeit.Regex("[A-Z0-9]{6}"),
		Round:     gofakeit.Number(1, 20),
		SettledAt: time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)

	tests := []struct {
		name      string
		payload   string
		recordErr error
		wantErr   bool
		wantCalls int
	}{
		{name: "records settlement", payload: body, wantCalls: 1},
		{name: "malformed payload is acked", payload: `{"round":`, wantCalls: 0},
		{name: "service error is retried", payload: body, recordErr: errors.New("db down"), wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []bingoevents.WalletSettledPayloadV1
			var correlation string
			svc := &FakeService{
				RecordSettlementFunc: func(ctx context.Context, p bingoevents.WalletSettledPayloadV1) error {
					got = append(got, p)
					correlation = attr.CorrelationID(ctx)
					return tt.recordErr
				},
			}
			h := NewBingoHandlers(svc, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider().Tracer("test"), nil)

			msg := message.NewMessage("msg-1", []byte(tt.payload))
			middleware.SetCorrelationID("corr-1", msg)

			err := h.HandleWalletSettled(msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleWalletSettled() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantCalls {
				t.Fatalf("RecordSettlement calls = %d, want %d", len(got), tt.wantCalls)
			}
			if tt.wantCalls == 0 {
				return
			}
			if diff := cmp.Diff(payload, got[0]); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
			if correlation != "corr-1" {
				t.Errorf("correlation id = %q, want corr-1", correlation)
			}
		})
	}
}
