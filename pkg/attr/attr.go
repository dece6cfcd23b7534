// Package attr holds the slog attribute helpers shared by every module so log
// lines use the same keys.
package attr

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type ctxKey string

const correlationIDKey ctxKey = "correlation_id"

// WithCorrelationID stores a correlation id on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id stored on ctx, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ExtractCorrelationID returns the correlation id attribute for ctx.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	return slog.String("correlation_id", CorrelationID(ctx))
}

// CorrelationIDFromMsg returns the correlation id attribute carried in a
// watermill message's metadata.
func CorrelationIDFromMsg(msg *message.Message) slog.Attr {
	if msg == nil {
		return slog.String("correlation_id", "")
	}
	return slog.String("correlation_id", msg.Metadata.Get(middleware.CorrelationIDMetadataKey))
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

func Time(key string, value time.Time) slog.Attr { return slog.Time(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error renders err under the "error" key. A nil error renders as "".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// RoomCode tags a log line with the bingo room it concerns.
func RoomCode(code string) slog.Attr { return slog.String("room_code", code) }

// UserID tags a log line with the acting user.
func UserID(id string) slog.Attr { return slog.String("user_id", id) }

// UUID renders a uuid under key.
func UUID(key string, id uuid.UUID) slog.Attr { return slog.String(key, id.String()) }
