// Package attr provides slog attribute constructors with the key names used
// across the pipeline, so log queries stay consistent between modules.
package attr

import (
	"context"
	"log/slog"
	"time"
)

type correlationIDKey struct{}

// WithCorrelationID stores a correlation id on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// ExtractCorrelationID returns the correlation id attribute from ctx, or an
// empty attribute when none is set.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok && id != "" {
		return slog.String("correlation_id", id)
	}
	return slog.Attr{}
}

func String(key, value string) slog.Attr { return slog.String(key, value) }
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }
func Any(key string, value any) slog.Attr { return slog.Any(key, value) }
func Time(key string, value time.Time) slog.Attr { return slog.Time(key, value) }
func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }
func Strings(key string, values []string) slog.Attr { return slog.Any(key, values) }
func MatchID(value string) slog.Attr { return slog.String("match_id", value) }
func BatchID(value string) slog.Attr { return slog.String("batch_id", value) }
func DuprID(value string) slog.Attr { return slog.String("dupr_id", value) }
func Event(eventType, eventID string) slog.Attr {
	return slog.Group("event", slog.String("type", eventType), slog.String("id", eventID))
}

// Error returns an error attribute; a nil error yields an empty attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
