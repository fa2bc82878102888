package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

type ctxKey struct{}

// Logger is the process-wide logger. It discards output until Init is called.
var Logger = zerolog.Nop()

func Init() {
	InitWithWriter(os.Stdout)
}

func InitWithWriter(w io.Writer) {
	level, err := zerolog.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.TrimSpace(os.Getenv("LOG_FORMAT")) == "json" {
		base = zerolog.New(w)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    strings.TrimSpace(os.Getenv("LOG_COLOR")) == "0",
		})
	}

	l := base.With().Timestamp().Logger().Level(level)
	if strings.TrimSpace(os.Getenv("LOG_CALLER")) == "1" {
		l = l.With().Caller().Logger()
	}

	Logger = l
	zlog.Logger = Logger
}

// WithRequestID stores the request id for WithCtx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCtx returns Logger tagged with the request id carried by ctx, if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if rid := RequestID(ctx); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}
