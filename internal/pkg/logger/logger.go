package logger

import (
	"context"
	"os"
	"strings"
	"time"

	appCtx "github.com/gatherly/events-api/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger is the process-wide zerolog instance. Init must run before use.
var Logger zerolog.Logger

func Init() {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err == nil && l != zerolog.NoLevel {
		level = l
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w = zerolog.MultiLevelWriter(os.Stdout)
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		w = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithCtx returns the global logger enriched with the request id, if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		l := Logger.With().Str("request_id", rid).Logger()
		return &l
	}
	return &Logger
}
