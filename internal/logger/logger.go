package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New собирает логгер с уровнем из строки; неизвестный уровень превращается в info.
func New(level string, out io.Writer, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	if out == nil {
		out = os.Stderr
	}
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	l := zerolog.New(out).
		With().
		Timestamp().
		Str("executable", filepath.Base(os.Args[0])).
		Logger().
		Level(lvl)

	log.Logger = l
	return l
}

// Nop возвращает логгер, который ничего не пишет. Удобно для тестов.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Ctx достаёт логгер из контекста, либо глобальный.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &log.Logger
	}
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}
