// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides logging utilities.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

type contextKeyType string

const contextKey contextKeyType = "logger"

// ParseLevel translates a configured level name into a slog level.
func ParseLevel(requestedLevel string) (slog.Level, error) {
	switch requestedLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", requestedLevel)
	}
}

// New will initialise a new structured logger, logging at the desired level.
// If the requested level doesn't exist, it panics.
// If humanReadable is set, it will use the coloured tint handler on stderr,
// if not, it will use JSON on stdout.
func New(requestedLevel string, humanReadable bool) *slog.Logger {
	if humanReadable {
		return NewWithWriter(requestedLevel, true, os.Stderr)
	}
	return NewWithWriter(requestedLevel, false, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(requestedLevel string, humanReadable bool, w io.Writer) *slog.Logger {
	level, err := ParseLevel(requestedLevel)
	if err != nil {
		panic(err.Error())
	}
	if humanReadable {
		return slog.New(tint.NewHandler(w, &tint.Options{
			AddSource:  true,
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// IsTerminal reports if stderr is attached to a terminal, used to default to human readable logs.
func IsTerminal() bool {
	return isTerminal(os.Stderr)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Inject stores the logger in the context.
func Inject(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// Extract returns the logger stored in the context, or the default logger if none is present.
func Extract(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(contextKey).(*slog.Logger)
	if !ok || logger == nil {
		return slog.Default()
	}
	return logger
}

// InjectLabels adds key/value labels to the context logger and returns both the new context
// and the labelled logger.
func InjectLabels(ctx context.Context, args ...any) (context.Context, *slog.Logger) {
	logger := Extract(ctx).With(args...)
	return Inject(ctx, logger), logger
}
