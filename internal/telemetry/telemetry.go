// Package telemetry sets up process-wide logging and tracing.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "thinkchat"

// rotating returns a size-rotated file writer.
func rotating(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back
// to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled":
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger builds a console logger on out, also writing JSON lines to a
// rotated file when file is set. The returned closer releases the file.
func NewLogger(out io.Writer, level, file string) (zerolog.Logger, io.Closer) {
	if out == nil {
		out = os.Stderr
	}
	w := io.Writer(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	var closer io.Closer = nopCloser{}
	if file != "" {
		lj := rotating(file)
		w = zerolog.MultiLevelWriter(w, lj)
		closer = lj
	}
	l := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Str("service", serviceName).Logger()
	return l, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitTracing installs a global tracer provider exporting spans as JSON to a
// rotated file. With an empty file the global no-op provider stays in place
// and the returned shutdown does nothing.
func InitTracing(ctx context.Context, file string) (func(context.Context) error, error) {
	if file == "" {
		return func(context.Context) error { return nil }, nil
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	lj := rotating(file)
	exp, err := stdouttrace.New(stdouttrace.WithWriter(lj))
	if err != nil {
		_ = lj.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := lj.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
