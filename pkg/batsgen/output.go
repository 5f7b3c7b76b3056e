package batsgen

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

// log retrieves the logger carried by the context. Callers that reach this
// without going through WithLogger or WithNopLogger are a programming error.
func log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logKey{})
	if logger == nil {
		panic("logger is missing in context")
	}

	return logger.(*zerolog.Logger)
}

// WithLogger attaches the given logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// WithNopLogger attaches a logger that discards everything. Meant for tests
// and other callers that only need the context to satisfy the logging
// contract.
func WithNopLogger(ctx context.Context) context.Context {
	logger := zerolog.Nop()
	return WithLogger(ctx, &logger)
}
