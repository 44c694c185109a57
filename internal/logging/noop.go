package logging

import "context"

// NoopLogger discards everything. Handy as a default in constructors and in
// tests that do not assert on log output.
type NoopLogger struct{}

func (NoopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (NoopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (NoopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (NoopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (n NoopLogger) With(args ...any) Logger                          { return n }
