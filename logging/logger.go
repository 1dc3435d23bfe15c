// Package logging provides a context-scoped structured logger backed by
// uber-go/zap. Handlers and clients pull the logger off the request context
// so log lines carry whatever fields the middleware stack has accumulated.
package logging

import "context"

type ctxkey struct {
	logger Logger
}

// With attaches a logger to the context.
//
// This can be used to create logging scopes like so:
//
//	ctx := logging.With(ctx, logger.Named("guard"))
//	next.ServeHTTP(w, r.WithContext(ctx))
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{
		logger: logger,
	})
}

// FromContext returns the scoped logger, or a no-op logger if the context
// never passed through the logging middleware. Returning a usable logger
// keeps call-sites free of nil checks.
func FromContext(ctx context.Context) Logger {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		return c.logger
	}
	return &noopLogger{}
}

// Track a field across the lifetime of the context. Tracked values persist
// back up the call-chain to the middleware that created the scope, so a
// request id attached early shows up on every line for that request.
func Track(ctx context.Context, field string, value interface{}) {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		c.logger = c.logger.With(field, value)
	}
}

// Logger provides an abstract logging interface designed around uber-go/zap's
// sugared logger, but is intended to provide interop with other libraries.
type Logger interface {
	Debug(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(msg string, args ...interface{})
	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Infof(msg string, args ...interface{})
	Warn(args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Warnf(msg string, args ...interface{})
	Error(args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Errorf(msg string, args ...interface{})
	Fatal(args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
	Fatalf(msg string, args ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger and attaches structured context to it.
	With(field string, value interface{}) Logger
}

func Debug(ctx context.Context, msg string) {
	FromContext(ctx).Debug(msg)
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Debugw(msg, fields...)
}

func Debugf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Debugf(msg, args...)
}

func Info(ctx context.Context, msg string) {
	FromContext(ctx).Info(msg)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Infow(msg, fields...)
}

func Infof(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Infof(msg, args...)
}

func Warn(ctx context.Context, msg string) {
	FromContext(ctx).Warn(msg)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Warnw(msg, fields...)
}

func Warnf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Warnf(msg, args...)
}

func Error(ctx context.Context, msg string) {
	FromContext(ctx).Error(msg)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Errorw(msg, fields...)
}

func Errorf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Errorf(msg, args...)
}

func Fatal(ctx context.Context, msg string) {
	FromContext(ctx).Fatal(msg)
}

func Fatalw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Fatalw(msg, fields...)
}

func Fatalf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Fatalf(msg, args...)
}

type noopLogger struct{}

func (n *noopLogger) Debug(args ...interface{})                        {}
func (n *noopLogger) Debugw(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Debugf(msg string, args ...interface{})           {}
func (n *noopLogger) Info(args ...interface{})                         {}
func (n *noopLogger) Infow(msg string, keysAndValues ...interface{})   {}
func (n *noopLogger) Infof(msg string, args ...interface{})            {}
func (n *noopLogger) Warn(args ...interface{})                         {}
func (n *noopLogger) Warnw(msg string, keysAndValues ...interface{})   {}
func (n *noopLogger) Warnf(msg string, args ...interface{})            {}
func (n *noopLogger) Error(args ...interface{})                        {}
func (n *noopLogger) Errorw(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Errorf(msg string, args ...interface{})           {}
func (n *noopLogger) Fatal(args ...interface{})                        {}
func (n *noopLogger) Fatalw(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Fatalf(msg string, args ...interface{})           {}
func (n *noopLogger) Named(name string) Logger                         { return n }
func (n *noopLogger) With(field string, value interface{}) Logger      { return n }
