package logger

import (
	"context"
	"maps"
	"sync/atomic"
)

type contextKey struct{}

var (
	loggerKey     = contextKey{}
	defaultLogger atomic.Pointer[Logger]
)

func init() {
	defaultLogger.Store(New(nil))
}

// GetDefault returns the process-wide logger used when a context carries none.
func GetDefault() *Logger {
	return defaultLogger.Load()
}

// SetDefaultLogger replaces the process-wide logger. A nil logger is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// WithContext returns a copy of ctx carrying l.
// Parameters:
//   - ctx: parent context.
// Returns:
//   - context.Context: context containing the logger.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithFields returns a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

func withField(ctx context.Context, key string, value any) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// SetUserID tags every later entry with the acting user.
func SetUserID(ctx context.Context, id uint) context.Context {
	return withField(ctx, FieldUserID, id)
}

// SetStrategy tags every later entry with the recommendation source in use.
func SetStrategy(ctx context.Context, strategy string) context.Context {
	return withField(ctx, FieldStrategy, strategy)
}

// SetComponent tags every later entry with the component name.
func SetComponent(ctx context.Context, name string) context.Context {
	return withField(ctx, FieldComponent, name)
}

// Field reads a typed field back from the context's logger.
func Field[T any](ctx context.Context, key string) (T, bool) {
	v, ok := FromContext(ctx).Data[key].(T)
	return v, ok
}

// GetStrategy returns the recommendation source set by SetStrategy.
func GetStrategy(ctx context.Context) string {
	s, _ := Field[string](ctx, FieldStrategy)
	return s
}

// GetFields returns a copy of the context logger's fields.
func GetFields(ctx context.Context) Fields {
	return Fields(maps.Clone(FromContext(ctx).Data))
}
