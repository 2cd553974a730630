package logger

import (
	"context"
	"maps"
)

// Entry carries aggregatable metric fields (duration_ms, count, cache_hit)
// and resolves its logger from the context at write time.
//
//	logger.With(logger.Fields{logger.FieldCount: n}).Info(ctx, "Ranked %s", view)
type Entry struct {
	fields Fields
}

// With starts an Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{fields: maps.Clone(fields)}
}

// With returns a new Entry with fields merged over the existing ones.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	maps.Copy(merged, e.fields)
	maps.Copy(merged, fields)
	return &Entry{fields: merged}
}

// WithDuration adds duration_ms.
func (e *Entry) WithDuration(ms int64) *Entry {
	return e.With(Fields{FieldDurationMs: ms})
}

// WithCount adds count.
func (e *Entry) WithCount(count int) *Entry {
	return e.With(Fields{FieldCount: count})
}

func (e *Entry) at(ctx context.Context) *Logger {
	return FromContext(ctx).WithFields(e.fields)
}

func (e *Entry) Debug(ctx context.Context, format string, args ...any) {
	e.at(ctx).Debugf(format, args...)
}

func (e *Entry) Info(ctx context.Context, format string, args ...any) {
	e.at(ctx).Infof(format, args...)
}

func (e *Entry) Warn(ctx context.Context, format string, args ...any) {
	e.at(ctx).Warnf(format, args...)
}

func (e *Entry) Error(ctx context.Context, format string, args ...any) {
	e.at(ctx).Errorf(format, args...)
}
