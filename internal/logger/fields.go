package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldJobID   = "job_id"
	FieldMatchID = "match_id"
	FieldAction  = "action"
	FieldRole    = "role"
	FieldUser    = "user"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SessionFields describes who is acting. Empty values are dropped.
func SessionFields(role, user string) []zap.Field {
	return StringFields(
		StringField{Key: FieldRole, Value: role},
		StringField{Key: FieldUser, Value: user},
	)
}

// WithSession attaches the session fields to the provided logger.
func WithSession(logger *zap.Logger, role, user string) *zap.Logger {
	return WithFields(logger, SessionFields(role, user)...)
}

// Decision returns the fields logged for a swipe decision.
func Decision(jobID int, action string) []zap.Field {
	return []zap.Field{
		zap.Int(FieldJobID, jobID),
		zap.String(FieldAction, action),
	}
}
