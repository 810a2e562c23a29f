// Copyright 2025 James Ross
package obs

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	return cfg.Build()
}

// Convenience typed fields
func String(k, v string) zap.Field          { return zap.String(k, v) }
func Int(k string, v int) zap.Field         { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field       { return zap.Bool(k, v) }
func Err(err error) zap.Field               { return zap.Error(err) }
func Float64(k string, v float64) zap.Field { return zap.Float64(k, v) }
func Duration(k string, v time.Duration) zap.Field { return zap.Duration(k, v) }

// TopicID and ArticleID name the entity a log line concerns, the way
// the teacher's queue.Job-centric logging always carried a job ID.
func TopicID(v string) zap.Field   { return zap.String("topic_id", v) }
func ArticleID(v string) zap.Field { return zap.String("article_id", v) }
func BatchID(v string) zap.Field   { return zap.String("batch_id", v) }
func Source(v string) zap.Field    { return zap.String("source", v) }
