// Package zaplogger is the application wide structured logger
package zaplogger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02T15:04:05.999-0700"

var (
	log   *zap.Logger
	level = zap.NewAtomicLevelAt(zap.DebugLevel)
)

// Fields type, used to pass to `WithFields`.
type Fields map[string]interface{}

// LogModel is a log entry persisted by the database sink
type LogModel struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index"`
	Level     string    `gorm:"index"`
	Caller    string
	Message   string
	Fields    string // JSON object of the entry's extra fields
}

// TableName specifies the table name for LogModel
func (LogModel) TableName() string {
	return "_app_logs"
}

// DbWriter is a zapcore.WriteSyncer that stores JSON encoded entries with GORM
type DbWriter struct {
	db *gorm.DB
}

var reservedKeys = map[string]bool{"level": true, "timestamp": true, "caller": true, "message": true}

func (w *DbWriter) Write(p []byte) (int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return 0, err
	}

	record := LogModel{
		Level:   unquote(raw["level"]),
		Caller:  unquote(raw["caller"]),
		Message: unquote(raw["message"]),
	}
	ts, err := time.Parse(timeLayout, unquote(raw["timestamp"]))
	if err != nil {
		return 0, err
	}
	record.Timestamp = ts

	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if !reservedKeys[k] {
			extra[k] = v
		}
	}
	fields, err := json.Marshal(extra)
	if err != nil {
		return 0, err
	}
	record.Fields = string(fields)

	if err := w.db.Create(&record).Error; err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *DbWriter) Sync() error {
	return nil
}

func unquote(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(timeLayout))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "timestamp",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   timeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

func init() {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), level)
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// InitLogger tees the console logger into the `_app_logs` table
func InitLogger(db *gorm.DB) error {
	if err := db.AutoMigrate(&LogModel{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(&DbWriter{db: db}), level),
	)
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return nil
}

// SetLogLevel sets the logging level, unknown names fall back to info
func SetLogLevel(name string) {
	var l zapcore.Level
	switch name {
	case "debug":
		l = zapcore.DebugLevel
	case "info":
		l = zapcore.InfoLevel
	case "warn":
		l = zapcore.WarnLevel
	case "error":
		l = zapcore.ErrorLevel
	default:
		l = zapcore.InfoLevel
	}
	level.SetLevel(l)
}

// Info logs an info message
func Info(msg string, fields ...Fields) {
	log.Info(msg, zapFields(fields)...)
}

// Debug logs a debug message
func Debug(msg string, fields ...Fields) {
	log.Debug(msg, zapFields(fields)...)
}

// Warn logs a warning message
func Warn(msg string, fields ...Fields) {
	log.Warn(msg, zapFields(fields)...)
}

// Error logs an error message
func Error(msg string, fields ...Fields) {
	log.Error(msg, zapFields(fields)...)
}

// Fatal logs a fatal message and exits the program
func Fatal(msg string, fields ...Fields) {
	log.Fatal(msg, zapFields(fields)...)
}

// WithFields returns a child logger carrying the given fields. It is
// called directly, so the package caller skip is undone.
func WithFields(fields Fields) *zap.Logger {
	return log.WithOptions(zap.AddCallerSkip(-1)).With(zapFields([]Fields{fields})...)
}

func zapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields[0]))
	for k, v := range fields[0] {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Sync flushes any buffered log entries
func Sync() error {
	return log.Sync()
}
