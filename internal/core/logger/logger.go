package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

type Field = zap.Field

func StringField(key, val string) Field { return zap.String(key, val) }
func ErrorField(key string, err error) Field { return zap.NamedError(key, err) }
func AnyField(key string, val interface{}) Field { return zap.Any(key, val) }
func Int64Field(key string, val int64) Field { return zap.Int64(key, val) }
func BoolField(key string, val bool) Field { return zap.Bool(key, val) }
func DurationField(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Options selects where log entries go. With an empty Dir, info entries go
// to stdout and warnings/errors to stderr.
type Options struct {
	Dir   string
	Level string
}

func NewLogger(opts Options) (*zap.Logger, func(), error) {
	minLevel := zapcore.InfoLevel
	if opts.Level != "" {
		if err := minLevel.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	infoSink, errorSink, closeSinks, err := openSinks(opts.Dir)
	if err != nil {
		return nil, nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	infoCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		infoSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= minLevel && lvl <= zapcore.InfoLevel
		}),
	)

	errorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		errorSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= minLevel && lvl >= zapcore.WarnLevel
		}),
	)

	logger := zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller())

	cleanup := func() {
		_ = logger.Sync()
		closeSinks()
	}

	return logger, cleanup, nil
}

func openSinks(dir string) (zapcore.WriteSyncer, zapcore.WriteSyncer, func(), error) {
	if dir == "" {
		return zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr), func() {}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	infoFile, err := os.OpenFile(filepath.Join(dir, "info.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open info log file: %w", err)
	}

	errorFile, err := os.OpenFile(filepath.Join(dir, "error.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		infoFile.Close()
		return nil, nil, nil, fmt.Errorf("open error log file: %w", err)
	}

	closeFiles := func() {
		infoFile.Close()
		errorFile.Close()
	}

	return zapcore.AddSync(infoFile), zapcore.AddSync(errorFile), closeFiles, nil
}
