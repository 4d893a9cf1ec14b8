package logger

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger keeps the printf-style call sites of the service on top of a zap core.
type Logger struct {
	z *zap.Logger
	s *zap.SugaredLogger
}

// New builds a JSON logger writing to stdout at the given level (debug, info, warn, error).
func New(level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		lvl,
	)

	z := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", "hotel")),
	)

	return wrap(z), nil
}

func NewNop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{z: z, s: z.Sugar()}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.s.Errorf(format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.s.Infof(format, v...)
}

func (l *Logger) LogWarn(format string, v ...any) {
	l.s.Warnf(format, v...)
}

func (l *Logger) LogDebug(format string, v ...any) {
	l.s.Debugf(format, v...)
}

// StdLogger adapts the logger for libraries that want a *log.Logger, such as http.Server.
func (l *Logger) StdLogger() *log.Logger {
	return zap.NewStdLog(l.z.WithOptions(zap.AddCallerSkip(-1)))
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}
