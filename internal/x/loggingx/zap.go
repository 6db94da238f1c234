package loggingx

import (
	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap returns a logger that writes to z.
//
// Log messages are written at the info level and debug messages at the debug
// level. IsDebug() reports whether z has the debug level enabled.
func Zap(z *zap.Logger) logging.Logger {
	return &zapLogger{z.Sugar()}
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Log(f string, v ...interface{}) {
	l.s.Infof(f, v...)
}

func (l *zapLogger) LogString(s string) {
	l.s.Info(s)
}

func (l *zapLogger) Debug(f string, v ...interface{}) {
	l.s.Debugf(f, v...)
}

func (l *zapLogger) DebugString(s string) {
	l.s.Debug(s)
}

func (l *zapLogger) IsDebug() bool {
	return l.s.Desugar().Core().Enabled(zapcore.DebugLevel)
}

// NewZap builds a zap logger suitable for the command-line binaries.
//
// Production builds write JSON at the info level; debug enables the
// development encoder and the debug level.
func NewZap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
