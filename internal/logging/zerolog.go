package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by NewZerolog.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zlog zerolog.Logger
}

// NewZerolog creates a Logger writing to w at the given level
// ("debug", "info", "warn", "error"). Format is FormatConsole or FormatJSON.
func NewZerolog(w io.Writer, level, format string) (*ZerologLogger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
		}
	}

	zlog := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return &ZerologLogger{zlog: zlog}, nil
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	emit(l.zlog.Debug(), msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	emit(l.zlog.Info(), msg, keysAndValues)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	emit(l.zlog.Warn(), msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	emit(l.zlog.Error(), msg, keysAndValues)
}

// emit attaches alternating key-value pairs to the event and sends it.
// A trailing key without a value is recorded under "extra".
func emit(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			ev = ev.Interface("extra", keysAndValues[i])
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	ev.Msg(msg)
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}
