package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	logger *slog.Logger
	once   sync.Once
)

type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// InitLogger builds the process-wide logger. Only the first call has an effect.
func InitLogger(opts ...Options) {
	once.Do(func() {
		var o Options
		if len(opts) > 0 {
			o = opts[0]
		}
		logger = New(o)
		slog.SetDefault(logger)
	})
}

func New(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(o.Level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey && len(groups) == 0 {
				attr.Value = slog.StringValue(attr.Value.Time().Format("2006-01-02T15:04:05"))
			}
			return attr
		},
	}
	var handler slog.Handler
	if strings.EqualFold(o.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}

func StringField(key, value string) slog.Attr {
	return slog.String(key, value)
}

func IntField(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func DurationField(key string, value time.Duration) slog.Attr {
	return slog.String(key, value.Round(time.Millisecond).String())
}

func MillisField(key string, ms float64) slog.Attr {
	return slog.String(key, FormatMillis(ms))
}

func FormatMillis(ms float64) string {
	return strings.TrimSuffix(strings.TrimRight(strconv.FormatFloat(ms, 'f', 1, 64), "0"), ".") + "ms"
}

func ErrorField(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
