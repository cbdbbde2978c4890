package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/snaptag/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

// LoggerServiceImpl writes formatted entries into an output shared with every
// logger derived from it through Named.
type LoggerServiceImpl struct {
	cfg   config.LogConfig
	name  string
	level LogLevel
	out   *output
}

var _ LoggerService = (*LoggerServiceImpl)(nil)

// output serializes writes of all loggers sharing one destination.
type output struct {
	mutex  sync.Mutex
	writer io.Writer
	color  bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

// NewLoggerService logs to stderr and, if configured, a rotated log file.
func NewLoggerService(name string, cfg config.LogConfig) LoggerService {
	return newLoggerService(name, cfg, &output{
		writer: openWriter(cfg),
		color:  !cfg.NoTerminal && !cfg.NoColor,
	})
}

// NewWriterLoggerService logs into w only, ignoring the terminal and file
// settings of cfg.
func NewWriterLoggerService(name string, cfg config.LogConfig, w io.Writer) LoggerService {
	return newLoggerService(name, cfg, &output{
		writer: w,
		color:  !cfg.NoColor,
	})
}

func newLoggerService(name string, cfg config.LogConfig, out *output) *LoggerServiceImpl {
	return &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: Parse(cfg.Level),
		out:   out,
	}
}

func openWriter(cfg config.LogConfig) io.Writer {
	var writers []io.Writer

	if !cfg.NoTerminal {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		})
	}

	switch len(writers) {
	case 0:
		return os.Stderr
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}

	line := impl.format(level, time.Now().Format(impl.cfg.TimeFormat), fmt.Sprintf(msg, args...))

	impl.out.mutex.Lock()
	io.WriteString(impl.out.writer, line)
	impl.out.mutex.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) format(level LogLevel, timestamp, msg string) string {
	if impl.cfg.JSON {
		data, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		return string(data) + "\n"
	}

	var sb strings.Builder
	if impl.out.color {
		sb.WriteString(Color(level))
	}

	fmt.Fprintf(&sb, "[%s] %-5s", timestamp, level)
	if impl.name != "" {
		fmt.Fprintf(&sb, " [%s]", impl.name)
	}
	sb.WriteString(" ")
	sb.WriteString(msg)

	if impl.out.color {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named returns a child logger tagged "<parent>/<name>" that writes into the
// same output.
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	if impl.name != "" {
		name = impl.name + "/" + name
	}

	child := *impl
	child.name = name
	return &child
}
