package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

// LoggerTagProcessor resolves `fabric:"logger"` and `fabric:"logger:<name>"`
// struct tags into the registered LoggerService, optionally Named.
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority runs the processor ahead of the default inject processor (0).
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == loggerTag || strings.HasPrefix(value, loggerTag+":")
}

func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("failed to resolve LoggerService for field '%s': no logger service registered", field.Name)
	}

	base, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved logger is not a LoggerService for field '%s'", field.Name)
	}

	if name := loggerName(value); name != "" {
		return base.Named(name), nil
	}
	return base, nil
}

func loggerName(value string) string {
	_, name, found := strings.Cut(value, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(name)
}
