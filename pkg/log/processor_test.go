package log

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTagProcessor_CanProcess(t *testing.T) {
	ltp := NewLoggerTagProcessor()

	assert.True(t, ltp.CanProcess("logger"))
	assert.True(t, ltp.CanProcess("Logger:engine"))
	assert.False(t, ltp.CanProcess("inject"))
	assert.False(t, ltp.CanProcess("loggers"))
	assert.Equal(t, 50, ltp.GetPriority())
}

func TestLoggerTagProcessor_Process(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLoggerService("snaptag", testConfig(), &buf)

	sc := container.NewServiceContainer()
	require.NoError(t, container.Register[LoggerServiceImpl](sc,
		container.With[LoggerService](),
		container.WithInstance(base)))

	ltp := NewLoggerTagProcessor()
	field := reflect.StructField{Name: "Log"}

	resolved, err := ltp.Process(context.Background(), sc, field, "logger:store")
	require.NoError(t, err)

	logger, ok := resolved.(LoggerService)
	require.True(t, ok)
	logger.Info("named")
	assert.Contains(t, buf.String(), "[snaptag/store] named")
}

func TestLoggerTagProcessor_ProcessWithoutLogger(t *testing.T) {
	sc := container.NewServiceContainer()

	_, err := NewLoggerTagProcessor().Process(context.Background(), sc, reflect.StructField{Name: "Log"}, "logger")
	assert.Error(t, err)
}

func TestLoggerName(t *testing.T) {
	assert.Equal(t, "", loggerName("logger"))
	assert.Equal(t, "engine", loggerName("logger: engine "))
}
