package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message in output, got: %s", output)
	}
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithTable(ctx, "trails")
	ctx = logging.WithRecord(ctx, "AST-0042")

	logger := logging.FromContext(ctx)
	logger.Info().Msg("test message")

	testLogger.AssertContains(t, "trails")
	testLogger.AssertContains(t, "AST-0042")
	testLogger.AssertContains(t, "test message")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if logging.FromContext(context.Background()) == nil {
		t.Fatal("expected default logger for bare context")
	}
	if logging.FromContext(nil) == nil { //nolint:staticcheck // nil context fallback is part of the contract
		t.Fatal("expected default logger for nil context")
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *logging.Config
		level zerolog.Level
	}{
		{"nil config defaults to info", nil, zerolog.InfoLevel},
		{"debug level", &logging.Config{Level: "debug", Format: "json", Output: "discard"}, zerolog.DebugLevel},
		{"warn level", &logging.Config{Level: "warn", Format: "json", Output: "discard"}, zerolog.WarnLevel},
		{"unknown level defaults to info", &logging.Config{Level: "bogus", Format: "json", Output: "discard"}, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewLoggerFromConfig(tt.cfg)
			if logger.GetLevel() != tt.level {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.level)
			}
		})
	}
}
