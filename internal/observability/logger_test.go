package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/skyplayer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &parsed))
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "text"}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    slog.Level
		shouldLog   bool
	}{
		{"trace logs at trace level", "trace", LevelTrace, true},
		{"debug does not log trace", "debug", LevelTrace, false},
		{"debug logs at debug level", "debug", slog.LevelDebug, true},
		{"info does not log debug", "info", slog.LevelDebug, false},
		{"info logs at info level", "info", slog.LevelInfo, true},
		{"warn does not log info", "warn", slog.LevelInfo, false},
		{"error logs at error level", "error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config.LoggingConfig{Level: tt.configLevel, Format: "json"}

			logger := NewLoggerWithWriter(cfg, &buf)
			logger.Log(context.Background(), tt.logLevel, "test")

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTraceLevelDisplay(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	logger := NewLoggerWithWriter(cfg, &buf)

	logger.Log(context.Background(), LevelTrace, "trace message")

	output := buf.String()
	assert.Contains(t, output, `"level":"TRACE"`)
	assert.NotContains(t, output, "DEBUG-4")
}

func TestNewLoggerWithLevel_Adjustable(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := NewLoggerWithLevel(config.LoggingConfig{Format: "json"}, &buf, level)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json", TimeFormat: "2006-01-02"}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message")

	assert.Contains(t, buf.String(), time.Now().Format("2006-01-02"))
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewLoggerWithWriter(cfg, &buf)

	WithComponent(WithOperation(WithRequestID(logger, "req-1"), "seek"), "orchestrator").Info("chained")

	output := buf.String()
	assert.Contains(t, output, `"request_id":"req-1"`)
	assert.Contains(t, output, `"operation":"seek"`)
	assert.Contains(t, output, `"component":"orchestrator"`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewLoggerWithWriter(cfg, &buf)

	WithError(logger, errors.New("something went wrong")).Info("test")
	assert.Contains(t, buf.String(), `"error":"something went wrong"`)

	buf.Reset()
	WithError(logger, nil).Info("test")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewLoggerWithWriter(cfg, &buf)

	ctx := ContextWithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))

	ctx = ContextWithRequestID(ctx, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestSensitiveDataRedaction(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
	}{
		{"password", "password", "secret123"},
		{"Password capitalized", "Password", "MyP@ssw0rd"},
		{"token", "token", "jwt-token-abc"},
		{"api_key", "api_key", "api-key-value"},
		{"authorization", "Authorization", "Bearer xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

			logger.Info("test message", slog.String(tt.fieldName, tt.value))

			assert.NotContains(t, buf.String(), tt.value)
			assert.Contains(t, buf.String(), "[REDACTED]")
		})
	}
}

func TestSensitiveDataRedaction_Group(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("test with group",
		slog.Group("credentials",
			slog.String("username", "admin"),
			slog.String("password", "secret123"),
		),
	)

	assert.Contains(t, buf.String(), "admin")
	assert.NotContains(t, buf.String(), "secret123")
}

func TestSensitiveDataRedaction_StructField(t *testing.T) {
	type upstream struct {
		Host     string
		Password string
	}

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("upstream", slog.Any("upstream", upstream{Host: "cdn.example.com", Password: "hunter2"}))

	assert.Contains(t, buf.String(), "cdn.example.com")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestURLParameterRedaction(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		sensitive string
		param     string
	}{
		{"token", "https://cdn.example.com/live.m3u8?token=abc123xyz&ch=1", "abc123xyz", "token"},
		{"password", "http://example.com/api?username=user&password=secret123", "secret123", "password"},
		{"case insensitive", "http://example.com/api?PASSWORD=MySecret&user=test", "MySecret", "PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

			logger.Info("loading source", slog.String("url", tt.url))

			output := buf.String()
			assert.NotContains(t, output, tt.sensitive)
			assert.Contains(t, output, tt.param+"=[REDACTED]")
		})
	}
}

func TestURLParameterRedaction_PreservesNonSensitiveURL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("loading source", slog.String("url", "https://example.com/master.m3u8?variant=hd&page=1"))

	output := buf.String()
	assert.Contains(t, output, "variant=hd")
	assert.Contains(t, output, "page=1")
	assert.NotContains(t, output, "[REDACTED]")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestOutput_FileMirror(t *testing.T) {
	var console bytes.Buffer
	out := NewOutput(&console)
	path := filepath.Join(t.TempDir(), "logs", "player.log")

	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, out)
	logger.Info("before file")

	require.NoError(t, out.EnableFile(path, 1024*1024))
	assert.Equal(t, path, out.FilePath())
	logger.Info("after file")
	require.NoError(t, out.DisableFile())
	logger.Info("file closed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before file")
	assert.Contains(t, string(data), "after file")
	assert.NotContains(t, string(data), "file closed")
	assert.Contains(t, console.String(), "file closed")
	assert.Empty(t, out.FilePath())
}

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate.log")
	f, err := OpenRotatingFile(path, 16)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = f.Write([]byte("0123456789\n"))
	require.NoError(t, err)
	_, err = f.Write([]byte("abcdefghij\n"))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789\n", string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij\n", string(current))

	_, err = OpenRotatingFile("", 10)
	assert.Error(t, err)
	_, err = OpenRotatingFile(path, 0)
	assert.Error(t, err)
}
