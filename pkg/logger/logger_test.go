package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemimg/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "gemimg.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"fatal", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFieldsAndChaining(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithComponent("driver").
		WithField("state", "awaiting_image").
		WithFields(map[string]interface{}{"attempt": 3, "elapsed": 2 * time.Second}).
		WithError(errors.New("boom")).
		Info("polling")

	out := buf.String()
	assert.Contains(t, out, `"component":"driver"`)
	assert.Contains(t, out, `"state":"awaiting_image"`)
	assert.Contains(t, out, `"attempt":3`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"app":"gemimg"`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, zerolog.DebugLevel)
	_ = parent.WithField("child", true)

	parent.Info("parent only")
	assert.NotContains(t, buf.String(), "child")
}

func TestWithErrorNil(t *testing.T) {
	l := NewWithWriter(&bytes.Buffer{}, zerolog.InfoLevel)
	assert.Same(t, l, l.WithError(nil))
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.InfoWithFields("image saved", map[string]interface{}{
		"path":  "/tmp/out.png",
		"width": 1024,
		"tags":  []string{"a", "b"},
	})

	out := buf.String()
	assert.Contains(t, out, `"path":"/tmp/out.png"`)
	assert.Contains(t, out, `"width":1024`)
	assert.Contains(t, out, `"tags":["a","b"]`)
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "disabled"}))
	assert.NotNil(t, GetLogger())

	l := GetLogger()
	l.Debug("debug")
	l.Info("info")
	l.WithField("k", "v").Warn("warn")
	l.WithError(errors.New("x")).Error("error")
}

func TestOrDefault(t *testing.T) {
	nop := NewNopLogger()
	assert.Same(t, nop, OrDefault(nop))
	assert.NotNil(t, OrDefault(nil))
}

func TestTestLoggerCapturesFields(t *testing.T) {
	tl := NewTestLogger()

	tl.WithComponent("watermark").WithError(errors.New("exit 1")).Warn("removal failed")
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "watermark", msgs[0].Fields["component"])
	assert.EqualError(t, msgs[0].Error, "exit 1")
	assert.Nil(t, msgs[1].Error)

	assert.True(t, tl.HasMessage("removal"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestTestLoggerConcurrentUse(t *testing.T) {
	tl := NewTestLogger()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tl.WithField("i", i).Debug("tick")
		}(i)
	}
	wg.Wait()

	assert.Len(t, tl.GetMessages(), 20)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogComponentStart(tl, "browser", map[string]interface{}{"headless": true})
	LogTransition(tl, "ready", "submitting")
	LogGeneration(tl, "a cat", "/tmp/cat.png", 10, 20, time.Second, nil)
	LogGeneration(tl, "a cat", "/tmp/cat.png", 0, 0, time.Second, errors.New("refused"))
	LogComponentStop(tl, "browser", "disconnect")

	assert.True(t, tl.HasMessage("Component started"))
	assert.True(t, tl.HasMessage("State transition"))
	assert.True(t, tl.HasMessage("Generation completed"))
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
}
