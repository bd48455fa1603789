package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.FatalLevel, GetLevel("fatal"))
	assert.Equal(t, logrus.InfoLevel, GetLevel("info"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(""))
	assert.Equal(t, logrus.InfoLevel, GetLevel("loud"))
}

func TestSetup_Console(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	console := &bytes.Buffer{}
	cleanup := Setup(LoggerSetupParams{
		LogLevel: "warn",
		Console:  console,
	})
	defer cleanup()

	logrus.Info("hidden")
	logrus.Warn("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestSetup_FileAndConsole(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	logPath := filepath.Join(t.TempDir(), "w2w")
	console := &bytes.Buffer{}
	cleanup := Setup(LoggerSetupParams{
		LogFileName:   logPath,
		LogToStdout:   true,
		LogLevel:      "info",
		LogFormatJSON: true,
		Console:       console,
	})

	logrus.WithField("week", "2024W01").Info("aggregated")
	cleanup()

	content, err := os.ReadFile(logPath + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), `"week":"2024W01"`)
	assert.Contains(t, string(content), `"msg":"aggregated"`)
	assert.Contains(t, console.String(), `"msg":"aggregated"`)
}

func TestSentryHook_Fire(t *testing.T) {
	var captured []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			captured = append(captured, event)
			return nil
		},
	})
	require.NoError(t, err)

	hook := NewSentryHook([]logrus.Level{logrus.ErrorLevel})
	hook.hub = sentry.NewHub(client, sentry.NewScope())
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)

	logger.WithError(errors.New("token refresh failed")).WithField("attempt", 2).Error("fetch aborted")
	logger.Warn("not forwarded")

	require.Len(t, captured, 1)
	event := captured[0]
	assert.Equal(t, sentry.LevelError, event.Level)
	assert.Equal(t, "fetch aborted", event.Message)
	require.Len(t, event.Exception, 1)
	assert.Equal(t, "token refresh failed", event.Exception[0].Value)
	assert.Equal(t, 2, event.Extra["attempt"])
}
