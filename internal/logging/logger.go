package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/2beens/withings2weeks/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const SentryDSNEnv = "WITHINGS2WEEKS_SENTRY_DSN"

type LoggerSetupParams struct {
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
	Environment   string
	SentryDSN     string
	// Console is where logs go when no file is set; stderr when nil.
	Console io.Writer
}

// Setup configures the global logrus logger. The returned func flushes
// Sentry and closes the log file and must be called before exiting.
func Setup(params LoggerSetupParams) func() {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: params.LogFileName == "",
		})
	}

	logrus.SetLevel(GetLevel(params.LogLevel))

	var closers []func()
	if params.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Environment: params.Environment,
			Dsn:         params.SentryDSN,
		})
		if err != nil {
			logrus.Errorf("sentry.Init: %s", err)
		} else {
			logrus.AddHook(NewSentryHook([]logrus.Level{
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
			}))
			closers = append(closers, func() {
				sentry.Flush(2 * time.Second)
			})
			logrus.Debugln("sentry set up successfully")
		}
	}

	console := params.Console
	if console == nil {
		console = os.Stderr
	}

	if params.LogFileName == "" {
		logrus.SetOutput(console)
		return closeAll(closers)
	}

	if !strings.HasSuffix(params.LogFileName, ".log") {
		params.LogFileName += ".log"
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   params.LogFileName,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		LocalTime:  false, // false -> use UTC
		Compress:   true,
	}
	closers = append(closers, func() {
		_ = lumberJackLogger.Close()
	})

	if params.LogToStdout {
		logrus.SetOutput(pkg.NewCombinedWriter(console, lumberJackLogger))
		logrus.Debugln("writing logs to file and console")
	} else {
		logrus.SetOutput(lumberJackLogger)
	}

	return closeAll(closers)
}

func closeAll(closers []func()) func() {
	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "info":
		return logrus.InfoLevel
	case "trace":
		return logrus.TraceLevel
	case "warn", "warning":
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
