package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/2beens/withings2weeks/internal/auth"
	"github.com/2beens/withings2weeks/internal/config"
	"github.com/2beens/withings2weeks/internal/logging"
	"github.com/2beens/withings2weeks/internal/telemetry/metrics"
	"github.com/2beens/withings2weeks/internal/telemetry/tracing"
	"github.com/2beens/withings2weeks/pkg"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName      = "withings2weeks"
	metricsSubsystem = "cli"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

// session holds what a single command invocation sets up and must tear down.
type session struct {
	cfg            *config.Config
	registry       *prometheus.Registry
	metricsManager *metrics.Manager
	closers        []func()
}

// newSession loads the config and brings up logging, tracing and metrics.
// A missing config file is tolerated unless requireConfig is set or the
// path was given explicitly.
func newSession(cmd *cobra.Command, gf *globalFlags, requireConfig bool) (*session, error) {
	cfg, err := config.Load(gf.configPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && !requireConfig && gf.configPath == "":
		log.Debugf("%s, using defaults", err)
		cfg = config.Default()
	case err != nil:
		return nil, err
	}

	if gf.logLevel != "" {
		cfg.Logging.Level = gf.logLevel
	}

	s := &session{cfg: cfg}
	s.closers = append(s.closers, logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Logging.File,
		LogToStdout:   cfg.Logging.ToStdout,
		LogLevel:      cfg.Logging.Level,
		LogFormatJSON: cfg.Logging.JSON,
		Environment:   serviceName,
		SentryDSN:     os.Getenv(logging.SentryDSNEnv),
		Console:       cmd.ErrOrStderr(),
	}))

	otelShutdown, err := tracing.HoneycombSetup(cfg.Telemetry.HoneycombEnabled, serviceName)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, otelShutdown)

	s.registry = metrics.SetupPrometheus()
	s.metricsManager = metrics.NewManager(serviceName, metricsSubsystem, s.registry)

	return s, nil
}

func (s *session) httpClient() *http.Client {
	return &http.Client{
		Timeout:   s.cfg.Withings.API.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (s *session) authService() (*auth.Service, error) {
	if err := s.cfg.ValidateOAuth(); err != nil {
		return nil, err
	}
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	log.Debugf("using token file: %s", tokenPath)

	oauthCfg := s.cfg.Withings.OAuth
	return auth.NewService(auth.ServiceParams{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		RedirectURI:  oauthCfg.RedirectURI,
		AuthURL:      s.cfg.Withings.API.AuthURL,
		BaseURL:      s.cfg.Withings.API.BaseURL,
		HTTPClient:   s.httpClient(),
		Store:        auth.NewFileStore(tokenPath),
		Metrics:      s.metricsManager,
	}), nil
}

// writeMetrics dumps the registry when a metrics file is configured.
func (s *session) writeMetrics() {
	if err := metrics.WriteTextfile(s.cfg.Telemetry.MetricsFile, s.registry); err != nil {
		log.Errorf("%s", err)
		return
	}
	if s.cfg.Telemetry.MetricsFile != "" {
		log.Debugf("metrics written to %s", s.cfg.Telemetry.MetricsFile)
	}
}

// close runs the closers in reverse order, so logging goes last.
func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func requireFile(path string) error {
	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return fmt.Errorf("input path %s: %w", path, err)
	}
	if !exists {
		return fmt.Errorf("input file does not exist: %s: %w", path, os.ErrNotExist)
	}
	return nil
}
