package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func SetupPrometheus() *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	// build info only, runtime and process metrics mean little for a single run
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
	)

	return promRegistry
}

// WriteTextfile dumps the registry in the node exporter textfile collector format.
func WriteTextfile(path string, reg *prometheus.Registry) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
