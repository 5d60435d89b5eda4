//
// (C) Copyright 2021-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package promexp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vine-io/scst/fault"
	"github.com/vine-io/scst/fault/code"
	"github.com/vine-io/scst/logging"
)

type (
	// RegMonFn defines a function signature for registering a Prometheus
	// monitor.
	RegMonFn func(context.Context, logging.Logger) error

	// ExporterConfig defines the configuration for the Prometheus exporter.
	ExporterConfig struct {
		Port     int
		Title    string
		Register RegMonFn
	}
)

// ScstTelemetryPort specifies the default port for SCST telemetry.
const ScstTelemetryPort = 9195

// FaultBadPort indicates an exporter port outside the valid range.
func FaultBadPort(port int) *fault.Fault {
	return &fault.Fault{
		Domain:      "telemetry",
		Code:        code.TelemetryBadPort,
		Description: fmt.Sprintf("invalid exporter config: bad port %d", port),
		Resolution:  fmt.Sprintf("set the exporter port to a value between 1 and 65535, e.g. %d", ScstTelemetryPort),
	}
}

// StartExporter starts the Prometheus exporter.
func StartExporter(ctx context.Context, log logging.Logger, cfg *ExporterConfig) (func(), error) {
	if cfg == nil {
		return nil, errors.New("invalid exporter config: nil config")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, FaultBadPort(cfg.Port)
	}

	if cfg.Register == nil {
		return nil, errors.New("invalid exporter config: nil register function")
	}

	if err := cfg.Register(ctx, log); err != nil {
		return nil, errors.Wrap(err, "failed to register scst monitor")
	}

	listenAddress := fmt.Sprintf("0.0.0.0:%d", cfg.Port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer, promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		num, err := w.Write([]byte(fmt.Sprintf(`<html>
				<head><title>%s</title></head>
				<body>
				<h1>%s</h1>
				<p><a href="/metrics">Metrics</a></p>
				</body>
				</html>`, cfg.Title, cfg.Title)))
		if err != nil {
			log.Errorf("%d: %s", num, err)
		}
	})
	srv := http.Server{Addr: listenAddress, Handler: mux}

	// http listener is a blocking call
	go func() {
		log.Infof("Listening on %s", listenAddress)
		err := srv.ListenAndServe()
		log.Infof("Prometheus web exporter stopped: %s", err.Error())
	}()

	return func() {
		log.Debug("Shutting down Prometheus web exporter")

		// When this cleanup function is called, the original context
		// will probably have already been canceled.
		timedCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := srv.Shutdown(timedCtx); err != nil {
			log.Noticef("HTTP server didn't shut down within timeout: %s", err.Error())
		}
	}, nil
}
