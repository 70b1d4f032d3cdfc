// Package main is the entry point for the Stratbox MCP server.
//
// The Stratbox server executes untrusted, user-authored strategy code in
// per-run sandboxes: a capability policy bounds what the code may reference,
// a resource governor bounds how long and how hard it may run, and bounded
// capture buffers bound how much it may print. The server supports both
// stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/quantfold/stratbox/config"
	"github.com/quantfold/stratbox/logger"
	"github.com/quantfold/stratbox/mcpserver"
	"github.com/quantfold/stratbox/metrics"
	"github.com/quantfold/stratbox/policy"
	"github.com/quantfold/stratbox/sandbox"
)

// newEngine assembles the execution engine from loaded configuration.
func newEngine(cfg *config.Config, log *zap.Logger, table *policy.Table, m *metrics.Metrics) sandbox.Engine {
	return sandbox.NewCoordinator(log, sandbox.Options{
		MaxTimeout:     cfg.MaxTimeout(),
		GracePeriod:    cfg.GracePeriod(),
		OutputCapacity: cfg.OutputCapacity(),
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
		MaxSteps:       cfg.Sandbox.MaxSteps,
	}, table, m)
}

func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Engine metrics on the default registry
			newMetrics,

			// Immutable capability policy table
			policy.NewTable,

			// Execution engine
			newEngine,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
