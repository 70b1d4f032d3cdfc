package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantfold/stratbox/config"
	"github.com/quantfold/stratbox/logger"
	"github.com/quantfold/stratbox/mcpserver"
	"github.com/quantfold/stratbox/policy"
	"github.com/quantfold/stratbox/sandbox"
)

// TestIntegrationConfigLoggerEngine tests the integration between config,
// logger, policy, and the execution engine.
func TestIntegrationConfigLoggerEngine(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			MaxTimeoutSec:     30,
			DefaultTimeoutSec: 10,
			GracePeriodMS:     500,
			OutputCapacityKB:  64,
			MaxConcurrent:     4,
			MaxSteps:          10_000_000,
			DefaultTier:       "analysis",
		},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
	}

	log, err := logger.NewFromConfig(cfg)
	require.NoError(t, err)
	defer log.Sync()

	engine := sandbox.NewCoordinator(log, sandbox.Options{
		MaxTimeout:     cfg.MaxTimeout(),
		GracePeriod:    cfg.GracePeriod(),
		OutputCapacity: cfg.OutputCapacity(),
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
		MaxSteps:       cfg.Sandbox.MaxSteps,
	}, policy.NewTable(), nil)

	t.Run("AnalysisStrategyEndToEnd", func(t *testing.T) {
		res, err := engine.Run(context.Background(), sandbox.ExecutionRequest{
			Code: "fast = ta.sma(close, 2)\n" +
				"slow = ta.sma(close, 3)\n" +
				"signal = \"buy\" if fast[-1] > slow[-1] else \"hold\"\n" +
				"print(\"signal:\", signal)\n" +
				"result = {\"signal\": signal, \"last_fast\": fast[-1]}",
			Bindings: map[string]sandbox.Value{
				"close": sandbox.ListOf(
					sandbox.FloatOf(100.0),
					sandbox.FloatOf(101.0),
					sandbox.FloatOf(103.0),
					sandbox.FloatOf(106.0),
				),
			},
			Timeout: 5 * time.Second,
			Tier:    policy.TierAnalysis,
		})
		require.NoError(t, err)

		require.True(t, res.Succeeded, "error: %v", res.Err)
		require.NotNil(t, res.Result)
		require.Equal(t, sandbox.KindMap, res.Result.Kind)
		assert.Equal(t, sandbox.StringOf("buy"), res.Result.Map["signal"])
		assert.Equal(t, "signal: buy\n", res.Stdout)
	})

	t.Run("EngineBehindMCPServer", func(t *testing.T) {
		server, err := mcpserver.New(cfg, zaptest.NewLogger(t), engine)
		require.NoError(t, err)
		require.NotNil(t, server)
		assert.NotNil(t, server.GetMCPServer())
	})
}
