package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/postmottak/pkg/telemetry"
)

func TestConfigDefaults(t *testing.T) {
	var c telemetry.Config
	require.NoError(t, c.Finalize(nil))

	assert.False(t, c.Enabled)
	assert.Equal(t, "localhost:4317", c.Endpoint)
	assert.Equal(t, "postmottak", c.ServiceName)
	assert.Equal(t, 1.0, c.SampleRatio)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_OTEL_ENABLED", "true")
	t.Setenv("TEST_OTEL_ENDPOINT", "collector:4317")

	c := telemetry.Config{}
	require.NoError(t, c.Finalize(&telemetry.Env{Enabled: "TEST_OTEL_ENABLED", Endpoint: "TEST_OTEL_ENDPOINT"}))

	assert.True(t, c.Enabled)
	assert.Equal(t, "collector:4317", c.Endpoint)
}

func TestConfigRejectsRatio(t *testing.T) {
	c := telemetry.Config{SampleRatio: 2}
	assert.Error(t, c.Finalize(nil))
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{}, "0.1.0", "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := telemetry.Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestInitEnabled(t *testing.T) {
	cfg := telemetry.Config{Enabled: true, Insecure: true}
	require.NoError(t, cfg.Finalize(nil))

	shutdown, err := telemetry.Init(context.Background(), cfg, "0.1.0", "test")
	require.NoError(t, err)

	_, span := telemetry.Tracer().Start(context.Background(), "cycle")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
