package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jobhub/internal/config"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

func testConfig(t *testing.T, providersYAML string) *config.Config {
	t.Helper()
	t.Setenv("JOBHUB_DATABASE_URL", "")
	t.Setenv("JOBHUB_REDIS_ADDR", "")
	t.Setenv("JOBHUB_LISTEN_PORT", "127.0.0.1:0")
	t.Setenv("JOBHUB_AGGREGATION_SCHEDULE", "off")
	t.Setenv("JOBHUB_EXPIRY_SCHEDULE", "off")
	t.Setenv("JOBHUB_SHUTDOWN_TIMEOUT", "2s")

	if providersYAML != "" {
		path := filepath.Join(t.TempDir(), "providers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(providersYAML), 0o600))
		t.Setenv("JOBHUB_PROVIDERS_FILE", path)
	} else {
		t.Setenv("JOBHUB_PROVIDERS_FILE", "")
	}
	return config.Load()
}

func TestNew_DevModeDefaults(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, ""), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, backendMemory, a.storeBackend)
	assert.Nil(t, a.redisClient)

	var names []string
	for _, p := range a.Orchestrator().Providers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"adzuna", "greenhouse", "remotive"}, names)
}

func TestNew_SkipsDisabledProviders(t *testing.T) {
	yaml := `
providers:
  greenhouse:
    enabled: false
  remotive:
    timeout: 3s
`
	a, err := New(context.Background(), testConfig(t, yaml), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	var names []string
	for _, p := range a.Orchestrator().Providers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"adzuna", "remotive"}, names)
}

func TestNew_BadProvidersFile(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.ProvidersFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load providers")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, ""), logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
