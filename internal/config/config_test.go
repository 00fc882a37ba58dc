package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
system:
  N: 4
  R: 3
  cycle_deadline_ms: 500
transport:
  bind_host: 127.0.0.1
  bind_port: 6000
  worker_port_start: 7000
sim:
  jitter_ms_min: 5
  jitter_ms_max: 30
  loss_probability: 0.1
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, "app_config.yaml", validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.System.N)
	require.Equal(t, 3, cfg.System.R)
	require.Equal(t, 500, cfg.System.CycleDeadlineMs)
	require.Equal(t, "127.0.0.1", cfg.Transport.BindHost)
	require.Equal(t, 7000, cfg.Transport.WorkerPortStart)
	require.InDelta(t, 0.1, cfg.Sim.LossProbability, 1e-9)
}

func TestLoadRejectsInvalidR(t *testing.T) {
	path := writeTemp(t, "app_config.yaml", `
system:
  N: 4
  R: 5
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingN(t *testing.T) {
	path := writeTemp(t, "app_config.yaml", `system: {}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
