package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSceneCmd_PrintsDefault(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "scene")
	require.NoError(t, err)

	s, err := scene.Load(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	assert.Equal(t, scene.Default(), s)
}

func TestSceneCmd_RejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("towers:\n  - period: -1s\n"), 0o600))
	_, err := execute(t, "scene", path)
	require.Error(t, err)
}

func TestRunCmd_Frames(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_LOG_FORMAT", "json")
	t.Setenv("OTEL_LOG_LEVEL", "info")

	out, err := execute(t, "run", "--frames", "5", "--tick-rate", "1000", "--spawn-target-every", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "simulation created")
	assert.Contains(t, out, "simulation finished")
}

func TestRunCmd_RejectsArgs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "run", "extra")
	require.Error(t, err)
}
