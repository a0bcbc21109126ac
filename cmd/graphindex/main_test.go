package main

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/graphindex/internal/progress"
)

func newContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	app := &cli.App{Flags: []cli.Flag{
		&cli.StringFlag{Name: "root"},
		&cli.StringFlag{Name: "name"},
		&cli.StringSliceFlag{Name: "exclude"},
		&cli.BoolFlag{Name: "no-embed"},
	}}
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	for k, v := range args {
		require.NoError(t, set.Set(k, v))
	}
	return cli.NewContext(app, set, nil)
}

func TestLoadConfigFallsBackToDefaultWithoutKDLFile(t *testing.T) {
	dir := t.TempDir()
	c := newContext(t, map[string]string{"root": dir, "name": "demo"})

	cfg, root, err := loadConfig(c)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, root)
	assert.Equal(t, abs, cfg.Project.Root)
}

func TestLoadConfigAppliesNoEmbedOverride(t *testing.T) {
	dir := t.TempDir()
	c := newContext(t, map[string]string{"root": dir, "no-embed": "true"})

	cfg, _, err := loadConfig(c)
	require.NoError(t, err)
	assert.True(t, cfg.Embedding.Disabled)
}

func TestLoadConfigAppendsExcludeOverrides(t *testing.T) {
	dir := t.TempDir()
	c := newContext(t, map[string]string{"root": dir})
	require.NoError(t, c.Set("exclude", "**/fixtures/**"))

	cfg, _, err := loadConfig(c)
	require.NoError(t, err)
	assert.Contains(t, cfg.Exclude, "**/fixtures/**")
}

func TestPhaseDescriptionCoversEveryPhase(t *testing.T) {
	for _, phase := range []progress.Phase{
		progress.PhaseDiscovery,
		progress.PhaseParsing,
		progress.PhaseImporting,
		progress.PhaseResolving,
		progress.PhaseComplete,
		progress.PhaseFailed,
	} {
		assert.NotEmpty(t, phaseDescription(phase))
	}
	assert.Equal(t, "unknown", phaseDescription(progress.Phase("unknown")))
}
