package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experimentYAML = `
name: ITN by IRS
base: "<scenario seed='@seed@'>@itn@ @irs@ @model@</scenario>"
sweeps:
  itn:
    itn80: {"@itn@": 80}
    itn90: {"@itn@": 90}
  irs:
    irs66: {"@irs@": "66"}
    irs77: {"@irs@": "77"}
  model:
    m1: {"@model@": "model1"}
    m2: {"@model@": "model2"}
    m3: {"@model@": "model3"}
combinations:
  - [itn, irs]
  - [itn80, irs66]
  - [itn80, irs77]
  - [itn90, irs66]
`

// run executes the CLI with an isolated config and data directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OMSWEEP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("OMSWEEP_OUTPUT_DIR", "")
	t.Setenv("OMSWEEP_LOG_LEVEL", "error")
	t.Setenv("OMSWEEP_SEED_FLOOR", "")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "missing.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeExperiment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(experimentYAML), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "omsweep vdev\n", out)
}

func TestExpand(t *testing.T) {
	path := writeExperiment(t)
	outDir := filepath.Join(t.TempDir(), "scenarios")

	out, err := run(t, "expand", path, "-o", outDir, "--seed")
	require.NoError(t, err)
	assert.Equal(t, "9 scenarios generated\n", out)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 10, "9 scenarios plus manifest.csv")

	first, err := os.ReadFile(filepath.Join(outDir, "scenario1.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "seed='1009'")
	assert.NotContains(t, string(first), "@")

	csv, err := os.ReadFile(filepath.Join(outDir, "manifest.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "file,seed,irs,itn,model\n"))
}

func TestExpand_FlagsOverrideConfig(t *testing.T) {
	path := writeExperiment(t)
	outDir := t.TempDir()

	_, err := run(t, "expand", path, "-o", outDir, "--pattern", "run_%d.xml", "--no-manifest", "--no-record",
		"--seed", "--seed-floor", "10")
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(outDir, "run_1.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "seed='11'")
	_, err = os.Stat(filepath.Join(outDir, "manifest.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestExpand_ZeroSeedFloorRejected(t *testing.T) {
	outDir := t.TempDir()
	_, err := run(t, "expand", writeExperiment(t), "-o", outDir, "--seed", "--seed-floor", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed-floor")

	_, err = os.Stat(filepath.Join(outDir, "scenario1.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestExpand_SeedWithoutPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noseed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base": "<x/>"}`), 0o644))

	_, err := run(t, "expand", path, "-o", t.TempDir(), "--seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}

func TestExpand_MissingFile(t *testing.T) {
	_, err := run(t, "expand", filepath.Join(t.TempDir(), "nope.yaml"), "-o", t.TempDir())
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", writeExperiment(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Experiment: ITN by IRS")
	assert.Contains(t, out, "Scenarios:  9")
	assert.Contains(t, out, "model: m1, m2, m3")
	assert.Contains(t, out, "Fully factorial: model")
}

func TestPreview(t *testing.T) {
	out, err := run(t, "preview", writeExperiment(t), "-n", "2", "--seed")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "# scenario "))
	assert.Contains(t, out, "# scenario 1 seed=1009")
}

func TestRuns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OMSWEEP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("OMSWEEP_LOG_LEVEL", "error")
	cfgPath := filepath.Join(dir, "missing.yaml")
	path := writeExperiment(t)

	exec := func(args ...string) string {
		var out bytes.Buffer
		cmd := newRootCmd(&out)
		cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Equal(t, "No runs recorded yet.\n", exec("runs"))

	exec("expand", path, "-o", filepath.Join(dir, "out"))
	listing := exec("runs")
	assert.Contains(t, listing, "ITN by IRS")
	assert.Contains(t, listing, "completed")

	id := strings.Fields(strings.Split(listing, "\n")[1])[0]
	show := exec("runs", "show", id)
	assert.Contains(t, show, `"id": "`+id+`"`)
	assert.Equal(t, 9, strings.Count(show, `"digest"`))
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("file_pattern: fixed.xml\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "version"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file_pattern")
}
