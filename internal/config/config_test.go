package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/diffeq/internal/problems"
	"github.com/san-kum/diffeq/internal/registry"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Problem = "lorenz"
	cfg.Algorithm = "dopri5"
	cfg.Abstol = 1e-9
	cfg.SaveAt = []float64{1, 2, 3}
	tf := 15.0
	cfg.TF = &tf

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("problem: harmonic\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "harmonic", cfg.Problem)
	assert.Equal(t, DefaultAbstol, cfg.Abstol)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, 1, cfg.Runs)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("problem: [unclosed\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestOptionsTranslation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = "bdf"
	cfg.DtMax = 0.5
	cfg.Seed = 9

	opts := cfg.Options()
	assert.Equal(t, "bdf", opts.Algorithm)
	assert.Equal(t, DefaultAbstol, opts.Abstol)
	assert.Equal(t, 0.5, opts.DtMax)
	assert.Equal(t, uint64(9), opts.Seed)
}

func TestPresetsReferenceKnownProblemsAndAlgorithms(t *testing.T) {
	reg := registry.New()
	for name, cfg := range Presets() {
		spec, err := problems.Get(cfg.Problem)
		require.NoError(t, err, "preset %q", name)

		_, _, err = reg.Resolve(spec.Kind, cfg.Algorithm)
		assert.NoError(t, err, "preset %q", name)
		assert.Greater(t, cfg.MaxSteps, 0, "preset %q", name)
	}
}

func TestPresetNamesSorted(t *testing.T) {
	names := PresetNames()
	assert.Equal(t, []string{"delayed", "gbm", "lorenz", "robertson", "stiff"}, names)
}
