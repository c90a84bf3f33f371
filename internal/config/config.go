package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/diffeq/internal/solver"
)

const (
	DefaultAbstol   = 1e-6
	DefaultReltol   = 1e-3
	DefaultDtMin    = 1e-12
	DefaultMaxSteps = 100000
)

// Config is the YAML-facing run configuration consumed by the CLI.
type Config struct {
	Problem   string    `yaml:"problem"`
	Algorithm string    `yaml:"algorithm"`
	Abstol    float64   `yaml:"abstol"`
	Reltol    float64   `yaml:"reltol"`
	DtInitial float64   `yaml:"dt_initial"`
	DtMin     float64   `yaml:"dt_min"`
	DtMax     float64   `yaml:"dt_max"`
	MaxSteps  int       `yaml:"max_steps"`
	T0        *float64  `yaml:"t0"`
	TF        *float64  `yaml:"tf"`
	SaveAt    []float64 `yaml:"save_at"`
	Seed      uint64    `yaml:"seed"`

	// Ensemble settings; Runs <= 1 means a single integration.
	Runs    int `yaml:"runs"`
	Workers int `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem:   "decay",
		Algorithm: "default",
		Abstol:    DefaultAbstol,
		Reltol:    DefaultReltol,
		DtMin:     DefaultDtMin,
		MaxSteps:  DefaultMaxSteps,
		Runs:      1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Options translates the file configuration into per-run solver options.
func (c *Config) Options() solver.Options {
	return solver.Options{
		Algorithm: c.Algorithm,
		Abstol:    c.Abstol,
		Reltol:    c.Reltol,
		DtInitial: c.DtInitial,
		DtMin:     c.DtMin,
		DtMax:     c.DtMax,
		MaxSteps:  c.MaxSteps,
		SaveAt:    c.SaveAt,
		Seed:      c.Seed,
	}
}
