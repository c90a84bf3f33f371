package config

import "sort"

// Presets are ready-made run configurations for the catalog problems.
func Presets() map[string]*Config {
	tight := func(c *Config) *Config {
		c.Abstol = 1e-8
		c.Reltol = 1e-6
		return c
	}

	robertson := DefaultConfig()
	robertson.Problem = "robertson"
	robertson.Algorithm = "bdf"

	delayed := DefaultConfig()
	delayed.Problem = "delayed_logistic"

	gbm := DefaultConfig()
	gbm.Problem = "gbm"
	gbm.Algorithm = "em"
	gbm.DtInitial = 1e-3
	gbm.Runs = 100
	gbm.Workers = 4

	lorenz := tight(DefaultConfig())
	lorenz.Problem = "lorenz"

	stiff := DefaultConfig()
	stiff.Problem = "vanderpol"
	stiff.Algorithm = "bdf"

	return map[string]*Config{
		"robertson": robertson,
		"delayed":   delayed,
		"gbm":       gbm,
		"lorenz":    lorenz,
		"stiff":     stiff,
	}
}

func PresetNames() []string {
	p := Presets()
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
