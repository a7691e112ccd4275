package main

import (
	"fmt"
	"os"

	"github.com/notargets/cellfield/assembly"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/mesh"
	"gopkg.in/yaml.v3"
)

// Config is the YAML problem file.
type Config struct {
	Mesh     mesh.CartesianDescriptor `yaml:"mesh"`
	Problem  string                   `yaml:"problem"`
	Boundary []string                 `yaml:"boundary"` // Dirichlet tags, all sides when empty
	Degree   int                      `yaml:"degree"`   // quadrature degree, 0 for 2*order
	Assembly assembly.Config          `yaml:"assembly"`
	Snapshot string                   `yaml:"snapshot"` // CBOR output path
}

func defaultConfig() Config {
	return Config{
		Mesh:     mesh.UnitSquare(2, 1),
		Problem:  "linear-x",
		Assembly: assembly.DefaultConfig(),
	}
}

// loadConfig reads path over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// manufactured is an exact solution u with its source f = -lap(u).
type manufactured struct {
	u, f field.Field
}

func problemFor(name string, dim int) (manufactured, error) {
	switch name {
	case "linear-x":
		return manufactured{u: field.NewScalarField(dim, func(x field.Point) float64 { return x[0] }, nil)}, nil
	case "linear":
		return manufactured{u: field.NewScalarField(dim, func(x field.Point) float64 {
			var s float64
			for _, v := range x {
				s += v
			}
			return s
		}, nil)}, nil
	case "quadratic":
		return manufactured{
			u: field.NewScalarField(dim, func(x field.Point) float64 {
				var s float64
				for _, v := range x {
					s += v * v
				}
				return s
			}, nil),
			f: field.NewConstantScalar(-2 * float64(dim)),
		}, nil
	}
	return manufactured{}, fmt.Errorf("unknown problem %q (linear-x, linear, quadratic)", name)
}
