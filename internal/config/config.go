// Package config loads run configuration from YAML files and ITEROPT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Solver names understood by the runner.
const (
	SolverBrent  = "brent"
	SolverNewton = "newton"
	SolverMayfly = "mayfly"
)

// Start strategies.
const (
	StartDefault = "default" // the problem's start point
	StartRandom  = "random"  // uniform in the problem's box, drawn from Seed
)

// EnvPrefix prefixes environment overrides, e.g. ITEROPT_DATA_DIR or
// ITEROPT_DEFAULTS_MAX_ITERS.
const EnvPrefix = "ITEROPT"

// File is the content of a configuration file.
type File struct {
	// DataDir is where records and traces are stored.
	DataDir string `mapstructure:"data_dir"`
	// Workers limits how many runs of a batch execute at once (0 = no limit).
	Workers int `mapstructure:"workers"`
	// Defaults apply to every run that leaves a field unset.
	Defaults RunConfig `mapstructure:"defaults"`
	// Runs are executed by the batch command.
	Runs []RunConfig `mapstructure:"runs"`
}

// RunConfig describes a single optimization run.
type RunConfig struct {
	Name       string   `mapstructure:"name"`
	Problem    string   `mapstructure:"problem"`
	Solver     string   `mapstructure:"solver"`
	Dim        int      `mapstructure:"dim"` // 0 selects the problem's default
	MaxIters   uint64   `mapstructure:"max_iters"`
	TargetCost *float64 `mapstructure:"target_cost"`
	Seed       int64    `mapstructure:"seed"`

	// Start selects the initial parameter when not warm starting.
	Start string `mapstructure:"start"`
	// Perturb moves one coordinate of a warm start by U(-1, 1).
	Perturb bool `mapstructure:"perturb"`

	// ObserveEvery logs every n-th iteration; 0 disables iteration logging.
	ObserveEvery uint64 `mapstructure:"observe_every"`
	// Trace writes every iteration to the run's trace.jsonl.
	Trace bool `mapstructure:"trace"`

	Convergence ConvergenceConfig `mapstructure:"convergence"`
	Brent       BrentConfig       `mapstructure:"brent"`
	Newton      NewtonConfig      `mapstructure:"newton"`
	Mayfly      MayflyConfig      `mapstructure:"mayfly"`
}

// ConvergenceConfig configures the stalled-cost criterion.
type ConvergenceConfig struct {
	// Patience 0 disables the criterion.
	Patience  int     `mapstructure:"patience"`
	Threshold float64 `mapstructure:"threshold"`
}

// BrentConfig holds Brent settings. Lower == Upper == 0 selects the
// problem's search box.
type BrentConfig struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
	Eps   float64 `mapstructure:"eps"`
	Tol   float64 `mapstructure:"tol"`
}

// NewtonConfig holds Newton settings.
type NewtonConfig struct {
	Gamma float64 `mapstructure:"gamma"`
	// GradTol 0 disables the gradient-norm stop.
	GradTol  float64 `mapstructure:"grad_tol"`
	EvalCost bool    `mapstructure:"eval_cost"`
}

// MayflyConfig holds Mayfly settings.
type MayflyConfig struct {
	Generations int `mapstructure:"generations"`
	Population  int `mapstructure:"population"`
}

// Load reads the configuration at path, applies ITEROPT_* environment
// overrides and fills every key a run leaves out from the defaults section.
// An empty path loads defaults and environment only.
func Load(path string) (*File, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &File{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	runs, err := mergeRuns(v)
	if err != nil {
		return nil, err
	}
	cfg.Runs = runs
	return cfg, nil
}

// mergeRuns decodes every entry of runs on top of the defaults section.
// Merging happens key by key, so a run that sets a field to zero or false
// keeps that value instead of inheriting the default.
func mergeRuns(v *viper.Viper) ([]RunConfig, error) {
	raw := v.Get("runs")
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("runs must be a list, got %T", raw)
	}

	runs := make([]RunConfig, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("runs[%d] must be a mapping, got %T", i, entry)
		}
		// AllSettings builds fresh maps on every call; MergeConfigMap
		// stores nested maps by reference.
		defaults, _ := v.AllSettings()["defaults"].(map[string]any)

		rv := viper.New()
		if err := rv.MergeConfigMap(defaults); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
		if err := rv.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
		var run RunConfig
		if err := rv.Unmarshal(&run); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Default returns the built-in configuration.
func Default() *File {
	return &File{
		DataDir:  "./data",
		Defaults: DefaultRun(),
	}
}

// DefaultRun returns the built-in run defaults.
func DefaultRun() RunConfig {
	return RunConfig{
		Problem:      "brent-example",
		Solver:       SolverBrent,
		MaxIters:     1000,
		Seed:         42,
		Start:        StartDefault,
		ObserveEvery: 10,
		Convergence:  ConvergenceConfig{Threshold: 1e-8},
		Brent:        BrentConfig{Eps: math.Sqrt(math.Nextafter(1, 2) - 1), Tol: 1e-5},
		Newton:       NewtonConfig{Gamma: 1, GradTol: 1e-10, EvalCost: true},
		Mayfly:       MayflyConfig{Generations: 100, Population: 30},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultRun()

	v.SetDefault("data_dir", "./data")
	v.SetDefault("workers", 0)

	v.SetDefault("defaults.problem", d.Problem)
	v.SetDefault("defaults.solver", d.Solver)
	v.SetDefault("defaults.dim", d.Dim)
	v.SetDefault("defaults.max_iters", d.MaxIters)
	v.SetDefault("defaults.seed", d.Seed)
	v.SetDefault("defaults.start", d.Start)
	v.SetDefault("defaults.perturb", d.Perturb)
	v.SetDefault("defaults.observe_every", d.ObserveEvery)
	v.SetDefault("defaults.trace", d.Trace)

	v.SetDefault("defaults.convergence.patience", d.Convergence.Patience)
	v.SetDefault("defaults.convergence.threshold", d.Convergence.Threshold)

	v.SetDefault("defaults.brent.lower", d.Brent.Lower)
	v.SetDefault("defaults.brent.upper", d.Brent.Upper)
	v.SetDefault("defaults.brent.eps", d.Brent.Eps)
	v.SetDefault("defaults.brent.tol", d.Brent.Tol)

	v.SetDefault("defaults.newton.gamma", d.Newton.Gamma)
	v.SetDefault("defaults.newton.grad_tol", d.Newton.GradTol)
	v.SetDefault("defaults.newton.eval_cost", d.Newton.EvalCost)

	v.SetDefault("defaults.mayfly.generations", d.Mayfly.Generations)
	v.SetDefault("defaults.mayfly.population", d.Mayfly.Population)
}

// Label names the run in logs and job listings.
func (r RunConfig) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Problem + "/" + r.Solver
}

// Validate checks the fields that do not depend on the problem registry.
func (r RunConfig) Validate() error {
	var errs []error
	if r.Problem == "" {
		errs = append(errs, errors.New("problem is required"))
	}
	switch r.Solver {
	case SolverBrent, SolverNewton, SolverMayfly:
	default:
		errs = append(errs, fmt.Errorf("unknown solver %q (want %s, %s or %s)",
			r.Solver, SolverBrent, SolverNewton, SolverMayfly))
	}
	switch r.Start {
	case "", StartDefault, StartRandom:
	default:
		errs = append(errs, fmt.Errorf("unknown start %q (want %s or %s)", r.Start, StartDefault, StartRandom))
	}
	if r.Dim < 0 {
		errs = append(errs, errors.New("dim must not be negative"))
	}
	if r.Convergence.Patience < 0 {
		errs = append(errs, errors.New("convergence.patience must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid run %s: %w", r.Label(), errors.Join(errs...))
	}
	return nil
}

// Validate checks every run of the file.
func (f *File) Validate() error {
	if f.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	var errs []error
	for _, r := range f.Runs {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
