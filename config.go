package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/wildfunctions/acme/pkg/calib"
	"github.com/wildfunctions/acme/pkg/engine"
	"github.com/wildfunctions/acme/pkg/pool"
)

// calibConfig configures the calibration oracle and the driver around it.
type calibConfig struct {
	Forcing     string  `toml:"forcing" yaml:"forcing" json:"forcing"`
	Latitude    float64 `toml:"latitude" yaml:"latitude" json:"latitude"`
	Calibration string  `toml:"calibration" yaml:"calibration" json:"calibration"` // start:end
	Validation  string  `toml:"validation" yaml:"validation" json:"validation"`
	Objective   string  `toml:"objective" yaml:"objective" json:"objective"`
	Sampler     string  `toml:"sampler" yaml:"sampler" json:"sampler"`
	Samples     int     `toml:"samples" yaml:"samples" json:"samples"`
	Workers     int     `toml:"workers" yaml:"workers" json:"workers"`
	Complexes   int     `toml:"complexes" yaml:"complexes" json:"complexes"`
	DB          string  `toml:"db" yaml:"db" json:"db"`
	Resume      bool    `toml:"resume" yaml:"resume" json:"resume"`
	MetricsAddr string  `toml:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
	Test        bool    `toml:"test" yaml:"test" json:"test"`
	Progress    bool    `toml:"progress" yaml:"progress" json:"progress"`
}

// fileConfig is the layout of a -config file.
type fileConfig struct {
	Search      engine.Config `toml:"search" yaml:"search"`
	Calibration calibConfig   `toml:"calibration" yaml:"calibration"`
}

func defaultFileConfig() fileConfig {
	cfg := engine.DefaultConfig()
	cfg.OutDir = "."
	return fileConfig{
		Search: cfg,
		Calibration: calibConfig{
			Latitude:  51,
			Objective: calib.DefaultObjective,
			Sampler:   calib.DefaultSampler,
			Samples:   calib.DefaultSamples,
			Complexes: calib.DefaultComplexes,
		},
	}
}

// decodeConfigFile overlays a TOML or YAML file onto cfg. Keys missing from
// the file keep their current values.
func decodeConfigFile(path string, cfg *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}
	return nil
}

// bindFlags registers every option on fs, defaulting to the values in cfg.
func bindFlags(fs *flag.FlagSet, cfg *fileConfig) *string {
	s, c := &cfg.Search, &cfg.Calibration
	configPath := fs.String("config", "", "TOML or YAML config file; flags given explicitly override it")

	fs.StringVar(&s.Pool, "pool", s.Pool, "gene pool ("+strings.Join(pool.Names(), ", ")+")")
	fs.IntVar(&s.PoolSize, "poolsize", s.PoolSize, "number of parents in the search pool")
	fs.IntVar(&s.MaxAge, "maxage", s.MaxAge, "failed children before a parent may be replaced (0 = no aging)")
	fs.BoolVar(&s.Crossover, "crossover", s.Crossover, "enable crossover")
	fs.BoolVar(&s.AdaptiveStrategies, "adaptive", s.AdaptiveStrategies, "favour strategies that produced improvements")
	fs.IntVar(&s.MaxChanges, "maxchanges", s.MaxChanges, "max edits per mutation")
	fs.Float64Var(&s.Threshold, "threshold", s.Threshold, "gene inclusion probability of the create operator")
	fs.StringVar(&s.Reduce, "reduce", s.Reduce, "structure reduction (adjacent, reachable)")
	fs.StringVar(&s.CacheKey, "cachekey", s.CacheKey, "fitness cache key (raw, effective)")
	fs.Float64Var(&s.TargetFitness, "target", s.TargetFitness, "target likelihood of the first stage")
	fs.Float64Var(&s.ObjectiveIncrement, "increment", s.ObjectiveIncrement, "target increase per stage")
	fs.IntVar(&s.SearchIterations, "stages", s.SearchIterations, "number of search stages")
	fs.Float64Var(&s.MaxSeconds, "maxseconds", s.MaxSeconds, "time budget per stage in seconds (0 = unlimited)")
	fs.IntVar(&s.MaxEvaluations, "maxevals", s.MaxEvaluations, "oracle call budget of the run (0 = unlimited)")
	fs.Int64Var(&s.Seed, "seed", s.Seed, "random seed (0 = random)")
	fs.StringVar(&s.Format, "format", s.Format, "output format (text, json)")
	fs.BoolVar(&s.Verbose, "verbose", s.Verbose, "log every evaluation")
	fs.StringVar(&s.OutDir, "outdir", s.OutDir, "output directory for result files")

	fs.StringVar(&c.Forcing, "forcing", c.Forcing, "forcing CSV (date,prec,t_mean,t_min,t_max,discharge)")
	fs.Float64Var(&c.Latitude, "lat", c.Latitude, "catchment latitude in degrees")
	fs.StringVar(&c.Calibration, "calibration", c.Calibration, "calibration period YYYY-MM-DD:YYYY-MM-DD (empty = all)")
	fs.StringVar(&c.Validation, "validation", c.Validation, "validation period YYYY-MM-DD:YYYY-MM-DD")
	fs.StringVar(&c.Objective, "objective", c.Objective, "objective function ("+strings.Join(calib.ObjectiveNames(), ", ")+")")
	fs.StringVar(&c.Sampler, "sampler", c.Sampler, "calibration sampler ("+strings.Join(calib.SamplerNames(), ", ")+")")
	fs.IntVar(&c.Samples, "samples", c.Samples, "parameter sets per structure (lhs)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "parallel simulations (0 = auto)")
	fs.IntVar(&c.Complexes, "complexes", c.Complexes, "complexes (sce)")
	fs.StringVar(&c.DB, "db", c.DB, "SQLite database for runs and evaluated structures (empty = in memory)")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "seed the fitness cache from the database")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address")
	fs.BoolVar(&c.Test, "test", c.Test, "write results into a temporary directory")
	fs.BoolVar(&c.Progress, "progress", c.Progress, "show a progress bar over the evaluation budget")
	return configPath
}

// loadConfig parses args. Values come from the defaults, then the config
// file, then flags that were given explicitly.
func loadConfig(args []string) (fileConfig, error) {
	cfg := defaultFileConfig()
	fs := flag.NewFlagSet("acme", flag.ContinueOnError)
	configPath := bindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *configPath == "" {
		return cfg, nil
	}

	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
	if err := decodeConfigFile(*configPath, &cfg); err != nil {
		return cfg, err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return cfg, fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return cfg, nil
}
