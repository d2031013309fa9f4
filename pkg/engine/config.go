package engine

import (
	"fmt"

	"github.com/wildfunctions/acme/pkg/fitness"
	"github.com/wildfunctions/acme/pkg/genome"
	"github.com/wildfunctions/acme/pkg/pool"
	"github.com/wildfunctions/acme/pkg/strategy"
)

// Config holds all parameters for a structure search.
type Config struct {
	Pool               string  `toml:"pool" yaml:"pool" json:"pool"`
	PoolSize           int     `toml:"pool_size" yaml:"pool_size" json:"pool_size"`
	MaxAge             int     `toml:"max_age" yaml:"max_age" json:"max_age"` // 0 = no aging
	Crossover          bool    `toml:"crossover" yaml:"crossover" json:"crossover"`
	AdaptiveStrategies bool    `toml:"adaptive_strategies" yaml:"adaptive_strategies" json:"adaptive_strategies"`
	MaxChanges         int     `toml:"max_changes" yaml:"max_changes" json:"max_changes"`
	Threshold          float64 `toml:"threshold" yaml:"threshold" json:"threshold"`
	Reduce             string  `toml:"reduce" yaml:"reduce" json:"reduce"`          // "adjacent" or "reachable"
	CacheKey           string  `toml:"cache_key" yaml:"cache_key" json:"cache_key"` // "raw" or "effective"

	TargetFitness      float64 `toml:"target_fitness" yaml:"target_fitness" json:"target_fitness"`
	ObjectiveIncrement float64 `toml:"objective_increment" yaml:"objective_increment" json:"objective_increment"`
	SearchIterations   int     `toml:"search_iterations" yaml:"search_iterations" json:"search_iterations"`
	MaxSeconds         float64 `toml:"max_seconds" yaml:"max_seconds" json:"max_seconds"` // per stage, 0 = unlimited
	MaxEvaluations     int     `toml:"max_evaluations" yaml:"max_evaluations" json:"max_evaluations"`

	Seed    int64  `toml:"seed" yaml:"seed" json:"seed"`       // 0 = random
	Format  string `toml:"format" yaml:"format" json:"format"` // "text" or "json"
	Verbose bool   `toml:"verbose" yaml:"verbose" json:"verbose"`
	OutDir  string `toml:"outdir" yaml:"outdir" json:"outdir"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Pool:             "lumped",
		PoolSize:         5,
		MaxAge:           20,
		Crossover:        true,
		MaxChanges:       strategy.DefaultMaxChanges,
		Threshold:        pool.DefaultThreshold,
		Reduce:           genome.ReduceAdjacent.String(),
		CacheKey:         fitness.KeyRaw.String(),
		TargetFitness:    0.9,
		SearchIterations: 1,
		MaxSeconds:       600,
		Seed:             0,
		Format:           "text",
		Verbose:          false,
	}
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	if _, err := pool.Get(c.Pool); err != nil {
		return err
	}
	if _, err := genome.ParseReduceMode(c.Reduce); err != nil {
		return err
	}
	if _, err := fitness.ParseKeyMode(c.CacheKey); err != nil {
		return err
	}
	switch {
	case c.PoolSize < 1:
		return fmt.Errorf("pool size must be at least 1, got %d", c.PoolSize)
	case c.MaxAge < 0:
		return fmt.Errorf("max age must not be negative, got %d", c.MaxAge)
	case c.MaxChanges < 1:
		return fmt.Errorf("max changes must be at least 1, got %d", c.MaxChanges)
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("threshold must be within [0, 1], got %g", c.Threshold)
	case c.MaxSeconds < 0:
		return fmt.Errorf("max seconds must not be negative, got %g", c.MaxSeconds)
	case c.MaxEvaluations < 0:
		return fmt.Errorf("max evaluations must not be negative, got %d", c.MaxEvaluations)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format: %s (available: text, json)", c.Format)
	}
	return nil
}
