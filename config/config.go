// Package config reads the YAML training configuration of the madtree
// command: where rows come from, how the tree is grown and where the model
// is stored.
package config

import (
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/madlib/archived-madlib-sub001/binning"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset/csvsource"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/store"
)

// Tasks
const (
	Classification = "classification"
	Regression     = "regression"
)

// Source kinds
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite3"
	SourcePostgres = "postgres"
)

// Config is a training run.
type Config struct {
	// Model is the name the trained tree is stored under.
	Model string `yaml:"model"`

	// Task is "classification" or "regression".
	Task string `yaml:"task"`

	Source   SourceConfig  `yaml:"source"`
	Tree     TreeConfig    `yaml:"tree"`
	Binning  BinningConfig `yaml:"binning"`
	Store    store.Options `yaml:"store"`
	LogLevel string        `yaml:"log_level"`
}

// SourceConfig describes the training rows.
type SourceConfig struct {
	Kind string `yaml:"kind"`

	// Path is the CSV file.
	Path string `yaml:"path"`

	// DSN, Table, Where and PartitionKey configure a database source.
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	Where        string `yaml:"where"`
	PartitionKey string `yaml:"partition_key"`

	Categorical []string `yaml:"categorical"`
	Continuous  []string `yaml:"continuous"`
	Response    string   `yaml:"response"`
	Weight      string   `yaml:"weight"`
	NullTokens  []string `yaml:"null_tokens"`
}

// TreeConfig holds the growth and pruning parameters.
type TreeConfig struct {
	Criterion      string  `yaml:"criterion"`
	MaxDepth       int     `yaml:"max_depth"`
	MinSplit       int     `yaml:"min_split"`
	MinBucket      int     `yaml:"min_bucket"`
	MaxSurrogates  int     `yaml:"max_surrogates"`
	RandomFeatures int     `yaml:"n_random_features"`
	Seed           uint64  `yaml:"seed"`
	CP             float64 `yaml:"cp"`
	Folds          int     `yaml:"n_folds"`
	OneSE          bool    `yaml:"one_se"`
	Workers        int     `yaml:"workers"`
}

// BinningConfig controls the continuous split candidates.
type BinningConfig struct {
	Bins int `yaml:"n_bins"`

	// SampleLimit bounds the rows read per column to compute quantiles
	// from a database source. Zero reads every row.
	SampleLimit int `yaml:"sample_limit"`
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	p := dtree.DefaultParams()
	return &Config{
		Task:   Classification,
		Source: SourceConfig{Kind: SourceCSV},
		Tree: TreeConfig{
			MaxDepth:  p.MaxDepth,
			MinSplit:  p.MinSplit,
			MinBucket: p.MinBucket,
		},
		Binning:  BinningConfig{Bins: binning.DefaultBins, SampleLimit: 100000},
		Store:    store.Options{Kind: "leveldb", Path: "models"},
		LogLevel: "info",
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsRegression reports whether the task is regression.
func (c *Config) IsRegression() bool { return c.Task == Regression }

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Model == "" || strings.Contains(c.Model, "/") {
		return errors.NewValidationError("model", "must be a non-empty name without '/'", c.Model)
	}
	switch c.Task {
	case Classification, Regression:
	default:
		return errors.NewValidationError("task", "must be classification or regression", c.Task)
	}
	if err := c.Source.validate(); err != nil {
		return err
	}
	if c.Binning.Bins < 2 {
		return errors.NewValidationError("binning.n_bins", "must be at least 2", c.Binning.Bins)
	}
	if c.Binning.SampleLimit < 0 {
		return errors.NewValidationError("binning.sample_limit", "must be non-negative", c.Binning.SampleLimit)
	}
	if c.Tree.CP < 0 {
		return errors.NewValidationError("tree.cp", "must be non-negative", c.Tree.CP)
	}
	if c.Tree.Folds == 1 || c.Tree.Folds < 0 {
		return errors.NewValidationError("tree.n_folds", "must be 0 or at least 2", c.Tree.Folds)
	}
	if c.Tree.Folds > 0 && c.Source.Kind != SourceCSV && c.Source.PartitionKey == "" {
		return errors.NewValidationError("source.partition_key", "required for cross-validation on a database source", c.Tree.Folds)
	}
	if c.Tree.Workers < 0 {
		return errors.NewValidationError("tree.workers", "must be non-negative", c.Tree.Workers)
	}
	p, err := c.Params(2)
	if err != nil {
		return err
	}
	return p.Validate(nil)
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceCSV:
		if s.Path == "" {
			return errors.NewValidationError("source.path", "required for csv", s.Path)
		}
	case SourceSQLite, SourcePostgres:
		if s.DSN == "" || s.Table == "" {
			return errors.NewValidationError("source.dsn", "dsn and table are required for a database", s.DSN)
		}
	default:
		return errors.NewValidationError("source.kind", "must be csv, sqlite3 or postgres", s.Kind)
	}
	if s.Response == "" {
		return errors.NewValidationError("source.response", "required", s.Response)
	}
	if len(s.Categorical)+len(s.Continuous) == 0 {
		return errors.NewValidationError("source", "needs at least one feature column", nil)
	}
	seen := map[string]bool{s.Response: true}
	if s.Weight != "" {
		if seen[s.Weight] {
			return errors.NewValidationError("source.weight", "must differ from the response", s.Weight)
		}
		seen[s.Weight] = true
	}
	for _, col := range append(append([]string(nil), s.Categorical...), s.Continuous...) {
		if seen[col] {
			return errors.NewValidationError("source", "column used twice", col)
		}
		seen[col] = true
	}
	return nil
}

// Params returns the growth parameters for a response with nClasses
// classes. nClasses is ignored for regression. An empty criterion means
// gini for classification and mse for regression.
func (c *Config) Params(nClasses int) (dtree.Params, error) {
	name := c.Tree.Criterion
	if name == "" {
		name = "gini"
		if c.IsRegression() {
			name = "mse"
		}
	}
	criterion, err := dtree.ParseCriterion(name)
	if err != nil {
		return dtree.Params{}, err
	}
	if c.IsRegression() && criterion != dtree.MSE {
		return dtree.Params{}, errors.NewValidationError("tree.criterion", "regression uses mse", name)
	}
	p := dtree.Params{
		Regression:        c.IsRegression(),
		Criterion:         criterion,
		MinSplit:          c.Tree.MinSplit,
		MinBucket:         c.Tree.MinBucket,
		MaxDepth:          c.Tree.MaxDepth,
		MaxSurrogates:     c.Tree.MaxSurrogates,
		NumRandomFeatures: c.Tree.RandomFeatures,
		Seed:              c.Tree.Seed,
	}
	if !p.Regression {
		p.NumClasses = nClasses
	}
	return p, nil
}

// Schema returns the CSV schema of the source.
func (c *Config) Schema() csvsource.Schema {
	return csvsource.Schema{
		Cat:        c.Source.Categorical,
		Con:        c.Source.Continuous,
		Response:   c.Source.Response,
		Weight:     c.Source.Weight,
		Classify:   !c.IsRegression(),
		NullTokens: c.Source.NullTokens,
	}
}
