package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the rnncheck configuration file
// (~/.config/rnncheck/config.yaml).  Numeric fields are pointers so "not
// set" is distinguishable from zero values.
type Config struct {
	// Comparison defaults
	AbsTol *float64 `yaml:"abs_tol"`
	RelTol *float64 `yaml:"rel_tol"`

	// Fixture generation defaults
	Seed *int64 `yaml:"seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "rnncheck", "config.yaml")
}

// applyCommonConfig applies config file defaults to logging variables when
// the corresponding CLI flag was not explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyVerifyConfig applies config file tolerance defaults to the verify
// command variables.
func applyVerifyConfig(c *cli.Command, cfg Config, absTol, relTol *float64) {
	applyCommonConfig(c, cfg)
	if cfg.AbsTol != nil && !c.IsSet("abs-tol") {
		*absTol = *cfg.AbsTol
	}
	if cfg.RelTol != nil && !c.IsSet("rel-tol") {
		*relTol = *cfg.RelTol
	}
}

// applyFixtureConfig applies config file defaults to the fixture command
// variables.
func applyFixtureConfig(c *cli.Command, cfg Config, seed *int64) {
	applyCommonConfig(c, cfg)
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
