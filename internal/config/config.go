// Package config handles converter configuration loading and management.
package config

import (
	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/bsp"
	"github.com/Faultbox/pofconv/pkg/convert"
	"github.com/Faultbox/pofconv/pkg/export"
)

// Config holds all converter settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	BSP     BSPConfig     `yaml:"bsp"`
	Logging LoggingConfig `yaml:"logging"`
	Workers int           `yaml:"workers"` // files converted in parallel
}

// OutputConfig holds export settings.
type OutputConfig struct {
	Dir        string `yaml:"dir"` // empty writes next to each input
	TextureExt string `yaml:"texture_ext"`
	Generator  string `yaml:"generator"`
}

// BSPConfig holds the per-subobject tree check settings.
type BSPConfig struct {
	Enabled       bool `yaml:"enabled"`
	LeafSize      int  `yaml:"leaf_size"`
	MaxDepth      int  `yaml:"max_depth"`
	MaxMergedLeaf int  `yaml:"max_merged_leaf"`
	MaxIterations int  `yaml:"max_iterations"`
	MaxFragments  int  `yaml:"max_fragments"` // splits allowed per input polygon
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	exp := export.DefaultOptions()
	tree := bsp.DefaultOptions()
	return &Config{
		Output: OutputConfig{
			TextureExt: exp.TextureExt,
			Generator:  exp.Generator,
		},
		BSP: BSPConfig{
			Enabled:       false,
			LeafSize:      tree.LeafSize,
			MaxDepth:      tree.MaxDepth,
			MaxMergedLeaf: tree.MaxMergedLeaf,
			MaxIterations: tree.MaxIterations,
			MaxFragments:  tree.MaxFragments,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Workers: 1,
	}
}

// ConvertOptions maps the config onto per-file conversion options.
func (c *Config) ConvertOptions(log *zap.Logger) convert.Options {
	return convert.Options{
		OutputDir: c.Output.Dir,
		Export: export.Options{
			TextureExt: c.Output.TextureExt,
			Generator:  c.Output.Generator,
		},
		BuildBSP: c.BSP.Enabled,
		BSP: bsp.Options{
			LeafSize:      c.BSP.LeafSize,
			MaxDepth:      c.BSP.MaxDepth,
			MaxMergedLeaf: c.BSP.MaxMergedLeaf,
			MaxIterations: c.BSP.MaxIterations,
			MaxFragments:  c.BSP.MaxFragments,
		},
		Logger: log,
	}
}
