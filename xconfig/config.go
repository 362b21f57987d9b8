package xconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/qixi7/xchan/xlog"
)

// MetricConfig is the prometheus endpoint. Empty Listen disables it.
type MetricConfig struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// BenchConfig drives cmd/xchanbench.
type BenchConfig struct {
	Producers int    `toml:"producers" yaml:"producers"`
	Messages  int    `toml:"messages" yaml:"messages"`  // 每个生产者发送的数量
	MaxBurst  int    `toml:"max_burst" yaml:"max_burst"` // 一次连续发送的上限, 之后让出
	Workers   int    `toml:"workers" yaml:"workers"`     // job 校验协程数
	BufLen    int    `toml:"buf_len" yaml:"buf_len"`
	ProfMode  string `toml:"prof_mode" yaml:"prof_mode"`
}

type Config struct {
	Log    xlog.Config  `toml:"log" yaml:"log"`
	Metric MetricConfig `toml:"metric" yaml:"metric"`
	Bench  BenchConfig  `toml:"bench" yaml:"bench"`
}

func Default() Config {
	return Config{
		Log: xlog.DefaultConfig(),
		Bench: BenchConfig{
			Producers: 8,
			Messages:  100000,
			MaxBurst:  64,
			Workers:   4,
			BufLen:    1024,
		},
	}
}

// Load reads a .toml, .yaml or .yml file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "xconfig: read %s", path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err = toml.Decode(string(data), &cfg); err != nil {
			return cfg, errors.Wrapf(err, "xconfig: decode toml %s", path)
		}
	case ".yaml", ".yml":
		if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "xconfig: decode yaml %s", path)
		}
	default:
		return cfg, errors.Errorf("xconfig: unknown config type %q", ext)
	}
	if err = cfg.Validate(); err != nil {
		return cfg, errors.WithMessage(err, path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	b := c.Bench
	switch {
	case b.Producers <= 0:
		return errors.Errorf("xconfig: bench.producers must be > 0, got %d", b.Producers)
	case b.Messages < 0:
		return errors.Errorf("xconfig: bench.messages must be >= 0, got %d", b.Messages)
	case b.MaxBurst <= 0:
		return errors.Errorf("xconfig: bench.max_burst must be > 0, got %d", b.MaxBurst)
	case b.Workers <= 0:
		return errors.Errorf("xconfig: bench.workers must be > 0, got %d", b.Workers)
	}
	return nil
}
