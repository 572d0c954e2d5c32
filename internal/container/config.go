package container

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// GeoIPPathEnv overrides the --geoip-path option at startup and on SIGHUP.
const GeoIPPathEnv = "GEOIP_DATABASE_PATH"

// GeoIPPath returns the location database path: GEOIP_DATABASE_PATH when set,
// the configured option otherwise.
func GeoIPPath(opts *Options) string {
	if path := os.Getenv(GeoIPPathEnv); path != "" {
		return path
	}

	return opts.GeoIPPath
}

// ConsumerConfig holds the settings of the event consumer process.
type ConsumerConfig struct {
	RedisAddr string `env:"REDIS_ADDR" env-required:"true" yaml:"redis_addr"`
	LogFormat string `env:"LOG_FORMAT" env-default:"console" yaml:"log_format"`
	LogLevel  string `env:"LOG_LEVEL"  env-default:"info"    yaml:"log_level"`
}

// LoadConsumerConfig reads the consumer configuration from the YAML file at
// CONFIG_PATH when set, and from the environment otherwise.
func LoadConsumerConfig() (*ConsumerConfig, error) {
	var cfg ConsumerConfig

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%w: read env: %w", ErrConfiguration, err)
	}

	return &cfg, nil
}

// Options converts the consumer configuration into container options.
func (c *ConsumerConfig) Options() *Options {
	return &Options{
		RedisAddr: c.RedisAddr,
		LogFormat: c.LogFormat,
		LogLevel:  c.LogLevel,
	}
}
