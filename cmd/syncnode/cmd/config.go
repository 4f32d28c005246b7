package cmd

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// nodeConfig is the configuration of the run command, read from flags, the
// SYNCNODE_* environment and the optional config file.
type nodeConfig struct {
	DataDir      string `mapstructure:"datadir" validate:"required"`
	ValueLogSize string `mapstructure:"value-log-size" validate:"required"`
	NodeKey      string `mapstructure:"node-key"`

	Listen      []string `mapstructure:"listen" validate:"min=1,dive,required"`
	Bootstrap   []string `mapstructure:"bootstrap" validate:"dive,required"`
	MetricsAddr string   `mapstructure:"metrics-addr"`

	TracingEndpoint   string  `mapstructure:"tracing-endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing-sample-rate" validate:"gte=0,lte=1"`

	Genesis       string   `mapstructure:"genesis" validate:"required"`
	SessionPeriod uint32   `mapstructure:"session-period" validate:"gt=0"`
	Authorities   []string `mapstructure:"authorities" validate:"min=1,dive,required"`
	// Threshold of zero selects a two thirds majority of the authorities.
	Threshold int `mapstructure:"threshold" validate:"gte=0"`

	ForestLimit  uint          `mapstructure:"forest-limit" validate:"gt=0"`
	TickPeriod   time.Duration `mapstructure:"tick-period" validate:"gt=0"`
	RequestRate  float64       `mapstructure:"request-rate" validate:"gt=0"`
	RequestBurst int           `mapstructure:"request-burst" validate:"gt=0"`
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateThreshold, nodeConfig{})
	return v
}

func validateThreshold(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(nodeConfig)
	if cfg.Threshold > len(cfg.Authorities) {
		sl.ReportError(cfg.Threshold, "Threshold", "threshold", "authorities", "")
	}
}

// loadNodeConfig decodes and validates the run configuration held by v.
func loadNodeConfig(v *viper.Viper) (nodeConfig, error) {
	var cfg nodeConfig
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nodeConfig{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := configValidator.Struct(cfg); err != nil {
		return nodeConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.valueLogBytes(); err != nil {
		return nodeConfig{}, err
	}
	return cfg, nil
}

// threshold returns the number of signatures a justification needs.
func (c nodeConfig) threshold() int {
	if c.Threshold == 0 {
		return len(c.Authorities)*2/3 + 1
	}
	return c.Threshold
}

// valueLogBytes parses the human readable value log file size, e.g. 256MiB.
func (c nodeConfig) valueLogBytes() (int64, error) {
	size, err := units.RAMInBytes(c.ValueLogSize)
	if err != nil {
		return 0, fmt.Errorf("invalid value log size %q: %w", c.ValueLogSize, err)
	}
	if size < 1<<20 || size >= 2<<30 {
		return 0, fmt.Errorf("value log size %s is outside [1MiB, 2GiB)", units.BytesSize(float64(size)))
	}
	return size, nil
}
