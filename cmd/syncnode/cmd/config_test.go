package cmd

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() map[string]interface{} {
	return map[string]interface{}{
		"datadir":             "data",
		"value-log-size":      "256MiB",
		"listen":              "/ip4/0.0.0.0/tcp/0,/ip6/::/tcp/0",
		"tracing-sample-rate": "0.5",
		"genesis":             "genesis",
		"session-period":      "20",
		"authorities":         []string{"aa", "bb", "cc"},
		"forest-limit":        1000,
		"tick-period":         "2s",
		"request-rate":        10.0,
		"request-burst":       20,
	}
}

func viperWith(settings map[string]interface{}) *viper.Viper {
	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	return v
}

func TestLoadNodeConfig(t *testing.T) {
	cfg, err := loadNodeConfig(viperWith(validSettings()))
	require.NoError(t, err)

	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/0", "/ip6/::/tcp/0"}, cfg.Listen)
	assert.Equal(t, 2*time.Second, cfg.TickPeriod)
	assert.Equal(t, uint32(20), cfg.SessionPeriod)
	assert.Equal(t, 0.5, cfg.TracingSampleRate)
	// two thirds majority of three authorities
	assert.Equal(t, 3, cfg.threshold())

	size, err := cfg.valueLogBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(256<<20), size)
}

func TestLoadNodeConfig_Invalid(t *testing.T) {
	cases := map[string]struct {
		key   string
		value interface{}
		field string
	}{
		"no authorities":       {"authorities", []string{}, "Authorities"},
		"empty authority":      {"authorities", []string{"aa", ""}, "Authorities[1]"},
		"no listen address":    {"listen", []string{}, "Listen"},
		"zero session period":  {"session-period", 0, "SessionPeriod"},
		"zero tick period":     {"tick-period", "0s", "TickPeriod"},
		"sample rate above 1":  {"tracing-sample-rate", 1.5, "TracingSampleRate"},
		"threshold too high":   {"threshold", 4, "Threshold"},
		"negative burst":       {"request-burst", -1, "RequestBurst"},
		"missing genesis":      {"genesis", "", "Genesis"},
		"missing value log sz": {"value-log-size", "", "ValueLogSize"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			settings := validSettings()
			settings[c.key] = c.value
			_, err := loadNodeConfig(viperWith(settings))
			require.Error(t, err)

			var errs validator.ValidationErrors
			require.ErrorAs(t, err, &errs)
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fe.Field())
			}
			assert.Contains(t, fields, c.field)
		})
	}
}

func TestLoadNodeConfig_ValueLogSize(t *testing.T) {
	for _, size := range []string{"512KiB", "2GiB", "lots"} {
		settings := validSettings()
		settings["value-log-size"] = size
		_, err := loadNodeConfig(viperWith(settings))
		assert.Error(t, err, size)
	}
}
