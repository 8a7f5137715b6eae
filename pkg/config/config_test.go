package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "https://api.stlouisfed.org/fred", c.FRED.BaseURL)
	assert.Equal(t, 30*time.Second, c.FRED.Timeout)
	assert.Equal(t, 1, c.FRED.Concurrency)
	assert.Equal(t, 120, c.FRED.RequestsPerMinute)
	assert.Equal(t, "fred_weekly.csv", c.Pipeline.Weekly.Output)
	assert.Equal(t, "fred_monthly.csv", c.Pipeline.Monthly.Output)
	assert.Equal(t, "2000-01-01", c.Pipeline.Weekly.StartAfter)
	assert.True(t, c.Pipeline.Weekly.Enabled)
	assert.Equal(t, "none", c.Mirror.Type)
	assert.Equal(t, "2010-01-01", c.Dashboard.DefaultStart)
	assert.Equal(t, 20.0, c.Dashboard.RatePerSecond)
	assert.Zero(t, c.Dashboard.CacheTTL)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
fred:
  timeout: 5s
  concurrency: 4
pipeline:
  monthly:
    enabled: false
    output: out/monthly.csv
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 5*time.Second, c.FRED.Timeout)
	assert.Equal(t, 4, c.FRED.Concurrency)
	assert.False(t, c.Pipeline.Monthly.Enabled)
	assert.Equal(t, "out/monthly.csv", c.Pipeline.Monthly.Output)
	assert.Equal(t, 2000, c.Mirror.BatchSize)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mirror type":    "mirror:\n  type: redis\n",
		"kafka brokers":  "mirror:\n  type: kafka\n",
		"start date":     "pipeline:\n  weekly:\n    start_after: 01/01/2000\n",
		"log level":      "log:\n  level: verbose\n",
		"same outputs":   "pipeline:\n  weekly:\n    output: a.csv\n  monthly:\n    output: a.csv\n",
		"bad yaml":       "fred: [",
		"backoff window": "fred:\n  backoff_min: 5s\n  backoff_max: 1s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"FRED_API_KEY":   "secret",
		"LOG_LEVEL":      "DEBUG",
		"MIRROR_TYPE":    "kafka",
		"KAFKA_BROKERS":  "a:9092,b:9092",
		"KAFKA_TOPIC":    "macro",
		"WEEKLY_OUTPUT":  "w.csv",
		"MONTHLY_OUTPUT": "m.csv",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "secret", c.FRED.APIKey)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "kafka", c.Mirror.Type)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "macro", c.Kafka.Topic)
	assert.Equal(t, "w.csv", c.Pipeline.Weekly.Output)
	assert.Equal(t, "m.csv", c.Pipeline.Monthly.Output)
	require.NoError(t, c.Validate())
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))
	t.Setenv("FRED_API_KEY", "k")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.NoError(t, c.RequireCredential())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRequireCredential(t *testing.T) {
	c := Default()
	assert.ErrorIs(t, c.RequireCredential(), ErrMissingCredential)
	c.FRED.APIKey = "  "
	assert.ErrorIs(t, c.RequireCredential(), ErrMissingCredential)
	c.FRED.APIKey = "abc"
	assert.NoError(t, c.RequireCredential())
}
