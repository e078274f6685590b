package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
client {
  url   = "wss://example.invalid/rosbridge"
  codec = "cbor"

  dial_timeout    = "5s"
  default_timeout = 2000

  headers = {
    "Authorization" = "Bearer token"
  }

  reconnect {
    initial_delay = "250ms"
    max_delay     = "10s"
    multiplier    = 3
  }
}
`

func TestLoadBytesDecodesClientBlock(t *testing.T) {
	settings, err := LoadBytes([]byte(sample), "sample.rosbridge.hcl")
	require.NoError(t, err)

	assert.Equal(t, "wss://example.invalid/rosbridge", settings.URL)
	assert.Equal(t, "cbor", settings.Codec)
	assert.Equal(t, "Bearer token", settings.Headers["Authorization"])
}

func TestDialTimeoutOrDefaultParsesStringDuration(t *testing.T) {
	settings, err := LoadBytes([]byte(sample), "sample.rosbridge.hcl")
	require.NoError(t, err)

	d, err := settings.DialTimeoutOrDefault(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestDefaultTimeoutOrDefaultParsesNumberAsMilliseconds(t *testing.T) {
	settings, err := LoadBytes([]byte(sample), "sample.rosbridge.hcl")
	require.NoError(t, err)

	d, err := settings.DefaultTimeoutOrDefault(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestReconnectConfigLayersOverDefaults(t *testing.T) {
	settings, err := LoadBytes([]byte(sample), "sample.rosbridge.hcl")
	require.NoError(t, err)

	cfg, err := settings.ReconnectConfig()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
	assert.Equal(t, 3.0, cfg.Multiplier)
	assert.True(t, cfg.Enabled) // untouched field keeps DefaultConfig's value
}

func TestReconnectConfigDefaultsWhenBlockAbsent(t *testing.T) {
	settings, err := LoadBytes([]byte(`client { url = "wss://x" }`), "minimal.hcl")
	require.NoError(t, err)

	cfg, err := settings.ReconnectConfig()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialDelay)
}
