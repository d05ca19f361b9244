package server

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, "normal", cfg.Pace)
	assert.Equal(t, 300, cfg.QuarterReplaySeconds)
	assert.Equal(t, 30, cfg.GameIntervalSeconds)
}

func TestParseConfigFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-pace", "fast", "-instant"})
	require.NoError(t, err)
	assert.Equal(t, "fast", cfg.Pace)
	assert.True(t, cfg.Instant)
}

func TestLeaseHolderIsNonEmpty(t *testing.T) {
	assert.NotEmpty(t, leaseHolder())
}
