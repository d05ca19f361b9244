package seed

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigRequiresConfigPath(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	_, err := ParseConfig(fs, nil)
	assert.Error(t, err)
}

func TestParseConfigAcceptsConfigPath(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "test.db", "league.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "league.yaml", cfg.ConfigPath)
	assert.Equal(t, "test.db", cfg.DBPath)
}
