package step

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigRequiresPositionalArgs(t *testing.T) {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	_, err := ParseConfig(fs, nil)
	assert.Error(t, err)
}

func TestParseConfigRejectsNonNumericRounds(t *testing.T) {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	_, err := ParseConfig(fs, []string{"season-1", "abc"})
	assert.Error(t, err)
}

func TestParseConfigRejectsZeroRounds(t *testing.T) {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	_, err := ParseConfig(fs, []string{"season-1", "0"})
	assert.Error(t, err)
}

func TestParseConfigAcceptsValidArgs(t *testing.T) {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "test.db", "season-1", "3"})
	require.NoError(t, err)
	assert.Equal(t, "season-1", cfg.SeasonID)
	assert.Equal(t, 3, cfg.Rounds)
	assert.Equal(t, "test.db", cfg.DBPath)
}
