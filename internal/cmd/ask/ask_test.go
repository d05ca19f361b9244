package ask

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigRequiresSeasonAndQuestion(t *testing.T) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	_, err := ParseConfig(fs, []string{"season-1"})
	assert.Error(t, err)
}

func TestParseConfigJoinsQuestionWords(t *testing.T) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"season-1", "who", "is", "leading", "the", "league"})
	require.NoError(t, err)
	assert.Equal(t, "season-1", cfg.SeasonID)
	assert.Equal(t, "who is leading the league", cfg.Question)
}

func TestFormatSnapshotListsStandings(t *testing.T) {
	s := formatSnapshot(5, nil)
	assert.Contains(t, s, "through round 5")
}
