package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizroom/internal/room"
)

func TestLoadGameOptionsDefaults(t *testing.T) {
	opts, err := loadGameOptions("")
	require.NoError(t, err)
	assert.Equal(t, room.DefaultOptions(), opts)
}

func TestLoadGameOptionsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game:
  max_players: 6
  allowed_question_times: [15, 30]
  default_question_time: 15
  default_topic: "Science"
`), 0o644))

	opts, err := loadGameOptions(path)
	require.NoError(t, err)

	assert.Equal(t, 6, opts.MaxPlayers)
	assert.Equal(t, []int{15, 30}, opts.AllowedQuestionTimes)
	assert.Equal(t, 15, opts.DefaultQuestionTimeSec)
	assert.Equal(t, "Science", opts.DefaultTopic)

	// Keys absent from the file keep the stock values.
	defaults := room.DefaultOptions()
	assert.Equal(t, defaults.DefaultQuestionCount, opts.DefaultQuestionCount)
	assert.Equal(t, defaults.DefaultDifficulty, opts.DefaultDifficulty)
}

func TestLoadGameOptionsMissingFile(t *testing.T) {
	_, err := loadGameOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadGameOptionsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game: ["), 0o644))

	_, err := loadGameOptions(path)
	require.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("QUIZROOM_TEST_STR", "value")
	assert.Equal(t, "value", getEnv("QUIZROOM_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("QUIZROOM_TEST_UNSET", "fallback"))

	t.Setenv("QUIZROOM_TEST_INT", "42")
	assert.Equal(t, 42, getEnvAsInt("QUIZROOM_TEST_INT", 7))
	t.Setenv("QUIZROOM_TEST_INT", "not a number")
	assert.Equal(t, 7, getEnvAsInt("QUIZROOM_TEST_INT", 7))
}
