package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mcdev12/quizroom/internal/room"
	"gopkg.in/yaml.v3"
)

// GameConfig is the optional YAML tuning file for room defaults.
type GameConfig struct {
	Game struct {
		MaxPlayers           int    `yaml:"max_players"`
		AllowedQuestionTimes []int  `yaml:"allowed_question_times"`
		DefaultQuestionTime  int    `yaml:"default_question_time"`
		DefaultQuestionCount int    `yaml:"default_question_count"`
		DefaultTopic         string `yaml:"default_topic"`
		DefaultDifficulty    string `yaml:"default_difficulty"`
	} `yaml:"game"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadGameOptions reads the tuning file and overlays it onto the stock
// options. A missing path keeps the defaults.
func loadGameOptions(path string) (room.Options, error) {
	opts := room.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GameConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return opts, fmt.Errorf("failed to parse config: %w", err)
	}

	g := config.Game
	if g.MaxPlayers > 0 {
		opts.MaxPlayers = g.MaxPlayers
	}
	if len(g.AllowedQuestionTimes) > 0 {
		opts.AllowedQuestionTimes = g.AllowedQuestionTimes
	}
	if g.DefaultQuestionTime > 0 {
		opts.DefaultQuestionTimeSec = g.DefaultQuestionTime
	}
	if g.DefaultQuestionCount > 0 {
		opts.DefaultQuestionCount = g.DefaultQuestionCount
	}
	if g.DefaultTopic != "" {
		opts.DefaultTopic = g.DefaultTopic
	}
	if g.DefaultDifficulty != "" {
		opts.DefaultDifficulty = g.DefaultDifficulty
	}
	return opts, nil
}
