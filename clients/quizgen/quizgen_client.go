// Package quizgen is the REST client for the external question-generation
// service (any OpenAI-compatible chat-completions endpoint). The engine
// treats it as an opaque collaborator: it either returns exactly the
// requested number of well-formed questions or an error.
package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizroom/internal/models"
)

// Config holds connection settings for the generation endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults; the API key always comes from the
// caller.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 30 * time.Second,
	}
}

// Client calls the generation endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a generation client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type questionSet struct {
	Questions []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correctAnswer"`
	} `json:"questions"`
}

const systemPrompt = "You are a trivia question writer. Respond with a JSON object of the form " +
	`{"questions":[{"question":"...","options":["a","b","c","d"],"correctAnswer":0}]}. ` +
	"Every question must have exactly 4 options and correctAnswer must be the 0-based index of the right option."

// Generate requests count questions on the given topic and difficulty. It
// returns an error unless the response contains exactly count well-formed
// questions; callers do not get partial sets.
func (c *Client) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.Question, error) {
	userPrompt := fmt.Sprintf("Write %d %s-difficulty multiple-choice trivia questions about %q.", count, difficulty, topic)

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generation API returned status code: %d, response: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("generation API returned no choices")
	}

	var set questionSet
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &set); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	if len(set.Questions) != count {
		return nil, fmt.Errorf("expected %d questions, got %d", count, len(set.Questions))
	}

	questions := make([]models.Question, 0, count)
	for i, q := range set.Questions {
		question := models.Question{
			ID:            uuid.New().String(),
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    difficulty,
		}
		if !question.Valid() {
			return nil, fmt.Errorf("question %d is malformed: %d options, correct index %d",
				i, len(q.Options), q.CorrectAnswer)
		}
		questions = append(questions, question)
	}
	return questions, nil
}
