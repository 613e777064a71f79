package room

import (
	"context"
	"encoding/json"

	"github.com/mcdev12/quizroom/internal/models"
)

// ActionKind tags an inbound action with the operation it requests.
type ActionKind string

const (
	ActionCreateRoom        ActionKind = "createRoom"
	ActionJoinRoom          ActionKind = "joinRoom"
	ActionRejoinRoom        ActionKind = "rejoinRoom"
	ActionUpdateSettings    ActionKind = "updateSettings"
	ActionGenerateQuestions ActionKind = "generateQuestions"
	ActionStartQuiz         ActionKind = "startQuiz"
	ActionSelectAnswer      ActionKind = "selectAnswer"
	ActionNextQuestion      ActionKind = "nextQuestion"
	ActionPlayAgain         ActionKind = "playAgain"
	ActionLeaveRoom         ActionKind = "leaveRoom"
)

// Action is the single entry-point variant dispatched through the engine.
// CallerID is the live connection id of the requesting client.
type Action struct {
	Kind     ActionKind      `json:"kind"`
	CallerID string          `json:"callerId"`
	Payload  json.RawMessage `json:"payload"`
}

// CreateRoomPayload opens a new room with the caller as sole player and admin.
type CreateRoomPayload struct {
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// JoinRoomPayload adds the caller to an existing room, or rebinds a
// returning client id.
type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// RejoinRoomPayload rebinds a dropped connection to its existing player.
type RejoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// UpdateSettingsPayload mutates the lobby-configurable settings. Any change
// invalidates the current question set.
type UpdateSettingsPayload struct {
	RoomCode        string `json:"roomCode"`
	Topic           string `json:"topic"`
	Difficulty      string `json:"difficulty"`
	QuestionCount   int    `json:"questionCount"`
	QuestionTimeSec int    `json:"questionTime"`
}

// GenerateQuestionsPayload asks the external generator for a fresh set.
type GenerateQuestionsPayload struct {
	RoomCode string `json:"roomCode"`
}

// StartQuizPayload begins the match.
type StartQuizPayload struct {
	RoomCode string `json:"roomCode"`
}

// SelectAnswerPayload records the caller's answer for the current question.
// TimeRemainingSec is reported by the client and bounds the time bonus.
type SelectAnswerPayload struct {
	RoomCode         string `json:"roomCode"`
	Answer           int    `json:"answer"`
	TimeRemainingSec int    `json:"timeRemaining"`
}

// NextQuestionPayload advances the match to the next question.
type NextQuestionPayload struct {
	RoomCode string `json:"roomCode"`
}

// PlayAgainPayload flags the room for a rematch and readies the caller.
type PlayAgainPayload struct {
	RoomCode string `json:"roomCode"`
}

// LeaveRoomPayload removes the caller from the room.
type LeaveRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// Broadcaster delivers room-scoped events to subscribed connections and
// single-caller replies. Implemented by the websocket gateway; declared here
// so the engine stays transport-free.
type Broadcaster interface {
	// Join attaches a connection to a room group so Publish reaches it.
	Join(connID, roomCode string)
	// Leave detaches a connection from a room group.
	Leave(connID, roomCode string)
	// Publish fans an event out to every connection in the room.
	Publish(roomCode, event string, payload any)
	// Reply delivers an event to a single connection.
	Reply(connID, event string, payload any)
}

// QuestionGenerator is the external question-generation collaborator. It must
// return exactly count questions, each with four options and an in-range
// correct index; the engine does not retry on failure.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic, difficulty string, count int) ([]models.Question, error)
}
