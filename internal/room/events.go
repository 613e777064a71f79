package room

import "github.com/mcdev12/quizroom/internal/models"

// Event names published through the Broadcaster. Snapshot events carry the
// full room; the rest are discrete notifications.
const (
	EventRoomCreated         = "roomCreated"
	EventRoomJoined          = "roomJoined"
	EventRoomUpdated         = "roomUpdated"
	EventGeneratingQuestions = "generatingQuestions"
	EventQuestionsGenerated  = "questionsGenerated"
	EventQuizStarted         = "quizStarted"
	EventQuestionUpdated     = "questionUpdated"
	EventPlayerSubmitted     = "playerSubmitted"
	EventAllAnswered         = "allAnswered"
	EventTimeUp              = "timeUp"
	EventQuizFinished        = "quizFinished"
	EventGoToLobby           = "goToLobby"
	EventTimerTick           = "timerTick"
	EventError               = "error"
)

// RoomCreatedPayload answers a successful createRoom, echoing the ids the
// client needs for rejoin.
type RoomCreatedPayload struct {
	Room     *models.Room `json:"room"`
	PlayerID string       `json:"playerId"`
	ClientID string       `json:"clientId"`
}

// RoomJoinedPayload answers a successful join or rejoin.
type RoomJoinedPayload struct {
	Room     *models.Room `json:"room"`
	PlayerID string       `json:"playerId"`
}

// RoomSnapshotPayload is the full-room payload used by every snapshot event.
type RoomSnapshotPayload struct {
	Room *models.Room `json:"room"`
}

// GeneratingQuestionsPayload signals that a generation call is in flight.
type GeneratingQuestionsPayload struct {
	RoomCode string `json:"roomCode"`
}

// PlayerSubmittedPayload announces one player locking in an answer.
type PlayerSubmittedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// TimerTickPayload is the once-per-second countdown update for an armed round.
type TimerTickPayload struct {
	RoomCode         string `json:"roomCode"`
	TimeRemainingSec int    `json:"timeRemaining"`
}

// LeaderboardEntry is one row of the final standings.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// QuizFinishedPayload closes a match with the final standings.
type QuizFinishedPayload struct {
	Room        *models.Room       `json:"room"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ErrorPayload is replied to the single failing caller, never broadcast.
type ErrorPayload struct {
	Message string `json:"message"`
}
