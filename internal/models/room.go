package models

import "time"

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusQuiz     RoomStatus = "quiz"
	RoomStatusFinished RoomStatus = "finished"
)

const (
	// MaxPlayersPerRoom caps how many players may share a room.
	MaxPlayersPerRoom = 10

	// MinQuestionCount and MaxQuestionCount bound the lobby-configurable
	// question count.
	MinQuestionCount = 1
	MaxQuestionCount = 20

	// DefaultQuestionTimeSec is the per-question countdown applied to new rooms.
	DefaultQuestionTimeSec = 30

	// NoAnswer is the sentinel stored for players who never picked an option
	// before the round timer expired.
	NoAnswer = -1
)

// AllowedQuestionTimes lists the per-question countdown values a room admin
// may choose from, in seconds.
var AllowedQuestionTimes = []int{10, 15, 20, 30, 45, 60}

// Player represents one participant in a room. ConnID tracks the live
// transport connection and is rebound in place when the player reconnects;
// ClientID is the durable identity that survives disconnects.
type Player struct {
	ConnID         string `json:"id"`
	ClientID       string `json:"clientId"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Answered       bool   `json:"answered"`
	SelectedAnswer int    `json:"selectedAnswer"`
	AnswerTimeSec  int    `json:"answerTime"`
	RoundPoints    int    `json:"roundPoints"`
	Ready          bool   `json:"ready"`
}

// ResetForMatch clears every per-match field back to its initial value.
func (p *Player) ResetForMatch() {
	p.Score = 0
	p.Ready = false
	p.ResetForQuestion()
}

// ResetForQuestion clears the per-question fields before a new round.
func (p *Player) ResetForQuestion() {
	p.Answered = false
	p.SelectedAnswer = NoAnswer
	p.AnswerTimeSec = 0
	p.RoundPoints = 0
}

// Room is the unit of a game session. Players is ordered by join time;
// that order decides admin succession.
type Room struct {
	Code            string     `json:"code"`
	AdminID         string     `json:"adminId"`
	Status          RoomStatus `json:"status"`
	Rematch         bool       `json:"rematch"`
	Players         []*Player  `json:"players"`
	Questions       []Question `json:"questions"`
	QuestionsReady  bool       `json:"questionsReady"`
	CurrentQuestion int        `json:"currentQuestion"`

	Topic           string `json:"topic"`
	Difficulty      string `json:"difficulty"`
	QuestionCount   int    `json:"questionCount"`
	QuestionTimeSec int    `json:"questionTime"`

	// SettingsRev increments on every settings edit; an in-flight generation
	// call carries the revision it was started under, so its result can be
	// recognized as stale.
	SettingsRev int `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsLobbyLike reports whether the room admits joins and settings edits:
// either pre-game, or showing results with a rematch pending.
func (r *Room) IsLobbyLike() bool {
	return r.Status == RoomStatusWaiting || (r.Status == RoomStatusFinished && r.Rematch)
}

// PlayerByConn returns the player bound to the given live connection id.
func (r *Room) PlayerByConn(connID string) *Player {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// PlayerByClientID returns the player holding the given durable identity.
func (r *Room) PlayerByClientID(clientID string) *Player {
	if clientID == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}

// AllAnswered reports whether every player has locked in an answer for the
// current question.
func (r *Room) AllAnswered() bool {
	for _, p := range r.Players {
		if !p.Answered {
			return false
		}
	}
	return true
}
