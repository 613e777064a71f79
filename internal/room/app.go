package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizroom/internal/models"
	"github.com/rs/zerolog/log"
)

// Options holds the game tuning knobs that are configurable per process.
type Options struct {
	MaxPlayers             int
	AllowedQuestionTimes   []int
	DefaultQuestionTimeSec int
	DefaultQuestionCount   int
	DefaultTopic           string
	DefaultDifficulty      string
}

// DefaultOptions returns the stock game tuning.
func DefaultOptions() Options {
	return Options{
		MaxPlayers:             models.MaxPlayersPerRoom,
		AllowedQuestionTimes:   models.AllowedQuestionTimes,
		DefaultQuestionTimeSec: models.DefaultQuestionTimeSec,
		DefaultQuestionCount:   5,
		DefaultTopic:           "General Knowledge",
		DefaultDifficulty:      "medium",
	}
}

// App is the room lifecycle engine: the single entry point for every inbound
// action, the only writer of the room store, and the component that decides
// when the round timer runs. A single mutex serializes all state-changing
// work, so each action executes to completion before the next one (or a
// timer expiry) observes the room; the ordering every subscriber sees is
// the order actions were accepted.
type App struct {
	store *Store
	timer *RoundTimer
	gen   QuestionGenerator
	bc    Broadcaster
	clock Clock
	opts  Options

	// mu serializes every state-changing path (actions, timer expiry,
	// generation completion), standing in for the original's single-threaded
	// event loop.
	mu sync.Mutex
}

// NewApp wires the lifecycle engine to its collaborators.
func NewApp(store *Store, gen QuestionGenerator, bc Broadcaster, clock Clock, opts Options) *App {
	if opts.MaxPlayers <= 0 {
		opts = DefaultOptions()
	}
	a := &App{
		store: store,
		gen:   gen,
		bc:    bc,
		clock: clock,
		opts:  opts,
	}
	a.timer = NewRoundTimer(clock, a.handleTimerExpiry, a.handleTimerTick)
	return a
}

// Timer exposes the round timer, mainly for tests and stats.
func (a *App) Timer() *RoundTimer {
	return a.timer
}

func (a *App) lock()   { a.mu.Lock() }
func (a *App) unlock() { a.mu.Unlock() }

// Dispatch routes a tagged action to its handler. Guard failures and panics
// are converted to an error reply for the acting caller only; shared state is
// never mutated on a failed action.
func (a *App) Dispatch(ctx context.Context, act Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", act.Kind, r)
			log.Error().
				Str("kind", string(act.Kind)).
				Str("conn_id", act.CallerID).
				Interface("panic", r).
				Msg("action handler panicked")
		}
		if err != nil {
			a.bc.Reply(act.CallerID, EventError, ErrorPayload{Message: err.Error()})
		}
	}()

	switch act.Kind {
	case ActionCreateRoom:
		var p CreateRoomPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad createRoom payload: %w", err)
		}
		return a.createRoom(act.CallerID, p)
	case ActionJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad joinRoom payload: %w", err)
		}
		return a.joinRoom(act.CallerID, p)
	case ActionRejoinRoom:
		var p RejoinRoomPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad rejoinRoom payload: %w", err)
		}
		return a.rejoinRoom(act.CallerID, p)
	case ActionUpdateSettings:
		var p UpdateSettingsPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad updateSettings payload: %w", err)
		}
		return a.updateSettings(act.CallerID, p)
	case ActionGenerateQuestions:
		var p GenerateQuestionsPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad generateQuestions payload: %w", err)
		}
		return a.generateQuestions(ctx, act.CallerID, p)
	case ActionStartQuiz:
		var p StartQuizPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad startQuiz payload: %w", err)
		}
		return a.startQuiz(act.CallerID, p)
	case ActionSelectAnswer:
		var p SelectAnswerPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad selectAnswer payload: %w", err)
		}
		return a.selectAnswer(act.CallerID, p)
	case ActionNextQuestion:
		var p NextQuestionPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad nextQuestion payload: %w", err)
		}
		return a.nextQuestion(act.CallerID, p)
	case ActionPlayAgain:
		var p PlayAgainPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad playAgain payload: %w", err)
		}
		return a.playAgain(act.CallerID, p)
	case ActionLeaveRoom:
		var p LeaveRoomPayload
		if err := json.Unmarshal(act.Payload, &p); err != nil {
			return fmt.Errorf("bad leaveRoom payload: %w", err)
		}
		return a.leaveRoom(act.CallerID, p)
	default:
		return fmt.Errorf("unknown action %q", act.Kind)
	}
}

func (a *App) createRoom(connID string, p CreateRoomPayload) error {
	a.lock()
	defer a.unlock()

	code, err := a.store.NewCode()
	if err != nil {
		return err
	}

	clientID := p.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	player := &models.Player{
		ConnID:         connID,
		ClientID:       clientID,
		Name:           p.Name,
		SelectedAnswer: models.NoAnswer,
	}
	r := &models.Room{
		Code:            code,
		AdminID:         connID,
		Status:          models.RoomStatusWaiting,
		Players:         []*models.Player{player},
		Topic:           a.opts.DefaultTopic,
		Difficulty:      a.opts.DefaultDifficulty,
		QuestionCount:   a.opts.DefaultQuestionCount,
		QuestionTimeSec: a.opts.DefaultQuestionTimeSec,
		CreatedAt:       a.clock.Now(),
	}

	a.store.Put(r)
	a.store.Bind(connID, code)
	a.bc.Join(connID, code)

	log.Info().
		Str("room_code", code).
		Str("conn_id", connID).
		Str("name", p.Name).
		Msg("room created")

	a.bc.Reply(connID, EventRoomCreated, RoomCreatedPayload{
		Room:     r,
		PlayerID: connID,
		ClientID: clientID,
	})
	return nil
}

func (a *App) joinRoom(connID string, p JoinRoomPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}

	// A returning client id is rebound rather than duplicated, whatever the
	// room status.
	if existing := r.PlayerByClientID(p.ClientID); existing != nil {
		a.rebind(r, existing, connID)
		a.bc.Reply(connID, EventRoomJoined, RoomJoinedPayload{Room: r, PlayerID: connID})
		a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
		return nil
	}

	if !r.IsLobbyLike() {
		return ErrGameInProgress
	}
	if len(r.Players) >= a.opts.MaxPlayers {
		return ErrRoomFull
	}

	clientID := p.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}
	player := &models.Player{
		ConnID:         connID,
		ClientID:       clientID,
		Name:           p.Name,
		SelectedAnswer: models.NoAnswer,
	}
	r.Players = append(r.Players, player)
	a.store.Bind(connID, r.Code)
	a.bc.Join(connID, r.Code)

	log.Info().
		Str("room_code", r.Code).
		Str("conn_id", connID).
		Str("name", p.Name).
		Int("players", len(r.Players)).
		Msg("player joined room")

	a.bc.Reply(connID, EventRoomJoined, RoomJoinedPayload{Room: r, PlayerID: connID})
	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
	return nil
}

func (a *App) rejoinRoom(connID string, p RejoinRoomPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}

	if existing := r.PlayerByClientID(p.ClientID); existing != nil {
		a.rebind(r, existing, connID)
		log.Info().
			Str("room_code", r.Code).
			Str("conn_id", connID).
			Str("client_id", p.ClientID).
			Msg("player rejoined room")
		a.bc.Reply(connID, EventRoomJoined, RoomJoinedPayload{Room: r, PlayerID: connID})
		a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
		return nil
	}

	// No matching identity: treat as a fresh join while the room is still
	// lobby-like, otherwise the quiz has moved on without them.
	if !r.IsLobbyLike() {
		return ErrGameInProgress
	}
	if len(r.Players) >= a.opts.MaxPlayers {
		return ErrRoomFull
	}

	clientID := p.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}
	player := &models.Player{
		ConnID:         connID,
		ClientID:       clientID,
		Name:           p.Name,
		SelectedAnswer: models.NoAnswer,
	}
	r.Players = append(r.Players, player)
	a.store.Bind(connID, r.Code)
	a.bc.Join(connID, r.Code)

	a.bc.Reply(connID, EventRoomJoined, RoomJoinedPayload{Room: r, PlayerID: connID})
	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
	return nil
}

// rebind points an existing player at a new live connection, keeping admin
// authority and the reverse index consistent.
func (a *App) rebind(r *models.Room, player *models.Player, connID string) {
	oldConn := player.ConnID
	if r.AdminID == oldConn {
		r.AdminID = connID
	}
	player.ConnID = connID
	a.store.Unbind(oldConn)
	a.store.Bind(connID, r.Code)
	a.bc.Leave(oldConn, r.Code)
	a.bc.Join(connID, r.Code)
}

func (a *App) updateSettings(connID string, p UpdateSettingsPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if r.AdminID != connID {
		return ErrUnauthorized
	}
	if !r.IsLobbyLike() {
		return ErrInvalidState
	}
	if p.QuestionCount < models.MinQuestionCount || p.QuestionCount > models.MaxQuestionCount {
		return fmt.Errorf("%w: question count must be between %d and %d",
			ErrInvalidState, models.MinQuestionCount, models.MaxQuestionCount)
	}
	if !a.allowedQuestionTime(p.QuestionTimeSec) {
		return fmt.Errorf("%w: unsupported question time %ds", ErrInvalidState, p.QuestionTimeSec)
	}

	r.Topic = p.Topic
	r.Difficulty = p.Difficulty
	r.QuestionCount = p.QuestionCount
	r.QuestionTimeSec = p.QuestionTimeSec

	// Any settings change invalidates the question set, even a no-op edit.
	// Bumping the revision also invalidates any generation call in flight.
	r.SettingsRev++
	r.Questions = nil
	r.QuestionsReady = false

	log.Info().
		Str("room_code", r.Code).
		Str("topic", p.Topic).
		Str("difficulty", p.Difficulty).
		Int("question_count", p.QuestionCount).
		Int("question_time_sec", p.QuestionTimeSec).
		Msg("room settings updated")

	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
	return nil
}

func (a *App) allowedQuestionTime(sec int) bool {
	for _, t := range a.opts.AllowedQuestionTimes {
		if t == sec {
			return true
		}
	}
	return false
}

func (a *App) generateQuestions(ctx context.Context, connID string, p GenerateQuestionsPayload) error {
	a.lock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		a.unlock()
		return ErrRoomNotFound
	}
	if r.AdminID != connID {
		a.unlock()
		return ErrUnauthorized
	}
	if !r.IsLobbyLike() {
		a.unlock()
		return ErrInvalidState
	}

	code := r.Code
	topic, difficulty, count := r.Topic, r.Difficulty, r.QuestionCount
	rev := r.SettingsRev
	a.bc.Publish(code, EventGeneratingQuestions, GeneratingQuestionsPayload{RoomCode: code})
	a.unlock()

	// The generator call is the one async boundary besides the timer; it runs
	// outside the engine lock and re-resolves the room on completion.
	go func() {
		questions, err := a.gen.Generate(ctx, topic, difficulty, count)
		a.completeGeneration(code, connID, count, rev, questions, err)
	}()
	return nil
}

func (a *App) completeGeneration(code, connID string, requested, rev int, questions []models.Question, genErr error) {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(code)
	if !ok {
		// Room died while the call was in flight.
		log.Debug().Str("room_code", code).Msg("discarding generation result for destroyed room")
		return
	}

	if genErr != nil {
		log.Warn().Err(genErr).Str("room_code", code).Msg("question generation failed")
		a.bc.Reply(connID, EventError, ErrorPayload{
			Message: fmt.Sprintf("%s: %s", ErrUpstreamFailure, genErr),
		})
		return
	}

	if len(questions) != requested {
		a.bc.Reply(connID, EventError, ErrorPayload{
			Message: fmt.Sprintf("%s: expected %d questions, got %d", ErrUpstreamFailure, requested, len(questions)),
		})
		return
	}
	for _, q := range questions {
		if !q.Valid() {
			a.bc.Reply(connID, EventError, ErrorPayload{
				Message: fmt.Sprintf("%s: malformed question in response", ErrUpstreamFailure),
			})
			return
		}
	}

	// Settings may have changed while generating; a stale set must not
	// satisfy the ready gate, whichever setting changed.
	if !r.IsLobbyLike() || r.SettingsRev != rev {
		log.Debug().Str("room_code", code).Msg("discarding stale generation result")
		return
	}

	r.Questions = questions
	r.QuestionsReady = true

	log.Info().
		Str("room_code", code).
		Int("questions", len(questions)).
		Msg("questions generated")

	a.bc.Publish(code, EventQuestionsGenerated, RoomSnapshotPayload{Room: r})
}

func (a *App) startQuiz(connID string, p StartQuizPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if r.AdminID != connID {
		return ErrUnauthorized
	}
	if !r.QuestionsReady || len(r.Questions) == 0 {
		return fmt.Errorf("%w: questions are not ready", ErrInvalidState)
	}
	if r.Status == models.RoomStatusFinished && r.Rematch {
		for _, pl := range r.Players {
			if !pl.Ready {
				return fmt.Errorf("%w: not all players are ready", ErrInvalidState)
			}
		}
	} else if r.Status != models.RoomStatusWaiting {
		return ErrInvalidState
	}

	for _, pl := range r.Players {
		pl.ResetForMatch()
	}
	r.Rematch = false
	r.Status = models.RoomStatusQuiz
	r.CurrentQuestion = 0

	a.timer.Start(r.Code, time.Duration(r.QuestionTimeSec)*time.Second)

	log.Info().
		Str("room_code", r.Code).
		Int("questions", len(r.Questions)).
		Int("players", len(r.Players)).
		Msg("quiz started")

	a.bc.Publish(r.Code, EventQuizStarted, RoomSnapshotPayload{Room: r})
	return nil
}

func (a *App) selectAnswer(connID string, p SelectAnswerPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if r.Status != models.RoomStatusQuiz {
		return ErrInvalidState
	}
	player := r.PlayerByConn(connID)
	if player == nil {
		return fmt.Errorf("%w: you are not in this room", ErrInvalidState)
	}
	if player.Answered {
		return fmt.Errorf("%w: answer already submitted", ErrInvalidState)
	}

	q := r.Questions[r.CurrentQuestion]

	// The bonus trusts the client-reported remaining time; clamp it so a
	// misreport cannot push elapsed outside [0, limit].
	remaining := p.TimeRemainingSec
	if remaining < 0 {
		remaining = 0
	}
	if remaining > r.QuestionTimeSec {
		remaining = r.QuestionTimeSec
	}
	elapsed := r.QuestionTimeSec - remaining

	points := Score(p.Answer, q.CorrectAnswer, elapsed, r.QuestionTimeSec)
	player.Answered = true
	player.SelectedAnswer = p.Answer
	player.AnswerTimeSec = elapsed
	player.RoundPoints = points
	player.Score += points

	log.Info().
		Str("room_code", r.Code).
		Str("conn_id", connID).
		Int("answer", p.Answer).
		Int("round_points", points).
		Msg("answer submitted")

	a.bc.Publish(r.Code, EventPlayerSubmitted, PlayerSubmittedPayload{
		PlayerID:   connID,
		PlayerName: player.Name,
	})
	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})

	if r.AllAnswered() {
		a.timer.Cancel(r.Code)
		a.bc.Publish(r.Code, EventAllAnswered, RoomSnapshotPayload{Room: r})
	}
	return nil
}

func (a *App) nextQuestion(connID string, p NextQuestionPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if r.AdminID != connID {
		return ErrUnauthorized
	}
	if r.Status != models.RoomStatusQuiz {
		return ErrInvalidState
	}

	for _, pl := range r.Players {
		pl.ResetForQuestion()
	}
	r.CurrentQuestion++

	if r.CurrentQuestion >= len(r.Questions) {
		r.Status = models.RoomStatusFinished
		a.timer.Cancel(r.Code)

		log.Info().Str("room_code", r.Code).Msg("quiz finished")

		a.bc.Publish(r.Code, EventQuizFinished, QuizFinishedPayload{
			Room:        r,
			Leaderboard: leaderboard(r),
		})
		return nil
	}

	a.timer.Start(r.Code, time.Duration(r.QuestionTimeSec)*time.Second)

	log.Info().
		Str("room_code", r.Code).
		Int("current_question", r.CurrentQuestion).
		Msg("advanced to next question")

	a.bc.Publish(r.Code, EventQuestionUpdated, RoomSnapshotPayload{Room: r})
	return nil
}

func (a *App) playAgain(connID string, p PlayAgainPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if r.Status != models.RoomStatusFinished {
		return ErrInvalidState
	}
	player := r.PlayerByConn(connID)
	if player == nil {
		return fmt.Errorf("%w: you are not in this room", ErrInvalidState)
	}

	// Status stays finished so the others can keep looking at the results;
	// the rematch flag is what reopens the lobby.
	r.Rematch = true
	player.Ready = true
	r.QuestionsReady = false

	log.Info().
		Str("room_code", r.Code).
		Str("conn_id", connID).
		Msg("player requested rematch")

	a.bc.Reply(connID, EventGoToLobby, RoomSnapshotPayload{Room: r})
	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
	return nil
}

func (a *App) leaveRoom(connID string, p LeaveRoomPayload) error {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	a.removePlayer(r, connID)
	return nil
}

// HandleDisconnect is invoked by the transport when a connection drops. The
// reverse index makes this a single lookup; an unknown connection is a no-op.
func (a *App) HandleDisconnect(connID string) {
	a.lock()
	defer a.unlock()

	code, ok := a.store.RoomCodeFor(connID)
	if !ok {
		return
	}
	r, ok := a.store.Get(code)
	if !ok {
		a.store.Unbind(connID)
		return
	}
	a.removePlayer(r, connID)
}

// removePlayer takes a player out of the room, destroying the room when it
// empties and promoting the next player in join order when the admin left.
// Caller must hold the engine lock.
func (a *App) removePlayer(r *models.Room, connID string) {
	idx := -1
	for i, pl := range r.Players {
		if pl.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	wasAdmin := r.AdminID == connID
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	a.store.Unbind(connID)
	a.bc.Leave(connID, r.Code)

	if len(r.Players) == 0 {
		a.timer.Cancel(r.Code)
		a.store.Delete(r.Code)
		log.Info().Str("room_code", r.Code).Msg("room destroyed")
		return
	}

	if wasAdmin {
		r.AdminID = r.Players[0].ConnID
		log.Info().
			Str("room_code", r.Code).
			Str("admin_id", r.AdminID).
			Msg("admin authority transferred")
	}

	log.Info().
		Str("room_code", r.Code).
		Str("conn_id", connID).
		Int("players", len(r.Players)).
		Msg("player left room")

	a.bc.Publish(r.Code, EventRoomUpdated, RoomSnapshotPayload{Room: r})
}

// handleTimerExpiry runs when a round countdown reaches zero. The room is
// re-resolved by code; a destroyed or no-longer-active room is a silent no-op.
func (a *App) handleTimerExpiry(roomCode string) {
	a.lock()
	defer a.unlock()

	r, ok := a.store.Get(roomCode)
	if !ok {
		return
	}
	if r.Status != models.RoomStatusQuiz {
		return
	}

	for _, pl := range r.Players {
		if !pl.Answered {
			pl.Answered = true
			pl.SelectedAnswer = models.NoAnswer
			pl.RoundPoints = 0
			pl.AnswerTimeSec = r.QuestionTimeSec
		}
	}

	log.Info().
		Str("room_code", roomCode).
		Int("current_question", r.CurrentQuestion).
		Msg("round time up")

	a.bc.Publish(roomCode, EventTimeUp, RoomSnapshotPayload{Room: r})
	a.bc.Publish(roomCode, EventAllAnswered, RoomSnapshotPayload{Room: r})
}

func (a *App) handleTimerTick(roomCode string, remainingSec int) {
	a.bc.Publish(roomCode, EventTimerTick, TimerTickPayload{
		RoomCode:         roomCode,
		TimeRemainingSec: remainingSec,
	})
}

// leaderboard returns players sorted by score, highest first. Join order
// breaks ties so the result is stable.
func leaderboard(r *models.Room) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(r.Players))
	for _, pl := range r.Players {
		entries = append(entries, LeaderboardEntry{
			PlayerID: pl.ConnID,
			Name:     pl.Name,
			Score:    pl.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}
