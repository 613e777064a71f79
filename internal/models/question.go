package models

// QuestionOptionCount is the fixed number of options every question carries.
const QuestionOptionCount = 4

// Question is a generated trivia question. Questions are produced by the
// external generator; the engine only validates their shape.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
}

// Valid reports whether the question has the shape the engine relies on:
// exactly four options and an in-range correct index.
func (q Question) Valid() bool {
	return len(q.Options) == QuestionOptionCount &&
		q.CorrectAnswer >= 0 && q.CorrectAnswer < QuestionOptionCount
}
