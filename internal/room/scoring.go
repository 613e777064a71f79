package room

// basePoints is the flat award for a correct answer.
const basePoints = 10

// Score computes the points earned for one submitted answer. A correct answer
// earns basePoints plus a time bonus of floor(remaining/limit * basePoints);
// a wrong or missing answer earns nothing. Deterministic, no side effects.
func Score(answerIndex, correctIndex, secondsElapsed, questionTimeSec int) int {
	if questionTimeSec <= 0 {
		return 0
	}
	if answerIndex < 0 || answerIndex != correctIndex {
		return 0
	}
	remaining := questionTimeSec - secondsElapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > questionTimeSec {
		remaining = questionTimeSec
	}
	return basePoints + remaining*basePoints/questionTimeSec
}
