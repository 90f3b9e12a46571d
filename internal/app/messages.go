package app

import "live-quiz-service/internal/domain"

// Outbound realtime messages. Shapes are the wire contract with the
// host, player, and screen clients; every message carries a type tag.

// PlayersMessage announces the current roster of player-role participants.
type PlayersMessage struct {
	Type string       `json:"type"`
	Data []PlayerName `json:"data"`
}

type PlayerName struct {
	Name string `json:"name"`
}

// QuestionMessage opens an answer window. Time is the window length in
// seconds; the correct option is deliberately omitted.
type QuestionMessage struct {
	Type    string          `json:"type"`
	Prompt  string          `json:"q"`
	Options []domain.Option `json:"options"`
	Time    int             `json:"time"`
}

// LockMessage closes the window and reveals the correct option.
type LockMessage struct {
	Type      string `json:"type"`
	CorrectID string `json:"correct_id"`
}

// QuestionEndMessage nudges the host UI that it may advance or show results.
type QuestionEndMessage struct {
	Type string `json:"type"`
}

// StatsMessage carries the live per-option tally for the current question.
type StatsMessage struct {
	Type   string         `json:"type"`
	Counts map[string]int `json:"counts"`
}

// LeaderboardMessage ranks players by score. Finished marks the final
// standings after the last question.
type LeaderboardMessage struct {
	Type     string                    `json:"type"`
	Finished bool                      `json:"finished"`
	Data     []domain.LeaderboardEntry `json:"data"`
}

// WaitMessage is the placeholder players see while host and screen view
// mid-game standings.
type WaitMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ShowChartMessage cues the screen to display the answer distribution.
type ShowChartMessage struct {
	Type string `json:"type"`
}

const (
	msgPlayers     = "players"
	msgQuestion    = "question"
	msgLock        = "lock"
	msgQuestionEnd = "question_end"
	msgStats       = "stats"
	msgLeaderboard = "leaderboard"
	msgWait        = "wait"
	msgShowChart   = "show_chart"
)
