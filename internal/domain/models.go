package domain

// Role classifies what a participant may do in a room.
type Role string

const (
	// RolePlayer answers questions and is scored.
	RolePlayer Role = "player"
	// RoleHost controls pacing and sees live tallies.
	RoleHost Role = "HOST"
	// RoleScreen is a passive aggregate display.
	RoleScreen Role = "SCREEN"
)

// RoleFor derives the role from a participant identifier. The HOST and
// SCREEN identifiers are reserved; everything else joins as a player.
func RoleFor(participantID string) Role {
	switch participantID {
	case string(RoleHost):
		return RoleHost
	case string(RoleScreen):
		return RoleScreen
	default:
		return RolePlayer
	}
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question. Answer holds the ID of the single
// correct option and is never included in question broadcasts.
type Question struct {
	Prompt  string   `json:"q"`
	Options []Option `json:"options"`
	Answer  string   `json:"answer"`
}

// Bank is an ordered, immutable sequence of questions a room plays through.
type Bank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// LeaderboardEntry is a snapshot-friendly view of a scored player.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
