package app

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Advance outcomes reported to the host.
const (
	StatusSent     = "sent"
	StatusFinished = "finished"
)

// Sender delivers one message to a connected participant. The room only
// holds a weak reference to the connection: Send must not block, and a
// returned error is interpreted as the participant having disconnected.
type Sender interface {
	Send(v any) error
}

type participant struct {
	id    string
	name  string
	role  domain.Role
	score int
	conn  Sender // nil while disconnected
}

// Room owns one quiz session: question progression, the synchronized
// answer window, per-question tallies, and the participant roster with
// scores. All state is ephemeral and serialized behind a single mutex;
// distinct rooms share nothing.
type Room struct {
	code      string
	bank      domain.Bank
	window    time.Duration
	baseScore int

	now      func() time.Time
	schedule func(d time.Duration, fn func())

	mu             sync.Mutex
	questionIndex  int
	started        bool
	windowOpen     bool
	windowOpenedAt time.Time
	responded      map[string]struct{}
	tally          map[string]int
	participants   map[string]*participant
}

// NewRoom creates a room in the not-started state.
func NewRoom(code string, bank domain.Bank, window time.Duration, baseScore int) *Room {
	return NewRoomWithTimers(code, bank, window, baseScore, time.Now, func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	})
}

// NewRoomWithTimers injects the clock and deadline scheduler for
// deterministic tests.
func NewRoomWithTimers(code string, bank domain.Bank, window time.Duration, baseScore int, now func() time.Time, schedule func(time.Duration, func())) *Room {
	return &Room{
		code:          code,
		bank:          bank,
		window:        window,
		baseScore:     baseScore,
		now:           now,
		schedule:      schedule,
		questionIndex: -1,
		responded:     make(map[string]struct{}),
		tally:         make(map[string]int),
		participants:  make(map[string]*participant),
	}
}

func (r *Room) Code() string { return r.code }

// Started reports whether the first advance has occurred.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Advance moves the room exactly one question forward. Past the end of
// the bank it broadcasts the final leaderboard and reports finished;
// repeated calls on a finished room re-signal finished.
func (r *Room) Advance() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = true
	if r.questionIndex < len(r.bank.Questions) {
		r.questionIndex++
	}

	if r.questionIndex >= len(r.bank.Questions) {
		r.windowOpen = false
		r.broadcastLeaderboardLocked(true)
		return StatusFinished
	}

	q := r.bank.Questions[r.questionIndex]
	r.responded = make(map[string]struct{})
	r.tally = make(map[string]int, len(q.Options))
	for _, opt := range q.Options {
		r.tally[opt.ID] = 0
	}
	r.windowOpenedAt = r.now()
	r.windowOpen = true

	r.broadcastLocked(everyone, QuestionMessage{
		Type:    msgQuestion,
		Prompt:  q.Prompt,
		Options: q.Options,
		Time:    int(r.window / time.Second),
	})

	// The deadline is never cancelled; closeWindow compares the captured
	// index against the live one to detect staleness.
	index := r.questionIndex
	r.schedule(r.window, func() { r.closeWindow(index) })
	return StatusSent
}

// closeWindow is the deadline callback for the question at index. A
// stale callback, one whose question has already been superseded by a
// later advance, does nothing.
func (r *Room) closeWindow(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.questionIndex != index || index >= len(r.bank.Questions) {
		return
	}

	r.windowOpen = false
	r.broadcastLocked(everyone, LockMessage{
		Type:      msgLock,
		CorrectID: r.bank.Questions[index].Answer,
	})
	r.broadcastLocked(hostOnly, QuestionEndMessage{Type: msgQuestionEnd})
}

// SubmitAnswer records one player's selection for the current question.
// Submissions from non-players, outside the window, repeated by the same
// player, or naming an unknown option are silently ignored.
func (r *Room) SubmitAnswer(participantID, optionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok || p.role != domain.RolePlayer {
		return
	}
	if !r.windowOpen {
		return
	}
	if _, answered := r.responded[participantID]; answered {
		return
	}
	if _, known := r.tally[optionID]; !known {
		return
	}

	r.responded[participantID] = struct{}{}
	r.tally[optionID]++

	if optionID == r.bank.Questions[r.questionIndex].Answer {
		elapsed := r.now().Sub(r.windowOpenedAt)
		p.score += scoreAnswer(elapsed, r.window, r.baseScore)
	}

	r.broadcastLocked(hostAndScreen, StatsMessage{Type: msgStats, Counts: r.tallySnapshotLocked()})
}

// Register attaches a connection for the given participant, replacing
// any previous one. A returning identifier keeps its accumulated score.
// Every connected participant receives a fresh roster.
func (r *Room) Register(id, name string, conn Sender) domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := domain.RoleFor(id)
	if p, ok := r.participants[id]; ok {
		p.name = name
		p.role = role
		p.conn = conn
	} else {
		r.participants[id] = &participant{id: id, name: name, role: role, conn: conn}
	}
	r.broadcastRosterLocked()
	return role
}

// Unregister drops the participant's connection but keeps identity and
// score so a rejoin picks up where it left off.
func (r *Room) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return
	}
	p.conn = nil
	r.broadcastRosterLocked()
}

// ShowChart cues the screen to render the answer distribution.
func (r *Room) ShowChart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(screenOnly, ShowChartMessage{Type: msgShowChart})
}

// ShowLeaderboard broadcasts mid-game standings: the full ranking to
// host and screen, a wait placeholder to players.
func (r *Room) ShowLeaderboard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLeaderboardLocked(false)
}

func (r *Room) broadcastLeaderboardLocked(finished bool) {
	full := LeaderboardMessage{Type: msgLeaderboard, Finished: finished, Data: r.leaderboardLocked()}
	wait := WaitMessage{Type: msgWait, Message: "Waiting..."}
	for _, p := range r.participants {
		if p.conn == nil {
			continue
		}
		msg := any(full)
		if !finished && p.role == domain.RolePlayer {
			msg = wait
		}
		if err := p.conn.Send(msg); err != nil {
			p.conn = nil
		}
	}
}

func (r *Room) broadcastRosterLocked() {
	names := make([]PlayerName, 0, len(r.participants))
	for _, p := range r.sortedParticipantsLocked() {
		if p.role == domain.RolePlayer {
			names = append(names, PlayerName{Name: p.name})
		}
	}
	r.broadcastLocked(everyone, PlayersMessage{Type: msgPlayers, Data: names})
}

// broadcastLocked fans msg out to every connected participant whose role
// matches. Delivery is fire-and-forget: one dead connection is marked
// disconnected and must not stop the rest of the broadcast.
func (r *Room) broadcastLocked(match func(domain.Role) bool, msg any) {
	for _, p := range r.participants {
		if p.conn == nil || !match(p.role) {
			continue
		}
		if err := p.conn.Send(msg); err != nil {
			p.conn = nil
		}
	}
}

func (r *Room) leaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(r.participants))
	for _, p := range r.participants {
		if p.role == domain.RolePlayer {
			entries = append(entries, domain.LeaderboardEntry{Name: p.name, Score: p.score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func (r *Room) tallySnapshotLocked() map[string]int {
	counts := make(map[string]int, len(r.tally))
	for id, n := range r.tally {
		counts[id] = n
	}
	return counts
}

// sortedParticipantsLocked gives rosters a stable order across broadcasts.
func (r *Room) sortedParticipantsLocked() []*participant {
	list := make([]*participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

func everyone(domain.Role) bool { return true }

func hostOnly(role domain.Role) bool { return role == domain.RoleHost }

func screenOnly(role domain.Role) bool { return role == domain.RoleScreen }

func hostAndScreen(role domain.Role) bool {
	return role == domain.RoleHost || role == domain.RoleScreen
}
