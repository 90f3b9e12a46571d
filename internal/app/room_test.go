package app_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	testWindow = 15 * time.Second
	testBase   = 1000
)

func TestAdvanceWalksBankThenFinishes(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")

	if got := f.room.Advance(); got != app.StatusSent {
		t.Fatalf("first advance: expected sent, got %q", got)
	}
	if got := f.room.Advance(); got != app.StatusSent {
		t.Fatalf("second advance: expected sent, got %q", got)
	}
	if got := f.room.Advance(); got != app.StatusFinished {
		t.Fatalf("third advance: expected finished, got %q", got)
	}
	if got := f.room.Advance(); got != app.StatusFinished {
		t.Fatalf("repeated advance on finished room: expected finished, got %q", got)
	}

	finals := messagesOf[app.LeaderboardMessage](host)
	if len(finals) != 2 {
		t.Fatalf("expected a final leaderboard per finished signal, got %d", len(finals))
	}
	for _, lb := range finals {
		if !lb.Finished {
			t.Fatalf("expected finished leaderboard, got %+v", lb)
		}
	}
}

func TestAdvanceBroadcastsQuestionToEveryone(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	player := f.join("p1", "Alice")

	f.room.Advance()

	for name, rec := range map[string]*recorder{"host": host, "player": player} {
		questions := messagesOf[app.QuestionMessage](rec)
		if len(questions) != 1 {
			t.Fatalf("%s: expected one question, got %d", name, len(questions))
		}
		q := questions[0]
		if q.Prompt != "Which ocean is the largest?" || len(q.Options) != 4 || q.Time != 15 {
			t.Fatalf("%s: unexpected question payload %+v", name, q)
		}
	}
}

func TestImmediateCorrectAnswerEarnsBaseScore(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")

	f.room.Advance()
	f.room.SubmitAnswer("p1", "A")

	f.room.ShowLeaderboard()
	boards := messagesOf[app.LeaderboardMessage](host)
	last := boards[len(boards)-1]
	if len(last.Data) != 1 || last.Data[0].Score != testBase {
		t.Fatalf("expected Alice at %d points, got %+v", testBase, last.Data)
	}
}

func TestSlowerAnswerEarnsLess(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")

	f.room.Advance()
	f.advanceClock(testWindow / 2)
	f.room.SubmitAnswer("p1", "A")

	f.room.ShowLeaderboard()
	boards := messagesOf[app.LeaderboardMessage](host)
	last := boards[len(boards)-1]
	if len(last.Data) != 1 || last.Data[0].Score != testBase/2 {
		t.Fatalf("expected half score %d, got %+v", testBase/2, last.Data)
	}
}

func TestSecondAnswerFromSamePlayerIgnored(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")

	f.room.Advance()
	f.room.SubmitAnswer("p1", "A")
	f.room.SubmitAnswer("p1", "B")

	stats := messagesOf[app.StatsMessage](host)
	if len(stats) != 1 {
		t.Fatalf("expected one stats broadcast, got %d", len(stats))
	}
	if stats[0].Counts["A"] != 1 || stats[0].Counts["B"] != 0 {
		t.Fatalf("expected only first answer tallied, got %+v", stats[0].Counts)
	}

	f.room.ShowLeaderboard()
	boards := messagesOf[app.LeaderboardMessage](host)
	if got := boards[len(boards)-1].Data[0].Score; got != testBase {
		t.Fatalf("expected score unchanged at %d, got %d", testBase, got)
	}
}

func TestAnswerAfterDeadlineIgnored(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")

	f.room.Advance()
	f.fireDeadline(0)
	f.room.SubmitAnswer("p1", "A")

	if stats := messagesOf[app.StatsMessage](host); len(stats) != 0 {
		t.Fatalf("expected no stats after window closed, got %d", len(stats))
	}
}

func TestUnknownOptionIgnored(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")

	f.room.Advance()
	f.room.SubmitAnswer("p1", "Z")

	if stats := messagesOf[app.StatsMessage](host); len(stats) != 0 {
		t.Fatalf("expected no stats for unknown option, got %d", len(stats))
	}
}

func TestNonPlayerCannotAnswer(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("SCREEN", "Screen")

	f.room.Advance()
	f.room.SubmitAnswer("HOST", "A")
	f.room.SubmitAnswer("SCREEN", "A")
	f.room.SubmitAnswer("ghost", "A")

	if stats := messagesOf[app.StatsMessage](host); len(stats) != 0 {
		t.Fatalf("expected no stats from non-player submissions, got %d", len(stats))
	}
}

func TestDeadlineRevealsAnswerAndNudgesHost(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	player := f.join("p1", "Alice")

	f.room.Advance()
	f.fireDeadline(0)

	locks := messagesOf[app.LockMessage](player)
	if len(locks) != 1 || locks[0].CorrectID != "A" {
		t.Fatalf("expected lock revealing A, got %+v", locks)
	}
	if ends := messagesOf[app.QuestionEndMessage](host); len(ends) != 1 {
		t.Fatalf("expected question_end for host, got %d", len(ends))
	}
	if ends := messagesOf[app.QuestionEndMessage](player); len(ends) != 0 {
		t.Fatalf("player must not receive question_end, got %d", len(ends))
	}
}

func TestStaleDeadlineIsNoop(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	player := f.join("p1", "Alice")

	f.room.Advance()
	f.room.Advance() // host override before the first deadline

	f.fireDeadline(0) // stale: question 0 has been superseded
	if locks := messagesOf[app.LockMessage](player); len(locks) != 0 {
		t.Fatalf("stale deadline must not lock, got %+v", locks)
	}
	if ends := messagesOf[app.QuestionEndMessage](host); len(ends) != 0 {
		t.Fatalf("stale deadline must not notify host, got %d", len(ends))
	}

	// The player can still answer the live question.
	f.room.SubmitAnswer("p1", "B")
	if stats := messagesOf[app.StatsMessage](host); len(stats) != 1 {
		t.Fatalf("expected live question to accept answers, got %d stats", len(stats))
	}

	f.fireDeadline(1)
	locks := messagesOf[app.LockMessage](player)
	if len(locks) != 1 || locks[0].CorrectID != "B" {
		t.Fatalf("expected single lock for question 2, got %+v", locks)
	}
	if ends := messagesOf[app.QuestionEndMessage](host); len(ends) != 1 {
		t.Fatalf("expected single question_end, got %d", len(ends))
	}
}

func TestRosterListsPlayersOnly(t *testing.T) {
	f := newFixture(t)
	f.join("HOST", "Host")
	f.join("p1", "Alice")
	player2 := f.join("p2", "Bob")

	rosters := messagesOf[app.PlayersMessage](player2)
	last := rosters[len(rosters)-1]
	if len(last.Data) != 2 || last.Data[0].Name != "Alice" || last.Data[1].Name != "Bob" {
		t.Fatalf("expected roster [Alice Bob], got %+v", last.Data)
	}
}

func TestDisconnectKeepsIdentityAndScore(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	f.join("p1", "Alice")
	player2 := f.join("p2", "Bob")

	f.room.Advance()
	f.room.SubmitAnswer("p1", "A")
	f.room.Unregister("p1")

	// Bob still sees Alice on the roster after her disconnect.
	rosters := messagesOf[app.PlayersMessage](player2)
	last := rosters[len(rosters)-1]
	if len(last.Data) != 2 {
		t.Fatalf("expected disconnected player kept on roster, got %+v", last.Data)
	}

	// Rejoining under the same id restores the accumulated score.
	f.join("p1", "Alice")
	f.room.ShowLeaderboard()
	boards := messagesOf[app.LeaderboardMessage](host)
	lb := boards[len(boards)-1]
	if lb.Data[0].Name != "Alice" || lb.Data[0].Score != testBase {
		t.Fatalf("expected Alice to keep %d points, got %+v", testBase, lb.Data)
	}
}

func TestMidGameLeaderboardHidesStandingsFromPlayers(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	screen := f.join("SCREEN", "Screen")
	player := f.join("p1", "Alice")

	f.room.Advance()
	f.room.ShowLeaderboard()

	if boards := messagesOf[app.LeaderboardMessage](host); len(boards) != 1 {
		t.Fatalf("expected host leaderboard, got %d", len(boards))
	}
	if boards := messagesOf[app.LeaderboardMessage](screen); len(boards) != 1 {
		t.Fatalf("expected screen leaderboard, got %d", len(boards))
	}
	if boards := messagesOf[app.LeaderboardMessage](player); len(boards) != 0 {
		t.Fatalf("players must not see mid-game standings, got %d", len(boards))
	}
	if waits := messagesOf[app.WaitMessage](player); len(waits) != 1 {
		t.Fatalf("expected wait placeholder for player, got %d", len(waits))
	}
}

func TestFinalLeaderboardReachesPlayersRanked(t *testing.T) {
	f := newFixture(t)
	player := f.join("p1", "Alice")
	f.join("p2", "Bob")

	f.room.Advance()
	f.room.SubmitAnswer("p2", "A")
	f.room.Advance()
	f.room.Advance() // past the bank

	boards := messagesOf[app.LeaderboardMessage](player)
	if len(boards) != 1 {
		t.Fatalf("expected final leaderboard for player, got %d", len(boards))
	}
	lb := boards[0]
	if !lb.Finished {
		t.Fatalf("expected finished flag, got %+v", lb)
	}
	if lb.Data[0].Name != "Bob" || lb.Data[1].Name != "Alice" {
		t.Fatalf("expected Bob ranked first, got %+v", lb.Data)
	}
}

func TestShowChartReachesScreenOnly(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	screen := f.join("SCREEN", "Screen")
	player := f.join("p1", "Alice")

	f.room.ShowChart()

	if charts := messagesOf[app.ShowChartMessage](screen); len(charts) != 1 {
		t.Fatalf("expected chart cue for screen, got %d", len(charts))
	}
	if charts := messagesOf[app.ShowChartMessage](host); len(charts) != 0 {
		t.Fatalf("host must not receive chart cue, got %d", len(charts))
	}
	if charts := messagesOf[app.ShowChartMessage](player); len(charts) != 0 {
		t.Fatalf("player must not receive chart cue, got %d", len(charts))
	}
}

func TestStatsGoToHostAndScreenOnly(t *testing.T) {
	f := newFixture(t)
	host := f.join("HOST", "Host")
	screen := f.join("SCREEN", "Screen")
	player := f.join("p1", "Alice")

	f.room.Advance()
	f.room.SubmitAnswer("p1", "B")

	if stats := messagesOf[app.StatsMessage](host); len(stats) != 1 || stats[0].Counts["B"] != 1 {
		t.Fatalf("expected host stats with B=1, got %+v", stats)
	}
	if stats := messagesOf[app.StatsMessage](screen); len(stats) != 1 {
		t.Fatalf("expected screen stats, got %d", len(stats))
	}
	if stats := messagesOf[app.StatsMessage](player); len(stats) != 0 {
		t.Fatalf("players must not see live tallies, got %d", len(stats))
	}
}

func TestSendFailureTreatedAsDisconnect(t *testing.T) {
	f := newFixture(t)
	healthy := f.join("p1", "Alice")
	flaky := f.join("p2", "Bob")
	flaky.setFail(true)

	f.room.Advance() // broadcast fails for Bob, succeeds for Alice

	if questions := messagesOf[app.QuestionMessage](healthy); len(questions) != 1 {
		t.Fatalf("broadcast must reach remaining participants, got %d", len(questions))
	}

	// Bob is now considered disconnected: even once the connection would
	// work again, nothing more is delivered to the stale handle.
	flaky.setFail(false)
	before := len(flaky.messages())
	f.room.ShowLeaderboard()
	if after := len(flaky.messages()); after != before {
		t.Fatalf("expected no delivery to dropped connection, got %d new messages", after-before)
	}
}

// fixture bundles a room with a controllable clock and deadline scheduler.
type fixture struct {
	t     *testing.T
	room  *app.Room
	mu    sync.Mutex
	now   time.Time
	fired []func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, now: time.Unix(1700000000, 0)}
	f.room = app.NewRoomWithTimers("TEST42", testBank(), testWindow, testBase, f.clock, f.schedule)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advanceClock(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) schedule(_ time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, fn)
}

// fireDeadline runs the i-th scheduled deadline callback synchronously.
func (f *fixture) fireDeadline(i int) {
	f.t.Helper()
	f.mu.Lock()
	if i >= len(f.fired) {
		f.mu.Unlock()
		f.t.Fatalf("no deadline %d scheduled", i)
	}
	fn := f.fired[i]
	f.mu.Unlock()
	fn()
}

func (f *fixture) join(id, name string) *recorder {
	rec := &recorder{}
	f.room.Register(id, name, rec)
	return rec
}

func testBank() domain.Bank {
	return domain.Bank{
		ID: "default",
		Questions: []domain.Question{
			{
				Prompt: "Which ocean is the largest?",
				Options: []domain.Option{
					{ID: "A", Text: "Pacific"},
					{ID: "B", Text: "Atlantic"},
					{ID: "C", Text: "Indian"},
					{ID: "D", Text: "Arctic"},
				},
				Answer: "A",
			},
			{
				Prompt: "How many minutes are in an hour?",
				Options: []domain.Option{
					{ID: "A", Text: "90"},
					{ID: "B", Text: "60"},
					{ID: "C", Text: "100"},
					{ID: "D", Text: "45"},
				},
				Answer: "B",
			},
		},
	}
}

// recorder captures everything sent to one participant.
type recorder struct {
	mu   sync.Mutex
	msgs []any
	fail bool
}

func (r *recorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection gone")
	}
	r.msgs = append(r.msgs, v)
	return nil
}

func (r *recorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *recorder) messages() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func messagesOf[T any](r *recorder) []T {
	var out []T
	for _, m := range r.messages() {
		if typed, ok := m.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
