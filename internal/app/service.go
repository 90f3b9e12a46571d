package app

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"live-quiz-service/internal/domain"
)

// RoomStore abstracts how live rooms are registered (in-memory, Redis-marked).
type RoomStore interface {
	// Put registers the room under its code; false means the code is taken.
	Put(room *Room) bool
	Get(code string) (*Room, bool)
}

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// Settings are the fixed game parameters shared by all rooms.
type Settings struct {
	BankID       string
	QuestionTime time.Duration
	BaseScore    int
}

// RoomService contains the quiz session use cases: room creation and
// lookup, host pacing, player answers, and connection lifecycle.
type RoomService struct {
	rooms    RoomStore
	banks    BankRepository
	settings Settings
}

func NewRoomService(rooms RoomStore, banks BankRepository, settings Settings) *RoomService {
	return &RoomService{rooms: rooms, banks: banks, settings: settings}
}

// CreateRoom allocates a not-started room and returns its join code.
func (s *RoomService) CreateRoom(ctx context.Context) (string, error) {
	bank, err := s.banks.GetBank(ctx, s.settings.BankID)
	if err != nil {
		return "", err
	}

	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		room := NewRoom(code, bank, s.settings.QuestionTime, s.settings.BaseScore)
		if s.rooms.Put(room) {
			return code, nil
		}
		// code collision, regenerate
	}
}

// CheckRoom probes a join code before a client attempts to connect.
// An unknown code is a normal outcome, not an error.
func (s *RoomService) CheckRoom(code string) (valid, started bool) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return false, false
	}
	return true, room.Started()
}

// Advance triggers the next question (or the finish) for the room.
func (s *RoomService) Advance(code string) (string, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	return room.Advance(), nil
}

// Join attaches a connection to the room under the participant identifier
// and returns the derived role.
func (s *RoomService) Join(code, participantID, name string, conn Sender) (domain.Role, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	return room.Register(participantID, name, conn), nil
}

// Leave marks the participant disconnected; identity and score survive
// for a later rejoin.
func (s *RoomService) Leave(code, participantID string) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}
	room.Unregister(participantID)
}

// Answer records a player's selection for the room's current question.
// Invalid submissions are dropped without surfacing an error.
func (s *RoomService) Answer(code, participantID, optionID string) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}
	room.SubmitAnswer(participantID, optionID)
}

// ShowChart cues the room's screen to display the answer distribution.
func (s *RoomService) ShowChart(code string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.ShowChart()
	return nil
}

// ShowLeaderboard broadcasts current standings to the room.
func (s *RoomService) ShowLeaderboard(code string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.ShowLeaderboard()
	return nil
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const codeLength = 6

// generateCode produces a short join code. The space is large enough
// that collisions are rare; CreateRoom retries on the odd clash.
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
