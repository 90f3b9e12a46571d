package http

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// optionIDByColor maps the presentation labels players tap to the
// underlying option identifiers. Unknown labels are ignored.
var optionIDByColor = map[string]string{
	"blue":   "A",
	"yellow": "B",
	"red":    "C",
	"green":  "D",
}

type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type   string `json:"type"`
	Option string `json:"option"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// room. Connections for unknown PINs are closed with a policy violation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	pin := r.PathValue("pin")
	playerID := r.PathValue("playerID")
	name := r.PathValue("name")
	if pin == "" || playerID == "" || name == "" {
		http.Error(w, "missing pin, playerID, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	valid, _ := h.service.CheckRoom(pin)
	if !valid {
		closePolicyViolation(conn, "unknown pin")
		return
	}

	sender := newWSSender(conn)
	defer sender.close()

	role, err := h.service.Join(pin, playerID, name, sender)
	if err != nil {
		closePolicyViolation(conn, "unknown pin")
		return
	}
	defer h.service.Leave(pin, playerID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		// Only players may answer; any other inbound shape is a safe no-op.
		if role != domain.RolePlayer {
			continue
		}
		if inbound.Type != "answer" {
			continue
		}
		optionID, ok := optionIDByColor[inbound.Option]
		if !ok {
			continue
		}
		h.service.Answer(pin, playerID, optionID)
	}
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline,
	)
}

var (
	errConnClosed   = errors.New("ws connection closed")
	errSlowConsumer = errors.New("ws send queue full")
)

// wsSender adapts a websocket connection to the room's Sender contract.
// A writer goroutine owns all writes; Send only enqueues, so a broadcast
// never blocks on one slow client. A full queue or closed connection is
// reported as an error, which the room treats as a disconnect.
type wsSender struct {
	send chan any
	done chan struct{}
	once sync.Once
}

func newWSSender(conn *websocket.Conn) *wsSender {
	s := &wsSender{
		send: make(chan any, 16),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case msg := <-s.send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					s.close()
					return
				}
			case <-s.done:
				return
			}
		}
	}()
	return s
}

func (s *wsSender) Send(v any) error {
	select {
	case <-s.done:
		return errConnClosed
	default:
	}
	select {
	case s.send <- v:
		return nil
	case <-s.done:
		return errConnClosed
	default:
		return errSlowConsumer
	}
}

func (s *wsSender) close() {
	s.once.Do(func() { close(s.done) })
}
