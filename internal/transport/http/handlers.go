package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// API exposes the host-facing control endpoints over plain HTTP.
type API struct {
	service *app.RoomService
}

func NewAPI(service *app.RoomService) *API {
	return &API{service: service}
}

// NewMux wires the control endpoints and the realtime channel into one router.
func NewMux(api *API, ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /create-game", api.CreateGame)
	mux.HandleFunc("GET /check-pin/{pin}", api.CheckPIN)
	mux.HandleFunc("POST /next/{pin}", api.Next)
	mux.HandleFunc("POST /show-chart/{pin}", api.ShowChart)
	mux.HandleFunc("POST /show-leaderboard/{pin}", api.ShowLeaderboard)
	mux.HandleFunc("GET /ws/{pin}/{playerID}/{name}", ws.ServeWS)
	return mux
}

// CreateGame allocates a room and returns its join PIN.
func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	code, err := a.service.CreateRoom(r.Context())
	if err != nil {
		log.Printf("create game failed: %v", err)
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pin": code})
}

// CheckPIN probes whether a PIN refers to a live room and whether the
// game already started. Unknown PINs are a normal answer, not a 404.
func (a *API) CheckPIN(w http.ResponseWriter, r *http.Request) {
	valid, started := a.service.CheckRoom(r.PathValue("pin"))
	if !valid {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "started": started})
}

// Next advances the room one question forward.
func (a *API) Next(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.Advance(r.PathValue("pin"))
	if err != nil {
		respondNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

// ShowChart cues the screen to display the answer distribution.
func (a *API) ShowChart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ShowChart(r.PathValue("pin")); err != nil {
		respondNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ShowLeaderboard broadcasts current standings to the room.
func (a *API) ShowLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ShowLeaderboard(r.PathValue("pin")); err != nil {
		respondNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func respondNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRoomNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
