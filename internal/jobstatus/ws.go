package jobstatus

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

type wsOutbound struct {
	RunID           string `json:"runId"`
	State           string `json:"state"`
	Stage           string `json:"stage,omitempty"`
	PercentComplete int    `json:"percentComplete"`
	Message         string `json:"message,omitempty"`
}

// Handler serves a run's progress events over a websocket connection,
// grounded on the teacher's interaction-websocket handler shape
// (internal/gateway/handler/rpc/user_interaction.go): upgrade, a ping
// ticker alongside the event loop, one JSON frame per event, closing
// the connection once a terminal state is published.
func Handler(status JobStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
		if runID == "" {
			http.Error(w, "run_id is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		events, unsubscribe := status.Subscribe(runID)
		defer unsubscribe()

		if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				out := wsOutbound{
					RunID:           runID,
					State:           string(evt.State),
					Stage:           string(evt.Stage),
					PercentComplete: evt.PercentComplete,
					Message:         evt.Message,
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
				if evt.State == StateCompleted || evt.State == StateFailed || evt.State == StateCancelled {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
