package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lufespi/gestor-academico/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type event struct {
	State      session.State `json:"state"`
	Navigation navigation    `json:"navigation"`
}

// clientMessage moves the socket to another path; the next event is decided
// for it.
type clientMessage struct {
	Path string `json:"path"`
}

// handleEvents pushes the session state and the gate decision for the
// socket's current path on every state change. The browser must already hold
// a session cookie.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	store, ok := s.sessions.Lookup(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_session")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	states, unsubscribe := store.Subscribe()
	defer unsubscribe()

	paths := make(chan string, 1)
	done := make(chan struct{})
	go s.readPump(conn, paths, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	st := store.State()
	for {
		select {
		case next, ok := <-states:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(writeWait))
				return
			}
			st = next
		case path = <-paths:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		case <-done:
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event{State: st, Navigation: s.navigate(st, path)}); err != nil {
			s.logger.Debug("websocket write", "err", err)
			return
		}
	}
}

// readPump delivers path changes until the connection fails. Only the newest
// pending path is kept.
func (s *Server) readPump(conn *websocket.Conn, paths chan string, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Path == "" {
			continue
		}
		select {
		case <-paths:
		default:
		}
		paths <- msg.Path
	}
}
