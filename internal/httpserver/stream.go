// internal/httpserver/stream.go
//
// GET /session/stream: pushes a snapshot over a WebSocket on connect and
// after every state change of the session, including timer-driven reverts
// and feedback expiry. Clients should ignore snapshots whose version is not
// newer than the last one they rendered. When the session is deleted or
// swept the server sends a normal close frame and hangs up.

package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/oceantree/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	streamBuf  = 16
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.origin
		},
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug().Err(err).Str("session", sess.ID).Msg("stream upgrade")
		return
	}
	defer conn.Close()

	updates := make(chan game.Snapshot, streamBuf)
	cancel := sess.Machine.Subscribe(func(snap game.Snapshot) {
		// Never block the machine: when the client falls behind, drop the
		// oldest queued snapshot.
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug().Str("session", sess.ID).Msg("stream open")
	defer s.log.Debug().Str("session", sess.ID).Msg("stream closed")

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sess.Machine.State()); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-sess.Machine.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case snap := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
