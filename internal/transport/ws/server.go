package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"wanderlab.app/internal/protocol"
	"wanderlab.app/internal/sim/host"
)

type Server struct {
	host *host.Host
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *host.Host, logger *log.Logger) *Server {
	return &Server{
		host: h,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // same-origin static client in dev
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out := s.handshake(r.Context(), conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: per-tick STATE frames.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: ACT messages into the session inbox.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			sess.Inbox() <- act
		}

		// The socket is gone; a session that has not reached its terminal
		// state ends as abandoned with a best-effort flush.
		s.host.StopSession(sess.ID())
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sess SessionHandle, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, nil
	}
	playerID := strings.TrimSpace(hello.PlayerID)
	if playerID == "" {
		playerID = "anonymous"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	session, welcome, catalog := s.host.StartSession(ctx, playerID, out)

	if err := writeJSON(conn, welcome); err != nil {
		s.host.StopSession(session.ID())
		return nil, nil
	}
	if err := writeJSON(conn, catalog); err != nil {
		s.host.StopSession(session.ID())
		return nil, nil
	}
	return session, out
}

// SessionHandle is the slice of a session the transport needs.
type SessionHandle interface {
	ID() string
	Inbox() chan<- protocol.ActMsg
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
