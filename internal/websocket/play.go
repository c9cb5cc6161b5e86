package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/session"
)

// Play command types accepted from the client.
const (
	PlayCommandStart = "start"
	PlayCommandJump  = "jump"
	PlayCommandPause = "pause"
)

// PlayCommand is one input message on a play connection.
type PlayCommand struct {
	Type string `json:"type"`
}

// playConn adapts a WebSocket connection to the session's Conn. Writes
// go through a buffered channel so the session actor never blocks on a
// slow peer; a full buffer drops the frame, the next snapshot
// supersedes it anyway.
type playConn struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newPlayConn(conn *websocket.Conn, logger *slog.Logger) *playConn {
	return &playConn{
		conn:   conn,
		send:   make(chan []byte, 256),
		closed: make(chan struct{}),
		logger: logger,
	}
}

func (p *playConn) Send(b []byte) error {
	select {
	case <-p.closed:
		return websocket.ErrCloseSent
	case p.send <- b:
		return nil
	default:
		return nil
	}
}

func (p *playConn) Close() error {
	p.once.Do(func() {
		close(p.closed)
	})
	return p.conn.Close()
}

// writePump drains the send buffer onto the wire and keeps the
// connection alive with pings.
func (p *playConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.closed:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump translates client commands into session inbox messages. A
// read error ends the session.
func (p *playConn) readPump(sess *session.Session) {
	defer sess.Stop()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.logger.Error("websocket error", "error", err)
			}
			return
		}

		var cmd PlayCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			p.logger.Warn("invalid play command", "error", err)
			continue
		}

		p.forward(sess, cmd)
	}
}

// forward delivers one command to the session without ever blocking
// the read pump. A full inbox means the session is wedged or already
// gone; the command is dropped.
func (p *playConn) forward(sess *session.Session, cmd PlayCommand) {
	var msg any
	switch cmd.Type {
	case PlayCommandStart:
		msg = session.Start{}
	case PlayCommandJump:
		msg = session.Jump{}
	case PlayCommandPause:
		msg = session.Pause{}
	default:
		p.logger.Debug("unknown play command", "type", cmd.Type)
		return
	}
	select {
	case sess.Inbox <- msg:
	default:
	}
}

// ServePlay upgrades the connection and binds it to a fresh game
// session for the resolved player. The keeper must already carry the
// connection's local best.
func ServePlay(manager *session.Manager, playerID string, keeper *game.ScoreKeeper, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	pc := newPlayConn(conn, logger)
	sess, err := manager.StartSession(playerID, pc, keeper)
	if err != nil {
		logger.Warn("rejecting play connection", "error", err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server full"))
		conn.Close()
		return
	}

	go pc.writePump()
	go pc.readPump(sess)

	logger.Debug("new play connection", "player_id", playerID)
}
