package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
	"github.com/cwrk-planet/presence-service/internal/presence"
	"github.com/cwrk-planet/presence-service/internal/security"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	upgrader websocket.Upgrader
	verifier security.TokenVerifier

	sessions *presence.SessionRegistry
	rooms    *presence.RoomRegistry
	typing   *presence.TypingTracker

	pingEvery  time.Duration
	sendBuffer int
}

func NewServer(verifier security.TokenVerifier, sessions *presence.SessionRegistry,
	rooms *presence.RoomRegistry, typing *presence.TypingTracker,
	pingEvery time.Duration, sendBuffer int) *Server {

	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	return &Server{
		verifier: verifier,
		sessions: sessions,
		rooms:    rooms,
		typing:   typing,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:  pingEvery,
		sendBuffer: sendBuffer,
	}
}

// WS endpoint: GET /ws?access_token=...
// Токен проверяется ровно один раз; невалидный — немедленный отказ без
// ретраев (клиент переполучает токен и переподключается).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	accessToken := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := s.verifier.Verify(accessToken)
	if err != nil {
		slog.Info("ws handshake rejected", "err", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), uid, s.sendBuffer, s.pingEvery)
	sess := presence.NewSession(c.id, uid, c)
	s.sessions.Register(sess)

	// все живые соединения состоят в global-комнате; по ней идёт online:count
	s.join(sess, domain.GlobalRoom)
	s.broadcastOnlineCount()

	go c.writeLoop()
	s.readLoop(c, sess)

	s.teardown(c.id)
}

func (s *Server) readLoop(c *wsConn, sess *presence.Session) {
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd contract.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			// плохое сообщение не роняет соединение
			slog.Debug("ws malformed command", "conn", c.id, "err", err)
			continue
		}
		s.handleCommand(c, sess, cmd)
	}
}

func (s *Server) handleCommand(c *wsConn, sess *presence.Session, cmd contract.Command) {
	switch cmd.Type {
	case contract.CmdJoinQuestion:
		var p contract.JoinPayload
		if decode(cmd.Payload, &p) != nil || p.ID == "" {
			return
		}
		s.join(sess, domain.QuestionRoom(p.ID))

	case contract.CmdLeaveQuestion:
		var p contract.JoinPayload
		if decode(cmd.Payload, &p) != nil || p.ID == "" {
			return
		}
		s.leave(c.id, domain.QuestionRoom(p.ID))

	case contract.CmdJoinConversation:
		var p contract.JoinPayload
		if decode(cmd.Payload, &p) != nil || p.ID == "" {
			return
		}
		s.join(sess, domain.ConversationRoom(p.ID))

	case contract.CmdLeaveConversation:
		var p contract.JoinPayload
		if decode(cmd.Payload, &p) != nil || p.ID == "" {
			return
		}
		s.leave(c.id, domain.ConversationRoom(p.ID))

	case contract.CmdTypingStart:
		var p contract.TypingStartPayload
		if decode(cmd.Payload, &p) != nil {
			return
		}
		roomID, err := domain.ParseRoomID(p.RoomID)
		if err != nil {
			slog.Debug("ws typing:start bad room", "conn", c.id, "err", err)
			return
		}
		s.typing.Start(c.id, roomID, sess.UserID, p.Username)

	case contract.CmdTypingStop:
		var p contract.TypingStopPayload
		if decode(cmd.Payload, &p) != nil {
			return
		}
		roomID, err := domain.ParseRoomID(p.RoomID)
		if err != nil {
			return
		}
		s.typing.Stop(roomID, sess.UserID)

	default:
		slog.Debug("ws unknown command", "conn", c.id, "type", cmd.Type)
	}
}

// join мутирует два реестра не атомарно, поэтому TrackJoin служит
// liveness-проверкой: если teardown (обрыв, CloseUser при отзыве токена)
// успел между шагами, вступление откатывается — иначе комната навсегда
// удержит мёртвое соединение.
func (s *Server) join(sess *presence.Session, roomID domain.RoomID) {
	s.rooms.Join(sess, roomID)
	if !s.sessions.TrackJoin(sess.ConnID, roomID) {
		s.rooms.Leave(sess.ConnID, roomID)
	}
}

func (s *Server) leave(connID string, roomID domain.RoomID) {
	s.rooms.Leave(connID, roomID)
	s.sessions.TrackLeave(connID, roomID)
}

// teardown разматывает всё состояние соединения. Идемпотентен: второй вызов
// (гонка logout + закрытие транспорта) упирается в пустой Unregister и
// выходит сразу.
func (s *Server) teardown(connID string) {
	sess, joined := s.sessions.Unregister(connID)
	if sess == nil {
		return
	}
	for _, roomID := range joined {
		s.rooms.Leave(connID, roomID)
	}
	s.typing.StopOwnedBy(connID)
	_ = sess.Conn.Close()
	s.broadcastOnlineCount()

	slog.Debug("ws teardown complete", "conn", connID, "user", sess.UserID)
}

// CloseUser закрывает все сессии пользователя (logout, отзыв токена).
func (s *Server) CloseUser(userID int64) {
	for _, sess := range s.sessions.ConnectionsOf(userID) {
		_ = sess.Conn.Close()
		s.teardown(sess.ConnID)
	}
}

func (s *Server) broadcastOnlineCount() {
	msg := contract.Lossy(contract.EventOnlineCount, contract.OnlineCountPayload{
		Count: s.sessions.Count(),
	})
	for _, sess := range s.rooms.MembersOf(domain.GlobalRoom) {
		_ = sess.Conn.TrySend(msg)
	}
}

// --- helpers ---

func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
