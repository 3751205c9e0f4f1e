package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
	"github.com/cwrk-planet/presence-service/internal/presence"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	userID int64

	mu       sync.Mutex
	sent     []contract.Message
	closed   bool
	overflow bool
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) UserID() int64 { return c.userID }

func (c *fakeConn) TrySend(msg contract.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overflow && msg.Class == contract.ClassCritical {
		return domain.ErrQueueOverflow
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages(t contract.EventType) []contract.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []contract.Message
	for _, m := range c.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeRecorder — персистентный мост в памяти.
type fakeRecorder struct {
	mu      sync.Mutex
	records []*domain.Notification
	fail    bool
}

func (r *fakeRecorder) Record(_ context.Context, recipientID int64, typ domain.NotificationType,
	title, message string, link *string, payload map[string]string) (*domain.Notification, error) {

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("storage down")
	}
	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Link:        link,
		Payload:     payload,
	}
	r.records = append(r.records, n)
	return n, nil
}

func (r *fakeRecorder) forUser(userID int64) []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.records {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	sessions *presence.SessionRegistry
	rooms    *presence.RoomRegistry
	recorder *fakeRecorder
	engine   *Engine
}

func newFixture() *fixture {
	sessions := presence.NewSessionRegistry()
	rooms := presence.NewRoomRegistry()
	recorder := &fakeRecorder{}
	return &fixture{
		sessions: sessions,
		rooms:    rooms,
		recorder: recorder,
		engine:   NewEngine(sessions, rooms, recorder),
	}
}

func (f *fixture) connect(connID string, userID int64) (*presence.Session, *fakeConn) {
	c := &fakeConn{id: connID, userID: userID}
	sess := presence.NewSession(connID, userID, c)
	f.sessions.Register(sess)
	return sess, c
}

func TestNewAnswerBroadcastsAndNotifiesOfflineAuthor(t *testing.T) {
	f := newFixture()

	// A смотрит на вопрос 42; B (автор) оффлайн
	sessA, connA := f.connect("a", 1)
	f.rooms.Join(sessA, domain.QuestionRoom("42"))

	err := f.engine.Publish(context.Background(), domain.NewAnswer{
		QuestionID:    "42",
		QuestionTitle: "How do goroutines work?",
		AuthorID:      2,
		AnswererID:    1,
		AnswererName:  "alice",
		Preview:       "They are lightweight...",
	})
	require.NoError(t, err)

	require.Len(t, connA.messages(contract.EventActivityNew), 1)

	records := f.recorder.forUser(2)
	require.Len(t, records, 1)
	require.Equal(t, domain.NotificationAnswer, records[0].Type)

	// A — не автор, персонального уведомления у него нет
	require.Empty(t, f.recorder.forUser(1))
	require.Empty(t, connA.messages(contract.EventNotification))
}

func TestNewAnswerByAuthorSkipsSelfNotification(t *testing.T) {
	f := newFixture()

	err := f.engine.Publish(context.Background(), domain.NewAnswer{
		QuestionID: "42",
		AuthorID:   1,
		AnswererID: 1,
	})
	require.NoError(t, err)
	require.Empty(t, f.recorder.forUser(1))
}

func TestNotificationPushedToAllRecipientSessions(t *testing.T) {
	f := newFixture()

	_, conn1 := f.connect("tab1", 2)
	_, conn2 := f.connect("tab2", 2)

	err := f.engine.Publish(context.Background(), domain.BadgeEarned{
		UserID:    2,
		BadgeName: "Curious",
		BadgeTier: "bronze",
	})
	require.NoError(t, err)

	require.Len(t, f.recorder.forUser(2), 1)
	require.Len(t, conn1.messages(contract.EventNotification), 1)
	require.Len(t, conn2.messages(contract.EventNotification), 1)
}

func TestVoteUpdateIsAdvisoryOnly(t *testing.T) {
	f := newFixture()

	sessA, connA := f.connect("a", 1)
	f.rooms.Join(sessA, domain.QuestionRoom("42"))

	err := f.engine.Publish(context.Background(), domain.NewVote{
		QuestionID: "42",
		TargetID:   "ans-1",
		TargetType: domain.VoteTargetAnswer,
		NewCount:   5,
	})
	require.NoError(t, err)

	msgs := connA.messages(contract.EventVoteUpdate)
	require.Len(t, msgs, 1)
	p := msgs[0].Payload.(contract.VoteUpdatePayload)
	require.Equal(t, int64(5), p.VoteCount)
	require.Equal(t, contract.ClassLossy, msgs[0].Class)

	// без threshold-флага persist не происходит
	require.Empty(t, f.recorder.records)
}

func TestVoteThresholdNotifiesRecipient(t *testing.T) {
	f := newFixture()

	err := f.engine.Publish(context.Background(), domain.NewVote{
		QuestionID:      "42",
		TargetID:        "ans-1",
		TargetType:      domain.VoteTargetAnswer,
		NewCount:        10,
		NotifyRecipient: true,
		RecipientID:     3,
		RecipientText:   "Your answer reached 10 votes",
	})
	require.NoError(t, err)

	records := f.recorder.forUser(3)
	require.Len(t, records, 1)
	require.Equal(t, domain.NotificationVote, records[0].Type)
}

func TestNewMessageSkipsNotificationForJoinedRecipient(t *testing.T) {
	f := newFixture()
	roomID := domain.ConversationRoom("7")

	// получатель 2 читает тред, получатель 3 — нет
	sess2, conn2 := f.connect("c2", 2)
	f.rooms.Join(sess2, roomID)
	f.sessions.TrackJoin("c2", roomID)
	_, conn3 := f.connect("c3", 3)

	err := f.engine.Publish(context.Background(), domain.NewMessage{
		ConversationID: "7",
		SenderID:       1,
		SenderName:     "alice",
		RecipientIDs:   []int64{2, 3},
		Preview:        "hey",
	})
	require.NoError(t, err)

	// комнатный broadcast дошёл до читающего
	require.Len(t, conn2.messages(contract.EventActivityNew), 1)

	// персональное уведомление — только не-подключённому к комнате
	require.Empty(t, f.recorder.forUser(2))
	require.Len(t, f.recorder.forUser(3), 1)
	require.Len(t, conn3.messages(contract.EventNotification), 1)
	require.Empty(t, conn2.messages(contract.EventNotification))
}

func TestPersistHappensEvenWhenRecipientOffline(t *testing.T) {
	f := newFixture()

	err := f.engine.Publish(context.Background(), domain.NewMessage{
		ConversationID: "7",
		SenderID:       1,
		RecipientIDs:   []int64{5},
	})
	require.NoError(t, err)
	require.Len(t, f.recorder.forUser(5), 1)
}

func TestCriticalOverflowForcesDisconnect(t *testing.T) {
	f := newFixture()

	_, conn := f.connect("c1", 2)
	conn.overflow = true

	err := f.engine.Publish(context.Background(), domain.BadgeEarned{UserID: 2, BadgeName: "Curious"})
	require.NoError(t, err)

	// запись durable, соединение закрыто — клиент пересинхронизируется
	require.Len(t, f.recorder.forUser(2), 1)
	require.True(t, conn.closed)
}

func TestRecordFailurePropagates(t *testing.T) {
	f := newFixture()
	f.recorder.fail = true

	err := f.engine.Publish(context.Background(), domain.BadgeEarned{UserID: 2})
	require.Error(t, err)
}

func TestViewerJoinedRebroadcastsPresenceOnly(t *testing.T) {
	f := newFixture()
	roomID := domain.QuestionRoom("42")

	sessA, connA := f.connect("a", 1)
	f.rooms.Join(sessA, roomID)
	joinSnapshots := len(connA.messages(contract.EventQuestionViewers))

	err := f.engine.Publish(context.Background(), domain.ViewerJoined{QuestionID: "42", ViewerID: 9})
	require.NoError(t, err)

	// членам комнаты ушёл свежий снапшот; зритель вне WS членства не получил
	require.Len(t, connA.messages(contract.EventQuestionViewers), joinSnapshots+1)
	require.Equal(t, 1, f.rooms.PresenceCount(roomID))
	require.Empty(t, f.recorder.records)

	err = f.engine.Publish(context.Background(), domain.ViewerLeft{QuestionID: "42", ViewerID: 9})
	require.NoError(t, err)
	require.Len(t, connA.messages(contract.EventQuestionViewers), joinSnapshots+2)

	// пустая комната — no-op, слать некому
	err = f.engine.Publish(context.Background(), domain.ViewerJoined{QuestionID: "99", ViewerID: 9})
	require.NoError(t, err)
	require.Empty(t, f.recorder.records)
}

type bogusOccurrence struct{}

func (bogusOccurrence) Kind() domain.OccurrenceKind { return "bogus" }

func TestUnknownOccurrenceRejected(t *testing.T) {
	f := newFixture()
	err := f.engine.Publish(context.Background(), bogusOccurrence{})
	require.ErrorIs(t, err, domain.ErrUnknownOccurrence)
}
