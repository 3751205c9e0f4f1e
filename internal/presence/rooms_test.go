package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestJoinIsIdempotent(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.QuestionRoom("42")
	sess, conn := newTestSession("c1", 1)

	require.True(t, rooms.Join(sess, roomID))
	require.False(t, rooms.Join(sess, roomID))

	require.Len(t, rooms.MembersOf(roomID), 1)
	require.Equal(t, 1, rooms.PresenceCount(roomID))

	// снапшот presence разослан один раз — на повторный join изменения нет
	require.Len(t, conn.messages(contract.EventQuestionViewers), 1)
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.QuestionRoom("42")
	other := domain.QuestionRoom("43")
	sess, _ := newTestSession("c1", 1)

	require.True(t, rooms.Join(sess, roomID))

	// leave из несуществующей комнаты и чужим соединением
	require.False(t, rooms.Leave("c1", other))
	require.False(t, rooms.Leave("ghost", roomID))

	require.Equal(t, 1, rooms.PresenceCount(roomID))
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.QuestionRoom("42")
	sess, _ := newTestSession("c1", 1)

	rooms.Join(sess, roomID)
	require.True(t, rooms.Leave("c1", roomID))

	require.Empty(t, rooms.MembersOf(roomID))
	require.Equal(t, 0, rooms.PresenceCount(roomID))

	// повторный leave после уничтожения комнаты — no-op
	require.False(t, rooms.Leave("c1", roomID))
}

func TestPresenceBroadcastOnChange(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.QuestionRoom("42")
	s1, c1 := newTestSession("c1", 1)
	s2, _ := newTestSession("c2", 2)

	rooms.Join(s1, roomID)
	rooms.Join(s2, roomID)

	msgs := c1.messages(contract.EventQuestionViewers)
	require.Len(t, msgs, 2)

	last := msgs[len(msgs)-1].Payload.(contract.QuestionViewersPayload)
	require.Equal(t, "42", last.QuestionID)
	require.Equal(t, 2, last.Count)
	require.ElementsMatch(t, []int64{1, 2}, last.ViewerIDs)
}

func TestConversationRoomsHaveNoViewerBroadcast(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.ConversationRoom("7")
	s1, c1 := newTestSession("c1", 1)

	rooms.Join(s1, roomID)
	require.Empty(t, c1.messages(contract.EventQuestionViewers))
}

func TestConcurrentJoinLeaveConverges(t *testing.T) {
	rooms := NewRoomRegistry()
	roomID := domain.QuestionRoom("42")

	const stayers = 50
	const churners = 50

	var wg sync.WaitGroup
	for i := 0; i < stayers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _ := newTestSession(fmt.Sprintf("stay-%d", i), int64(i))
			rooms.Join(sess, roomID)
			rooms.Join(sess, roomID) // дубликат не должен раздуть счётчик
		}(i)
	}
	for i := 0; i < churners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("churn-%d", i)
			sess, _ := newTestSession(id, int64(1000+i))
			rooms.Join(sess, roomID)
			rooms.Leave(id, roomID)
		}(i)
	}
	wg.Wait()

	require.Equal(t, stayers, rooms.PresenceCount(roomID))
}

func TestUnrelatedRoomsDoNotInterfere(t *testing.T) {
	rooms := NewRoomRegistry()
	a := domain.QuestionRoom("1")
	b := domain.QuestionRoom("2")

	s1, _ := newTestSession("c1", 1)
	s2, _ := newTestSession("c2", 2)

	rooms.Join(s1, a)
	rooms.Join(s2, b)
	rooms.Leave("c1", a)

	require.Equal(t, 0, rooms.PresenceCount(a))
	require.Equal(t, 1, rooms.PresenceCount(b))
}
