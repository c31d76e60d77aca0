package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"triplink_chat/internal/mocks"
	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	apperr "triplink_chat/pkg/errors"
)

type recorder struct {
	id  string
	got chan []byte
}

func newRecorder(id string) *recorder {
	return &recorder{id: id, got: make(chan []byte, 64)}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(payload []byte) bool {
	select {
	case r.got <- payload:
		return true
	default:
		return false
	}
}

func (r *recorder) Close() {}

func (r *recorder) events(t *testing.T) []models.ChatMessageEvent {
	t.Helper()
	var out []models.ChatMessageEvent
	for {
		select {
		case p := <-r.got:
			var ev models.ChatMessageEvent
			require.NoError(t, json.Unmarshal(p, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestChatService_CreateRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Given a traveler, an agent, a second traveler and an admin
	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "avatars/asha.png")
	other := f.seed(t, "o@x.com", models.RoleTraveler, "Omar", "")
	admin := f.seed(t, "root@x.com", models.RoleAdmin, "", "")

	// When the traveler opens a room with the agent twice
	first, created, err := f.chat.CreateRoom(ctx, traveler, agent.UserID)
	req.NoError(err)
	req.True(created)

	second, created, err := f.chat.CreateRoom(ctx, traveler, agent.UserID)
	req.NoError(err)
	req.False(created)

	// Then both calls return the same room, annotated for the traveler
	req.Equal(first.ID, second.ID)
	req.Equal(traveler.UserID, first.Traveler)
	req.Equal(agent.UserID, first.Agent)
	req.Equal(agent.UserID, *first.OtherUserID)
	req.Equal("Asha", *first.OtherUserName)
	req.Equal("http://media.test/avatars/asha.png", *first.OtherUserAvatar)
	req.Nil(first.LastMessage)

	// And the agent opening the same pair gets the existing room
	fromAgent, created, err := f.chat.CreateRoom(ctx, agent, traveler.UserID)
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, fromAgent.ID)

	// And invalid requests are rejected
	_, _, err = f.chat.CreateRoom(ctx, admin, agent.UserID)
	req.ErrorIs(err, apperr.ErrRoleCannotChat)

	_, _, err = f.chat.CreateRoom(ctx, traveler, other.UserID)
	req.ErrorIs(err, apperr.ErrCounterpartMissing)

	_, _, err = f.chat.CreateRoom(ctx, traveler, 9999)
	req.ErrorIs(err, apperr.ErrCounterpartMissing)

	_, _, err = f.chat.CreateRoom(ctx, traveler, 0)
	req.ErrorIs(err, apperr.ErrCounterpartID)
}

func TestChatService_PostMessage_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	// Given two live subscribers in the room
	a, b := newRecorder("a"), newRecorder("b")
	f.hub.Join(room.ID, a)
	f.hub.Join(room.ID, b)

	// When the traveler posts two messages
	first, err := f.chat.PostMessage(ctx, traveler, room.ID, "  first  ", TransportREST)
	req.NoError(err)
	_, err = f.chat.PostMessage(ctx, traveler, room.ID, "second", TransportWS)
	req.NoError(err)

	// Then the returned event has the broadcast shape
	req.Equal(models.FrameTypeChatMessage, first.Type)
	req.Equal("first", first.Text)
	req.Equal(traveler.UserID, first.SenderID)
	req.Equal("Tara", first.SenderName)

	// And every subscriber receives both, once each, in order
	for _, sub := range []*recorder{a, b} {
		events := sub.events(t)
		req.Len(events, 2)
		req.Equal("first", events[0].Text)
		req.Equal("second", events[1].Text)
		req.Less(events[0].ID, events[1].ID)
	}

	// And the room activity moved to the last message
	stored, err := f.repos.Room.FindByID(ctx, room.ID)
	req.NoError(err)
	req.False(stored.UpdatedAt.Before(first.CreatedAt))
}

func TestChatService_PostMessage_Rejections(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	stranger := f.seed(t, "s@x.com", models.RoleTraveler, "Sam", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	sub := newRecorder("watcher")
	f.hub.Join(room.ID, sub)

	_, err = f.chat.PostMessage(ctx, stranger, room.ID, "hi", TransportREST)
	req.ErrorIs(err, apperr.ErrNotParticipant)

	_, err = f.chat.PostMessage(ctx, traveler, room.ID, "   ", TransportREST)
	req.ErrorIs(err, apperr.ErrEmptyMessage)

	_, err = f.chat.PostMessage(ctx, traveler, room.ID+100, "hi", TransportREST)
	req.ErrorIs(err, apperr.ErrRoomNotFound)

	// Nothing was stored or broadcast
	req.Empty(sub.events(t))
	page, err := f.chat.ListMessages(ctx, traveler, room.ID, repository.PageQuery{})
	req.NoError(err)
	req.Empty(page.Results)
}

func TestChatService_PostMessage_PublishFailureStillStores(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	// Given a broker that refuses every publish
	ctrl := gomock.NewController(t)
	broker := mocks.NewMockBroadcaster(ctrl)
	broker.EXPECT().
		Publish(gomock.Any(), room.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uint, payload []byte) error {
			var ev models.ChatMessageEvent
			req.NoError(json.Unmarshal(payload, &ev))
			req.Equal("kept", ev.Text)
			return errors.New("broker down")
		}).
		Times(1)

	limits := repository.PageLimits{Default: repository.DefaultPageSize, Max: repository.MaxPageSize}
	chat := NewChatService(f.repos, broker, limits, "", zerolog.Nop())

	// When a message is posted
	event, err := chat.PostMessage(ctx, traveler, room.ID, "kept", TransportREST)

	// Then the write succeeds and the message is in history
	req.NoError(err)
	page, err := chat.ListMessages(ctx, agent, room.ID, repository.PageQuery{})
	req.NoError(err)
	req.Len(page.Results, 1)
	req.Equal(event.ID, page.Results[0].ID)
}

func TestChatService_ListRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "", "https://cdn.test/t.png")
	agentA := f.seed(t, "asha@agency.np", models.RoleAgent, "Asha", "")
	agentB := f.seed(t, "bikash@agency.np", models.RoleAgent, "", "")
	third := f.seed(t, "third@x.com", models.RoleTraveler, "Third", "")

	roomA, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agentA.UserID)
	req.NoError(err)
	roomB, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agentB.UserID)
	req.NoError(err)

	// Given activity in room A after room B was created
	long := strings.Repeat("é", 120)
	_, err = f.chat.PostMessage(ctx, agentA, roomA.ID, "hello", TransportWS)
	req.NoError(err)
	_, err = f.chat.PostMessage(ctx, agentA, roomA.ID, long, TransportWS)
	req.NoError(err)

	// When the traveler lists rooms
	rooms, err := f.chat.ListRooms(ctx, traveler)
	req.NoError(err)

	// Then the most recently active room comes first, annotated for the traveler
	req.Len(rooms, 2)
	req.Equal(roomA.ID, rooms[0].ID)
	req.Equal(roomB.ID, rooms[1].ID)

	req.Equal("Asha", *rooms[0].OtherUserName)
	req.Nil(rooms[0].OtherUserAvatar)
	req.Equal(strings.Repeat("é", 100)+"...", *rooms[0].LastMessage)
	req.EqualValues(2, rooms[0].UnreadCount)

	req.Equal("bikash", *rooms[1].OtherUserName)
	req.Nil(rooms[1].LastMessage)
	req.Zero(rooms[1].UnreadCount)
	req.Equal(rooms[1].UpdatedAt, rooms[1].LastMessageAt)

	// And the agent sees the traveler's absolute avatar and the email fallback name
	agentRooms, err := f.chat.ListRooms(ctx, agentA)
	req.NoError(err)
	req.Len(agentRooms, 1)
	req.Equal("t", *agentRooms[0].OtherUserName)
	req.Equal("https://cdn.test/t.png", *agentRooms[0].OtherUserAvatar)
	req.Zero(agentRooms[0].UnreadCount)

	// And an unrelated user sees nothing
	none, err := f.chat.ListRooms(ctx, third)
	req.NoError(err)
	req.Empty(none)
}

func TestChatService_ListMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	stranger := f.seed(t, "s@x.com", models.RoleAgent, "Sam", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	for i := 0; i < 35; i++ {
		_, err := f.chat.PostMessage(ctx, traveler, room.ID, fmt.Sprintf("m%d", i), TransportREST)
		req.NoError(err)
	}

	// Newest first with default page size
	page, err := f.chat.ListMessages(ctx, agent, room.ID, repository.PageQuery{})
	req.NoError(err)
	req.Len(page.Results, repository.DefaultPageSize)
	req.True(page.HasMore)
	req.Equal("m34", page.Results[0].Text)
	req.Equal("Tara", page.Results[0].SenderName)

	next, err := f.chat.ListMessages(ctx, agent, room.ID, repository.PageQuery{Page: 2})
	req.NoError(err)
	req.Len(next.Results, 5)
	req.False(next.HasMore)
	req.Equal("m0", next.Results[4].Text)

	// A non-participant gets an empty page, not an error
	empty, err := f.chat.ListMessages(ctx, stranger, room.ID, repository.PageQuery{})
	req.NoError(err)
	req.Empty(empty.Results)
	req.False(empty.HasMore)
}

func TestChatService_UnreadAndMarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	stranger := f.seed(t, "s@x.com", models.RoleTraveler, "Sam", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	// Given three messages from the agent and one reply
	for _, text := range []string{"a", "b", "c"} {
		_, err := f.chat.PostMessage(ctx, agent, room.ID, text, TransportWS)
		req.NoError(err)
	}
	_, err = f.chat.PostMessage(ctx, traveler, room.ID, "thanks", TransportWS)
	req.NoError(err)

	summary, err := f.chat.UnreadCount(ctx, traveler)
	req.NoError(err)
	req.EqualValues(3, summary.Total)
	req.EqualValues(1, summary.RoomsWithUnread)

	// When the traveler marks the room read twice
	marked, err := f.chat.MarkRead(ctx, traveler, room.ID)
	req.NoError(err)
	req.EqualValues(3, marked)

	marked, err = f.chat.MarkRead(ctx, traveler, room.ID)
	req.NoError(err)
	req.Zero(marked)

	// Then the traveler has nothing unread and the agent still has the reply
	summary, err = f.chat.UnreadCount(ctx, traveler)
	req.NoError(err)
	req.Zero(summary.Total)

	summary, err = f.chat.UnreadCount(ctx, agent)
	req.NoError(err)
	req.EqualValues(1, summary.Total)

	// And outsiders and missing rooms are rejected
	_, err = f.chat.MarkRead(ctx, stranger, room.ID)
	req.ErrorIs(err, apperr.ErrNotParticipant)
	_, err = f.chat.MarkRead(ctx, traveler, room.ID+100)
	req.ErrorIs(err, apperr.ErrRoomNotFound)
}

func TestPreview(t *testing.T) {
	req := require.New(t)

	req.Equal("short", preview("short"))
	req.Equal(strings.Repeat("a", 100), preview(strings.Repeat("a", 100)))
	req.Equal(strings.Repeat("a", 100)+"...", preview(strings.Repeat("a", 101)))
}

func TestChatService_RESTMessageMatchesHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	traveler := f.seed(t, "t@x.com", models.RoleTraveler, "Tara", "")
	agent := f.seed(t, "a@x.com", models.RoleAgent, "Asha", "")
	room, _, err := f.chat.OpenRoom(ctx, traveler.UserID, agent.UserID)
	req.NoError(err)

	// When a message is created over REST
	event, err := f.chat.PostMessage(ctx, traveler, room.ID, "Hello", TransportREST)
	req.NoError(err)

	// Then the history shows the same fields
	page, err := f.chat.ListMessages(ctx, agent, room.ID, repository.PageQuery{})
	req.NoError(err)
	req.Len(page.Results, 1)
	got := page.Results[0]
	req.Equal(event.ID, got.ID)
	req.Equal(event.RoomID, got.RoomID)
	req.Equal(event.Text, got.Text)
	req.Equal(event.SenderID, got.SenderID)
	req.Equal(event.SenderName, got.SenderName)
	req.True(event.CreatedAt.Equal(got.CreatedAt))
	req.False(got.IsRead)
}
