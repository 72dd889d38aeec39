package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/models"
	"social-go/internal/services"
)

func TestConversationService_SameIDForEitherOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "u2", "Zeynep")
	e.seed(t, "u1", "Ali")

	ab, created, err := e.convos.GetOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, created)
	ba, created, err := e.convos.GetOrCreateConversation(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, "u1_u2", ab.ID)
	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, map[string]string{"u1": "Ali", "u2": "Zeynep"}, ba.ParticipantNames)
	assert.False(t, ba.HasMessages())

	var count int64
	require.NoError(t, e.db.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConversationService_MissingParticipant(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "u1", "Ali")

	_, _, err := e.convos.GetOrCreateConversation(ctx, "u1", "nobody")
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, _, err = e.convos.GetOrCreateConversation(ctx, "u1", "u1")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestConversationService_RecordMessageRejectsForeignMessage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	err := e.convos.RecordMessage(ctx, "a_b", &models.Message{SenderID: "a", ReceiverID: "c"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestConversationService_SeparatorInIDsDoesNotShareSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a_b", "Ayşe")
	e.seed(t, "c", "Cem")
	e.seed(t, "a", "Ali")
	e.seed(t, "b_c", "Berk")

	_, err := e.messages.Send(ctx, "a_b", "c", "x")
	require.NoError(t, err)

	// "a" + "b_c" derives the same id as "a_b" + "c"
	_, err = e.messages.Send(ctx, "a", "b_c", "y")
	assert.ErrorIs(t, err, services.ErrValidation)
	_, _, err = e.convos.GetOrCreateConversation(ctx, "b_c", "a")
	assert.ErrorIs(t, err, services.ErrValidation)
	err = e.convos.RecordMessage(ctx, "a_b_c", &models.Message{ID: "m-y", SenderID: "a", ReceiverID: "b_c", Content: "y", SentAt: e.clock.Now()})
	assert.ErrorIs(t, err, services.ErrValidation)

	conv, err := e.convos.Get(ctx, "a_b_c", "a_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b", "c"}, conv.Participants())
	assert.Equal(t, "x", conv.LastMessageContent)
	assert.Equal(t, "a_b", conv.LastMessageSenderID)

	msgs, err := e.messages.ListBetween(ctx, "a", "b_c")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageService_SendUpdatesSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	msg, err := e.messages.Send(ctx, "a", "b", "hi")
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
	assert.Equal(t, "Ayşe", msg.SenderName)
	assert.Equal(t, "Burak", msg.ReceiverName)

	conv, err := e.convos.Get(ctx, models.ConversationID("b", "a"), "b")
	require.NoError(t, err)
	assert.Equal(t, "hi", conv.LastMessageContent)
	assert.Equal(t, "a", conv.LastMessageSenderID)
	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, msg.ID, *conv.LastMessageID)

	_, err = e.messages.Send(ctx, "b", "a", "selam")
	require.NoError(t, err)
	conv, err = e.convos.Get(ctx, "a_b", "a")
	require.NoError(t, err)
	assert.Equal(t, "selam", conv.LastMessageContent)
	assert.Equal(t, "b", conv.LastMessageSenderID)

	// outsiders cannot see it
	_, err = e.convos.Get(ctx, "a_b", "c")
	assert.ErrorIs(t, err, services.ErrNotFound)

	list, err := e.convos.ListForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a_b", list[0].ID)
}

func TestMessageService_SendValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := e.messages.Send(ctx, "a", "b", content)
		assert.ErrorIs(t, err, services.ErrValidation, "content %q", content)
	}
	_, err := e.messages.Send(ctx, "a", "a", "hi")
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = e.messages.Send(ctx, "a", "ghost", "hi")
	assert.ErrorIs(t, err, services.ErrNotFound)

	msgs, err := e.messages.ListBetween(ctx, "a", "b")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	var count int64
	require.NoError(t, e.db.Model(&models.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMessageService_ListBetweenIsOrdered(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")
	e.seed(t, "c", "Cem")

	senders := []string{"a", "b", "b", "a", "b", "a", "a"}
	for i, from := range senders {
		to := "b"
		if from == "b" {
			to = "a"
		}
		_, err := e.messages.Send(ctx, from, to, string(rune('A'+i)))
		require.NoError(t, err)
	}
	// unrelated traffic must not leak in
	_, err := e.messages.Send(ctx, "a", "c", "other")
	require.NoError(t, err)

	msgs, err := e.messages.ListBetween(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, msgs, len(senders))
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt), "message %d out of order", i)
	}
	for i, m := range msgs {
		assert.Equal(t, senders[i], m.SenderID)
		assert.True(t, m.IsBetween("a", "b"))
	}
}

func TestReadTracker_MarksOnlyIncoming(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	for _, c := range []string{"1", "2", "3"} {
		_, err := e.messages.Send(ctx, "a", "b", c)
		require.NoError(t, err)
	}
	_, err := e.messages.Send(ctx, "b", "a", "reply")
	require.NoError(t, err)

	n, err := e.reads.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	msgs, err := e.messages.ListBetween(ctx, "a", "b")
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == "a" {
			assert.True(t, m.IsRead, "a->b %q", m.Content)
		} else {
			assert.False(t, m.IsRead, "b->a %q", m.Content)
		}
	}

	n, err = e.reads.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err := e.messages.UnreadCount(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func TestMessageService_MerhabaScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "u1", "Ali")
	e.seed(t, "u2", "Zeynep")

	_, err := e.messages.Send(ctx, "u1", "u2", "merhaba")
	require.NoError(t, err)

	msgs, err := e.messages.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "merhaba", msgs[0].Content)
	assert.False(t, msgs[0].IsRead)

	n, err := e.reads.MarkRead(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msgs, err = e.messages.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead)
}

func nextSnapshot(t *testing.T, feed *services.Feed) []models.Message {
	t.Helper()
	select {
	case msgs, ok := <-feed.Updates():
		require.True(t, ok, "feed closed early")
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot from feed")
		return nil
	}
}

func TestMessageService_SubscribeStreamsSnapshots(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	feed, err := e.messages.Subscribe(ctx, "b", "a")
	require.NoError(t, err)
	defer feed.Close()
	assert.Equal(t, "a_b", feed.ConversationID)

	assert.Empty(t, nextSnapshot(t, feed))

	_, err = e.messages.Send(ctx, "a", "b", "merhaba")
	require.NoError(t, err)
	snap := nextSnapshot(t, feed)
	require.Len(t, snap, 1)
	assert.Equal(t, "merhaba", snap[0].Content)
	assert.False(t, snap[0].IsRead)

	_, err = e.reads.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	snap = nextSnapshot(t, feed)
	require.Len(t, snap, 1)
	assert.True(t, snap[0].IsRead)
}

func TestFeed_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	feed, err := e.messages.Subscribe(ctx, "a", "b")
	require.NoError(t, err)

	// close without ever reading the initial snapshot
	feed.Close()
	feed.Close()

	_, ok := <-feed.Updates()
	assert.False(t, ok)
}

func TestMessageService_SubscribeEndsWithContext(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := e.messages.Subscribe(ctx, "a", "b")
	require.NoError(t, err)
	defer feed.Close()

	nextSnapshot(t, feed)
	cancel()

	select {
	case _, ok := <-feed.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}
