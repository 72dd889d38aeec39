package chatserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/imtypes"
	"social-go/internal/logging"
	"social-go/internal/realtime"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/storage/storagetest"
	ws "social-go/internal/websocket"
)

type chatFixture struct {
	server   *httptest.Server
	cfg      config.Config
	messages services.MessageService
	wsHub    *ws.Hub
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := storagetest.Open(t)
	storagetest.SeedUser(t, db, "u1", "Ali")
	storagetest.SeedUser(t, db, "u2", "Zeynep")
	logger := logging.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	cfg := config.Config{
		Auth: config.AuthConfig{JWTSecretKey: "chat-secret", JWTExpiry: time.Hour},
		WebSocket: config.WebSocketConfig{
			WriteWaitSeconds: 10, PongWaitSeconds: 60, PingPeriodSeconds: 54, MaxMessageSizeBytes: 4096,
		},
	}

	userRepo := storage.NewGormUserRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	messages := services.NewMessageService(db, userRepo, msgRepo, storage.NewGormConversationRepository(db),
		hub, nil, nil, storagetest.NewClock().Now, logger)
	reads := services.NewReadTracker(msgRepo, hub, logger)
	users := services.NewUserService(userRepo, storage.NewGormFriendRepository(db), logger)

	handler := NewWebSocketHandler(wsHub, messages, reads, users, nil, cfg, logger)
	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(func() {
		// stop sessions first so the server can drain its handlers
		cancel()
		<-wsHub.Done()
		server.Close()
		<-hub.Done()
	})
	return &chatFixture{server: server, cfg: cfg, messages: messages, wsHub: wsHub}
}

func (f *chatFixture) url(t *testing.T, userID, peer string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, userID, false, f.cfg.Auth, time.Now())
	require.NoError(t, err)
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?token=" + token + "&peer=" + peer
}

// readUntil returns the first frame that satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(imtypes.ServerFrame) bool) imtypes.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame imtypes.ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func TestServeWS_ChatRoundTrip(t *testing.T) {
	f := newChatFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url(t, "u1", "u2"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readUntil(t, conn, func(fr imtypes.ServerFrame) bool { return fr.Type == imtypes.FrameMessages })
	assert.Equal(t, "u1_u2", first.ConversationID)
	assert.Empty(t, first.Messages)

	require.NoError(t, conn.WriteJSON(imtypes.ClientFrame{Type: imtypes.FrameSend, Content: "merhaba"}))
	snap := readUntil(t, conn, func(fr imtypes.ServerFrame) bool {
		return fr.Type == imtypes.FrameMessages && len(fr.Messages) == 1
	})
	assert.Equal(t, "merhaba", snap.Messages[0].Content)
	assert.Equal(t, "u1", snap.Messages[0].SenderID)
	assert.False(t, snap.Messages[0].IsRead)

	// the peer answers; the open session reads it automatically
	_, err = f.messages.Send(context.Background(), "u2", "u1", "selam")
	require.NoError(t, err)
	readUntil(t, conn, func(fr imtypes.ServerFrame) bool {
		n := len(fr.Messages)
		return fr.Type == imtypes.FrameMessages && n == 2 && fr.Messages[1].Content == "selam" && fr.Messages[1].IsRead
	})

	require.NoError(t, conn.WriteJSON(imtypes.ClientFrame{Type: imtypes.FrameSend, Content: "   "}))
	errFrame := readUntil(t, conn, func(fr imtypes.ServerFrame) bool { return fr.Type == imtypes.FrameError })
	assert.Contains(t, errFrame.Error, "content")

	require.NoError(t, conn.WriteJSON(imtypes.ClientFrame{Type: imtypes.FrameMarkRead}))
	ack := readUntil(t, conn, func(fr imtypes.ServerFrame) bool { return fr.Type == imtypes.FrameRead })
	assert.Zero(t, ack.Updated)
	assert.Equal(t, 1, f.wsHub.Count())
}

func TestServeWS_Rejections(t *testing.T) {
	f := newChatFixture(t)
	base := strings.TrimSuffix(f.url(t, "u1", "u2"), "&peer=u2")

	cases := map[string]struct {
		url    string
		status int
	}{
		"no token":   {url: "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?peer=u2", status: http.StatusUnauthorized},
		"bad token":  {url: "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?token=nope&peer=u2", status: http.StatusUnauthorized},
		"no peer":    {url: base, status: http.StatusBadRequest},
		"self":       {url: base + "&peer=u1", status: http.StatusBadRequest},
		"ghost peer": {url: base + "&peer=ghost", status: http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tc.url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
