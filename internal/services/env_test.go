package services_test

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"social-go/internal/logging"
	"social-go/internal/models"
	"social-go/internal/realtime"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/storage/storagetest"
)

// env wires every service against one throwaway database.
type env struct {
	db    *gorm.DB
	clock *storagetest.Clock
	hub   *realtime.Hub

	users    services.UserService
	friends  services.FriendService
	convos   services.ConversationService
	messages services.MessageService
	reads    services.ReadTracker
	events   services.EventService
	activity services.ActivityService
	admin    services.AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storagetest.Open(t)
	clock := storagetest.NewClock()
	logger := logging.Discard()

	hub := realtime.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	userRepo := storage.NewGormUserRepository(db)
	friendRepo := storage.NewGormFriendRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	eventRepo := storage.NewGormEventRepository(db)
	activityRepo := storage.NewGormActivityRepository(db)

	e := &env{db: db, clock: clock, hub: hub}
	e.activity = services.NewActivityService(userRepo, activityRepo, nil, "", nil, clock.Now, logger)
	e.users = services.NewUserService(userRepo, friendRepo, logger)
	e.friends = services.NewFriendService(db, userRepo, friendRepo, e.activity, clock.Now, logger)
	e.convos = services.NewConversationService(userRepo, convoRepo, clock.Now, logger)
	e.messages = services.NewMessageService(db, userRepo, msgRepo, convoRepo, hub, nil, e.activity, clock.Now, logger)
	e.reads = services.NewReadTracker(msgRepo, hub, logger)
	e.events = services.NewEventService(db, userRepo, eventRepo, e.activity, clock.Now, logger)
	e.admin = services.NewAdminService(db, userRepo, e.users, e.friends, e.activity, logger)
	return e
}

func (e *env) seed(t *testing.T, id, name string) *models.User {
	t.Helper()
	return storagetest.SeedUser(t, e.db, id, name)
}

// recordingProducer captures what would have been published to Kafka.
type recordingProducer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	topic   string
	key     []byte
	payload []byte
}

func (p *recordingProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, payload: payload})
	return nil
}

func (p *recordingProducer) Close() {}

func (p *recordingProducer) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}
