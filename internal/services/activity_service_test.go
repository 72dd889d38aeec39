package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/activitylog"
	"social-go/internal/logging"
	"social-go/internal/models"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/storage/storagetest"
)

func TestActivityService_PublishesToKafka(t *testing.T) {
	ctx := activitylog.WithRequestInfo(context.Background(), "curl/8", "10.0.0.1")
	db := storagetest.Open(t)
	storagetest.SeedUser(t, db, "a", "Ayşe")
	producer := &recordingProducer{}
	local := activitylog.New(activitylog.NewMemoryStore(), nil, logging.Discard())

	svc := services.NewActivityService(
		storage.NewGormUserRepository(db), storage.NewGormActivityRepository(db),
		producer, "activities", local, storagetest.NewClock().Now, logging.Discard())

	svc.Record(ctx, "a", models.ActionLogin, "Kullanıcı giriş yaptı")

	sent := producer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "activities", sent[0].topic)
	assert.Equal(t, []byte("a"), sent[0].key)

	var got models.UserActivity
	require.NoError(t, json.Unmarshal(sent[0].payload, &got))
	assert.Equal(t, "a", got.UserID)
	assert.Equal(t, "Ayşe", got.UserName)
	assert.Equal(t, models.ActionLogin, got.Action)
	assert.Equal(t, "curl/8", got.UserAgent)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.NotEmpty(t, got.ID)

	// nothing was written directly
	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)

	logs := local.Logs(ctx)
	require.Len(t, logs, 1)
	assert.Equal(t, "login", logs[0].Action)
}

func TestActivityService_FallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	storagetest.SeedUser(t, db, "a", "Ayşe")
	svc := services.NewActivityService(
		storage.NewGormUserRepository(db), storage.NewGormActivityRepository(db),
		nil, "", nil, storagetest.NewClock().Now, logging.Discard())

	svc.Record(ctx, "a", models.ActionViewPage, "/events")
	svc.Record(ctx, "ghost", models.ActionViewPage, "/events")

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a", recent[0].UserID)
}

func TestActivityService_PublishFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	storagetest.SeedUser(t, db, "a", "Ayşe")
	producer := &recordingProducer{err: errors.New("broker down")}
	svc := services.NewActivityService(
		storage.NewGormUserRepository(db), storage.NewGormActivityRepository(db),
		producer, "activities", nil, nil, logging.Discard())

	assert.NotPanics(t, func() { svc.Record(ctx, "a", models.ActionLogin, "") })
	assert.Empty(t, producer.messages())
}

func TestActivityService_PersistIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	storagetest.SeedUser(t, db, "a", "Ayşe")
	svc := services.NewActivityService(
		storage.NewGormUserRepository(db), storage.NewGormActivityRepository(db),
		nil, "", nil, storagetest.NewClock().Now, logging.Discard())

	record := models.UserActivity{
		BaseModel: models.BaseModel{ID: "evt-1"},
		UserID:    "a",
		Action:    models.ActionSendMessage,
	}
	first := record
	second := record
	require.NoError(t, svc.Persist(ctx, &first))
	require.NoError(t, svc.Persist(ctx, &second))

	list, err := svc.ForUser(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Timestamp.IsZero())

	assert.ErrorIs(t, svc.Persist(ctx, &models.UserActivity{}), services.ErrValidation)
}
