package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"social-go/internal/activitylog"
	"social-go/internal/config"
	"social-go/internal/logging"
	"social-go/internal/models"
	"social-go/internal/storage"
	"social-go/internal/storage/storagetest"
)

type cliFixture struct {
	cfgPath string
	logPath string
	db      *gorm.DB
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "social.db")
	logPath := filepath.Join(dir, "activitylog")
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("LOG_LEVEL: error\nDATABASE:\n  TYPE: sqlite\n  PATH: %s\nACTIVITY_LOG:\n  PATH: %s\n", dbPath, logPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	db, err := storage.InitDB(config.DatabaseConfig{Type: "sqlite", Path: dbPath, LogLevel: "silent"}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &cliFixture{cfgPath: cfgPath, logPath: logPath, db: db}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--config", f.cfgPath}, args...))
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestGrantAdmin(t *testing.T) {
	f := newCLIFixture(t)
	storagetest.SeedUser(t, f.db, "u1", "Ali")

	out, err := f.run(t, "grant-admin", "u1@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "admin=true")

	var u models.User
	require.NoError(t, f.db.First(&u, "id = ?", "u1").Error)
	assert.True(t, u.IsAdmin)

	_, err = f.run(t, "grant-admin", "u1@example.com", "--revoke")
	require.NoError(t, err)
	require.NoError(t, f.db.First(&u, "id = ?", "u1").Error)
	assert.False(t, u.IsAdmin)

	_, err = f.run(t, "grant-admin", "nobody@example.com")
	assert.Error(t, err)
}

func TestReconcileFriends(t *testing.T) {
	f := newCLIFixture(t)
	storagetest.SeedUser(t, f.db, "u1", "Ali")
	storagetest.SeedUser(t, f.db, "u2", "Zeynep")
	require.NoError(t, f.db.Create(&models.FriendLink{UserID: "u1", FriendID: "u2"}).Error)

	out, err := f.run(t, "reconcile-friends")
	require.NoError(t, err)
	assert.Contains(t, out, "补齐 1 条")

	var count int64
	require.NoError(t, f.db.Model(&models.FriendLink{}).Where("user_id = ? AND friend_id = ?", "u2", "u1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestShowConversation(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "show-conversation", "u1", "u2")
	assert.Error(t, err)

	_, err = f.run(t, "show-conversation", "u1")
	assert.Error(t, err)
}

func TestLogsListAndClear(t *testing.T) {
	f := newCLIFixture(t)

	store, err := activitylog.OpenBadger(activitylog.BadgerConfig{Path: f.logPath})
	require.NoError(t, err)
	activitylog.New(store, nil, logging.Discard()).Log(context.Background(), "view_page", "/events")
	require.NoError(t, store.Close())

	out, err := f.run(t, "logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"view_page"`)

	_, err = f.run(t, "logs", "clear")
	require.NoError(t, err)

	out, err = f.run(t, "logs", "list")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
