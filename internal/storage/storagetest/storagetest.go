// Package storagetest opens throwaway SQLite databases for tests.
package storagetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"social-go/internal/models"
	"social-go/internal/storage"
)

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.AutoMigrateTables(db))
	return db
}

// SeedUser inserts a user with the given id and name.
func SeedUser(t testing.TB, db *gorm.DB, id, name string) *models.User {
	t.Helper()
	u := &models.User{
		BaseModel:    models.BaseModel{ID: id},
		Name:         name,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Interests:    []string{},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Clock hands out strictly increasing timestamps, one step apart.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewClock starts at a fixed UTC instant and advances one second per call.
func NewClock() *Clock {
	return &Clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}
