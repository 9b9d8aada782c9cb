package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zing/internal/database"
	"zing/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// TestDB is a migrated in-memory SQLite database with a stepping clock.
type TestDB struct {
	DB    *gorm.DB
	Clock *SteppingClock
}

// NewTestDB opens a private in-memory SQLite database, migrates it, and
// closes it when the test ends. The pool is pinned to one connection so the
// in-memory database lives for the whole test and writers serialize.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	clock := NewSteppingClock(time.Now().UTC().Truncate(time.Second), time.Millisecond)

	db, err := database.Open(sqlite.Open(dsn), database.Options{
		LogLevel: logger.Silent,
		NowFunc:  clock.Now,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return &TestDB{DB: db, Clock: clock}
}

// CreateUser inserts a user with the given username and returns it.
func (tdb *TestDB) CreateUser(t testing.TB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: strings.ToUpper(username[:1]) + username[1:]}
	require.NoError(t, tdb.DB.Create(u).Error)
	return u
}
