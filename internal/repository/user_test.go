package repository

import (
	"context"
	"testing"

	"zing/internal/models"
	"zing/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID_Mock(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock)
		wantCode     string
		wantUsername string
	}{
		{
			name: "Success",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "username", "display_name", "follower_count", "following_count"}).
					AddRow("u1", "testuser", "Test User", 3, 2)
				mock.ExpectQuery(`SELECT users\.\*`).WillReturnRows(rows)
			},
			wantUsername: "testuser",
		},
		{
			name: "Not Found",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT users\.\*`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantCode: models.CodeNotFound,
		},
		{
			name: "Database Error",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`.*`).WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection"})
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewUserRepository(db)
			tt.mockBehavior(mock)

			user, err := repo.GetByID(ctx, "u1")
			if tt.wantCode != "" {
				assert.True(t, models.IsCode(err, tt.wantCode), "got %v", err)
				assert.Nil(t, user)
			} else if assert.NoError(t, err) {
				assert.Equal(t, tt.wantUsername, user.Username)
				assert.Equal(t, int64(3), user.FollowerCount)
				assert.Equal(t, int64(2), user.FollowingCount)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	alice := &models.User{Username: "alice", DisplayName: "Alice"}
	require.NoError(t, repo.Create(ctx, alice))
	require.NotEmpty(t, alice.ID)

	err := repo.Create(ctx, &models.User{Username: "alice"})
	assert.True(t, models.IsCode(err, models.CodeDuplicate), "got %v", err)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	exists, err := repo.Exists(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_EnsureUser(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	first, err := repo.EnsureUser(ctx, &models.User{Username: "bob"})
	require.NoError(t, err)
	second, err := repo.EnsureUser(ctx, &models.User{Username: "bob", DisplayName: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.DisplayName)
}

func TestUserRepository_GetByUsernames(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	tdb.CreateUser(t, "alice")
	tdb.CreateUser(t, "bob")

	users, err := repo.GetByUsernames(ctx, []string{"bob", "ghost", "alice"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.GetByUsernames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepository_UpdateAndSearch(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	carol := tdb.CreateUser(t, "carol")
	tdb.CreateUser(t, "dave")

	updated, err := repo.Update(ctx, carol.ID, map[string]interface{}{"bio": "hello", "display_name": "Carol C"})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, "Carol C", updated.DisplayName)

	_, err = repo.Update(ctx, "missing", map[string]interface{}{"bio": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	found, err := repo.Search(ctx, "CAROL", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, carol.ID, found[0].ID)

	found, err = repo.Search(ctx, "%", 20)
	require.NoError(t, err)
	assert.Empty(t, found)

	all, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserRepository_SearchFoldsDisplayNames(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	emile := &models.User{Username: "emile", DisplayName: "ÉMILE Zola"}
	require.NoError(t, repo.Create(ctx, emile))
	zoe := tdb.CreateUser(t, "zoe")

	found, err := repo.Search(ctx, "émile", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, emile.ID, found[0].ID)

	_, err = repo.Update(ctx, zoe.ID, map[string]interface{}{"display_name": "Zoë Ångström"})
	require.NoError(t, err)
	found, err = repo.Search(ctx, "ÅNGSTRÖM", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, zoe.ID, found[0].ID)
}
