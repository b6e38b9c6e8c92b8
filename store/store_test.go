package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Role{}, &models.Post{}, &models.Comment{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedComments(t *testing.T, db *gorm.DB, postID, userID uint, n int) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := models.Comment{
			PostID:    postID,
			UserID:    userID,
			Body:      fmt.Sprintf("comment %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&c).Error)
	}
}

func TestRange_OrdersNewestFirstWithCount(t *testing.T) {
	db := setupTestDB(t)
	u := seedUser(t, db, "alice")
	seedComments(t, db, 1, u.ID, 12)
	seedComments(t, db, 2, u.ID, 3)

	comments := NewComments(db)
	parent := uint(1)

	rows, total, err := comments.Range(context.Background(), RangeQuery{ParentID: &parent, From: 0, To: 9})
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	require.Len(t, rows, 10)
	assert.Equal(t, "comment 12", rows[0].Body)
	assert.Equal(t, "comment 3", rows[9].Body)
	assert.Equal(t, "alice", rows[0].User.Username)

	rows, total, err = comments.Range(context.Background(), RangeQuery{ParentID: &parent, From: 10, To: 19})
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "comment 1", rows[1].Body)

	rows, total, err = comments.Range(context.Background(), RangeQuery{ParentID: &parent, From: 20, To: 29})
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	assert.Empty(t, rows)
}

func TestRange_RejectsBadWindow(t *testing.T) {
	db := setupTestDB(t)
	_, _, err := NewPosts(db).Range(context.Background(), RangeQuery{From: 5, To: 4})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInvalid, se.Code)

	parent := uint(1)
	_, _, err = NewPosts(db).Range(context.Background(), RangeQuery{ParentID: &parent, From: 0, To: 4})
	require.ErrorAs(t, err, &se)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	db := setupTestDB(t)
	u := seedUser(t, db, "admin")
	posts := NewPosts(db)
	ctx := context.Background()

	p := &models.Post{UserID: u.ID, Title: "Hello", Body: "World"}
	require.NoError(t, posts.Create(ctx, p))
	require.NotZero(t, p.ID)
	assert.Nil(t, p.ImageURL)
	assert.Equal(t, "admin", p.User.Username)

	url := "/static/uploads/a.png"
	updated, err := posts.Update(ctx, p.ID, map[string]any{"title": "Hello again", "image_url": &url})
	require.NoError(t, err)
	assert.Equal(t, "Hello again", updated.Title)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, url, *updated.ImageURL)

	_, err = posts.Update(ctx, p.ID, map[string]any{"user_id": 99})
	assert.Error(t, err)

	_, err = posts.Update(ctx, 999, map[string]any{"title": "x"})
	assert.True(t, IsNotFound(err))

	seedComments(t, db, p.ID, u.ID, 2)
	require.NoError(t, posts.Delete(ctx, p.ID))

	_, err = posts.Get(ctx, p.ID)
	assert.True(t, IsNotFound(err))
	var left int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&left).Error)
	assert.Zero(t, left)

	assert.True(t, IsNotFound(posts.Delete(ctx, p.ID)))
}

func TestRange_StoreFailureIsStructured(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `comments`").WillReturnError(errors.New("connection refused"))

	parent := uint(3)
	rows, total, err := NewComments(db).Range(context.Background(), RangeQuery{ParentID: &parent, From: 0, To: 9})
	assert.Nil(t, rows)
	assert.Zero(t, total)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInternal, se.Code)
	assert.Contains(t, se.Message, "connection refused")
	assert.False(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
