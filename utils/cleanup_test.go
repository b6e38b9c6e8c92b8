package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Role{}, &models.User{}, &models.Post{}, &models.Comment{}, &models.UploadedFile{}))
	return db
}

func TestUploadCleaner_RemovesOnlyOrphans(t *testing.T) {
	db := openTestDB(t)
	store := storage.NewMemory("/static/uploads")
	ctx := context.Background()

	put := func(key string, age time.Duration) models.UploadedFile {
		_, err := store.Upload(ctx, key, strings.NewReader("x"), 1, storage.PutOptions{})
		require.NoError(t, err)
		f := models.UploadedFile{UserID: 1, Path: key, URL: store.PublicURL(key), Size: 1, CreatedAt: time.Now().Add(-age)}
		require.NoError(t, db.Create(&f).Error)
		return f
	}
	orphan := put("orphan.png", 2*time.Hour)
	used := put("used.png", 2*time.Hour)
	fresh := put("fresh.png", time.Minute)

	user := models.User{Username: "admin", Email: "a@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.Post{UserID: user.ID, Title: "t", Body: "b", ImageURL: &used.URL}).Error)

	n, err := NewUploadCleaner(db, store, time.Hour, 0).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := store.Object(orphan.Path)
	assert.False(t, ok)
	_, ok = store.Object(used.Path)
	assert.True(t, ok)
	_, ok = store.Object(fresh.Path)
	assert.True(t, ok)

	var left []models.UploadedFile
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].ID)
}
