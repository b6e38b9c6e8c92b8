package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, 5, c.PostsPageSize)
	assert.Equal(t, 10, c.CommentsPageSize)
	assert.Equal(t, 100, c.MaxPageSize)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, []string{"image/*"}, c.UploadAccept)
	assert.EqualValues(t, 10<<20, c.UploadMaxBytes())

	pg := AppConfig{DBDriver: "postgres"}
	applyDefaults(&pg)
	assert.Equal(t, "5432", pg.DBPort)
}

func TestReadFileFlattensSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9000", "AdminEmails": ["a@example.com"]},
		"database": {"Driver": "sqlite", "DBName": "blog"},
		"storage": {"Driver": "minio", "MinioUseSSL": true},
		"listing": {"PostsPageSize": 7}
	}`), 0o600))

	c, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, []string{"a@example.com"}, c.AdminEmails)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "blog", c.DBName)
	assert.Equal(t, "minio", c.StorageDriver)
	assert.True(t, c.MinioUseSSL)
	assert.Equal(t, 7, c.PostsPageSize)

	c, err = readFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, AppConfig{}, c)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"APP_PORT":             "7000",
		"UPLOAD_ACCEPT":        "image/png, .jpg ,",
		"COMMENTS_PAGE_SIZE":   "20",
		"LOG_COMPRESS":         "true",
		"CORS_ALLOWED_ORIGINS": "",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := AppConfig{AllowedOrigins: []string{"*"}}
	require.NoError(t, applyEnv(&c, lookup))
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, []string{"image/png", ".jpg"}, c.UploadAccept)
	assert.Equal(t, 20, c.CommentsPageSize)
	assert.True(t, c.LogCompress)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)

	env["REDIS_PORT"] = "six"
	err := applyEnv(&c, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_PORT")
}

func TestIsAdminEmail(t *testing.T) {
	Set(AppConfig{JWTSecret: "x", AdminEmails: []string{" Admin@Example.com "}})
	assert.True(t, IsAdminEmail("admin@example.COM"))
	assert.False(t, IsAdminEmail("other@example.com"))
	assert.False(t, IsAdminEmail(""))
}
