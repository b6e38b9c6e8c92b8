package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_UploadAndPublicURL(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal(dir, "/static/uploads/")

	p, err := s.Upload(context.Background(), "2026/10/16/a.png", strings.NewReader("png"), 3, PutOptions{ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "2026/10/16/a.png", p)
	assert.Equal(t, "/static/uploads/2026/10/16/a.png", s.PublicURL(p))

	got, err := os.ReadFile(filepath.Join(dir, "2026", "10", "16", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
}

func TestLocal_RefusesToOverwrite(t *testing.T) {
	s := NewLocal(t.TempDir(), "/u")
	ctx := context.Background()

	_, err := s.Upload(ctx, "k.png", strings.NewReader("first"), 5, PutOptions{})
	require.NoError(t, err)

	_, err = s.Upload(ctx, "k.png", strings.NewReader("second"), 6, PutOptions{})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Duplicate", se.Name)

	_, err = s.Upload(ctx, "k.png", strings.NewReader("third"), 5, PutOptions{Overwrite: true})
	require.NoError(t, err)
}

func TestLocal_SizeMismatchLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal(dir, "/u")

	_, err := s.Upload(context.Background(), "short.png", strings.NewReader("ab"), 10, PutOptions{})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "short.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "/abs.png", "../up.png", "a/../../b.png", "a//b.png", "a\\b.png", "./a.png", strings.Repeat("x", MaxKeyLength+1)} {
		err := ValidateKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
	for _, key := range []string{"a.png", "2026/10/16/uuid-token.jpg"} {
		assert.NoError(t, ValidateKey(key), "key %q", key)
	}
}

func TestLocal_Remove(t *testing.T) {
	s := NewLocal(t.TempDir(), "/u")
	ctx := context.Background()
	_, err := s.Upload(ctx, "gone.png", strings.NewReader("x"), 1, PutOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "gone.png"))
	require.NoError(t, s.Remove(ctx, "gone.png"))
	_, err = s.Upload(ctx, "gone.png", strings.NewReader("y"), 1, PutOptions{})
	assert.NoError(t, err)
}

func TestMemory_RefusesToOverwrite(t *testing.T) {
	m := NewMemory("https://cdn.example.com/")
	ctx := context.Background()

	p, err := m.Upload(ctx, "a.png", strings.NewReader("1"), 1, PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", m.PublicURL(p))

	_, err = m.Upload(ctx, "a.png", strings.NewReader("2"), 1, PutOptions{})
	assert.True(t, IsDuplicate(err))
	b, _ := m.Object("a.png")
	assert.Equal(t, "1", string(b))
	assert.Equal(t, 2, m.Uploads())
}
