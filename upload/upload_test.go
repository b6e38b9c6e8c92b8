package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/myblog/storage"
)

const mb = 1024 * 1024

var imagePolicy = Policy{MaxSize: 10 * mb, Accept: []string{"image/*"}}

// flakyStore fails the first n uploads, then delegates to a Memory store.
type flakyStore struct {
	*storage.Memory
	mu    sync.Mutex
	fails int
	gate  chan struct{}
}

func (s *flakyStore) Upload(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	fail := s.fails > 0
	if fail {
		s.fails--
	}
	s.mu.Unlock()
	if fail {
		return "", &storage.Error{Name: "EntityTooLarge", Message: "The object exceeded the maximum allowed size"}
	}
	return s.Memory.Upload(ctx, key, r, size, opts)
}

func png(size int) File {
	return FileFromBytes("photo.PNG", "image/png", make([]byte, size))
}

func TestNewKey_NoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	shape := regexp.MustCompile(`^\d{4}/\d{2}/\d{2}/[0-9a-f-]{36}-[0-9a-f]{16}\.png$`)
	for i := 0; i < 10000; i++ {
		k := NewKey("image/png")
		require.Regexp(t, shape, k)
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
}

func TestNewKey_ExtensionFollowsContentType(t *testing.T) {
	tests := []struct {
		contentType string
		ext         string
	}{
		{"image/png", ".png"},
		{"IMAGE/JPEG", ".jpg"},
		{"image/gif", ".gif"},
		{"text/html; charset=utf-8", ""},
		{"text/xml; charset=utf-8", ""},
		{"application/octet-stream", ""},
		{"", ""},
	}
	for _, tt := range tests {
		k := NewKey(tt.contentType)
		assert.Equal(t, tt.ext, filepath.Ext(k), "content type %q", tt.contentType)
		assert.NoError(t, storage.ValidateKey(k))
	}
}

func TestPolicy_Check(t *testing.T) {
	err := imagePolicy.Check(png(15 * mb))
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "photo.PNG is 15MB, larger than the 10MB limit", rej.Reason)

	err = imagePolicy.Check(FileFromBytes("notes.txt", "text/plain; charset=utf-8", []byte("hi")))
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "not an accepted file type")

	assert.NoError(t, imagePolicy.Check(png(10*mb)))
	assert.NoError(t, Policy{Accept: []string{".png"}}.Check(FileFromBytes("a.txt", "image/png", nil)))
	assert.Error(t, Policy{Accept: []string{".png"}}.Check(FileFromBytes("a.png", "text/plain; charset=utf-8", nil)))
	assert.NoError(t, Policy{}.Check(FileFromBytes("any.bin", "", []byte{1})))
}

func TestDraft_OversizeRejectedWithoutUpload(t *testing.T) {
	store := storage.NewMemory("/u")
	d := NewDraft(store, WithPolicy(imagePolicy))

	err := d.Select(png(15 * mb))
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, Idle, d.State())
	assert.Zero(t, store.Uploads())
}

func TestDraft_HappyPath(t *testing.T) {
	store := storage.NewMemory("https://cdn.example.com")
	d := NewDraft(store, WithPolicy(imagePolicy))

	require.NoError(t, d.Select(png(3)))
	assert.Equal(t, Selected, d.State())
	assert.ErrorIs(t, d.Select(png(3)), ErrAlreadySelected)

	url, err := d.Upload(context.Background())
	require.NoError(t, err)
	snap := d.Snapshot()
	assert.Equal(t, Succeeded, snap.State)
	assert.Equal(t, url, snap.URL)
	assert.Equal(t, "https://cdn.example.com/"+snap.Path, url)
	_, ok := store.Object(snap.Path)
	assert.True(t, ok)

	again, err := d.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, url, again)
	assert.Equal(t, 1, store.Uploads())

	d.Remove()
	assert.Equal(t, Idle, d.State())
	assert.Empty(t, d.URL())
}

func TestDraft_FailureKeepsFileForRetry(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory("/u"), fails: 1}
	d := NewDraft(store)
	require.NoError(t, d.Select(png(4)))

	_, err := d.Upload(context.Background())
	var se *storage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "EntityTooLarge", se.Name)

	snap := d.Snapshot()
	assert.Equal(t, Failed, snap.State)
	require.NotNil(t, snap.File)
	assert.Equal(t, "photo.PNG", snap.File.Name)
	assert.Equal(t, err, snap.Err)

	url, err := d.Upload(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, Succeeded, d.State())
}

func TestDraft_DuplicateKeyIsRetryableFailure(t *testing.T) {
	store := storage.NewMemory("/u")
	d := NewDraft(store, WithKeyFunc(func(File) string { return "fixed.png" }))
	other := NewDraft(store, WithKeyFunc(func(File) string { return "fixed.png" }))

	require.NoError(t, other.Select(png(1)))
	_, err := other.Upload(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.Select(png(2)))
	_, err = d.Upload(context.Background())
	assert.True(t, storage.IsDuplicate(err))
	assert.Equal(t, Failed, d.State())

	b, _ := store.Object("fixed.png")
	assert.Len(t, b, 1)
}

func TestDraft_SingleUploadInFlight(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory("/u"), gate: make(chan struct{})}
	d := NewDraft(store)
	require.NoError(t, d.Select(png(1)))

	done := make(chan error, 1)
	go func() {
		_, err := d.Upload(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return d.State() == Uploading }, time2s, tick)

	_, err := d.Upload(context.Background())
	assert.ErrorIs(t, err, ErrUploadInFlight)

	close(store.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.Uploads())
}

func TestDraft_RemoveDiscardsRunningUpload(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory("/u"), gate: make(chan struct{})}
	d := NewDraft(store)
	require.NoError(t, d.Select(png(1)))

	done := make(chan error, 1)
	go func() {
		_, err := d.Upload(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return d.State() == Uploading }, time2s, tick)

	d.Remove()
	close(store.gate)
	assert.True(t, errors.Is(<-done, ErrDiscarded))
	assert.Equal(t, Idle, d.State())
	assert.Empty(t, d.URL())
}

func TestUploadWithoutFile(t *testing.T) {
	_, err := NewDraft(storage.NewMemory("/u")).Upload(context.Background())
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestFileFromPath(t *testing.T) {
	jpeg := []byte("\xff\xd8\xff\xe0jpegdata")
	p := filepath.Join(t.TempDir(), "pic.jpg")
	require.NoError(t, os.WriteFile(p, jpeg, 0o644))

	f, err := FileFromPath(p)
	require.NoError(t, err)
	assert.Equal(t, "pic.jpg", f.Name)
	assert.EqualValues(t, len(jpeg), f.Size)
	assert.Equal(t, "image/jpeg", f.ContentType)

	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, jpeg, b)
}

func TestFileFromPath_TypeComesFromContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.png")
	require.NoError(t, os.WriteFile(p, []byte("<html><script>alert(1)</script></html>"), 0o644))

	f, err := FileFromPath(p)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", f.ContentType)

	var rej *RejectError
	assert.ErrorAs(t, imagePolicy.Check(f), &rej)
}
