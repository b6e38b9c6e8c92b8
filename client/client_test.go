package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/client"
	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/realtime"
	"github.com/cppla/myblog/routes"
	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/store"
	"github.com/cppla/myblog/submission"
	"github.com/cppla/myblog/upload"
	"github.com/cppla/myblog/utils"
)

const adminEmail = "admin@example.com"

type server struct {
	*httptest.Server
	hub   *realtime.Hub
	store *storage.Memory
}

func newServer(t *testing.T) *server {
	t.Helper()
	config.Set(config.AppConfig{
		JWTSecret:          "test-secret",
		TokenTTLHours:      1,
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		RateLimitPerMinute: 60000,
		AdminEmails:        []string{adminEmail},
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	require.NoError(t, config.SeedRoles(db, []string{adminEmail}))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	utils.SetRedis(rc)

	ctx, cancel := context.WithCancel(context.Background())
	st := storage.NewMemory("/static/uploads")
	hub := realtime.NewHub(nil, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(routes.SetupRouter(db, st, hub))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		utils.SetRedis(nil)
		_ = rc.Close()
	})
	return &server{Server: srv, hub: hub, store: st}
}

// signUp registers through the API and returns a logged-in client.
func (s *server) signUp(t *testing.T, email, name string) *client.Client {
	t.Helper()
	_, err := client.New(s.URL, client.WithHTTPClient(s.Client())).Register(context.Background(), email, name, "secret-pass")
	require.NoError(t, err)

	c := client.New(s.URL, client.WithHTTPClient(s.Client()))
	_, err = c.Login(context.Background(), email, "secret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c
}

func TestRemoteListingAndSubmission(t *testing.T) {
	s := newServer(t)
	admin := s.signUp(t, adminEmail, "Site Admin")
	ctx := context.Background()

	posts := listing.New[models.Post](admin.Posts(), 5)
	st, err := posts.Select(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusEmpty, st.Status)

	draft := upload.NewDraft(admin.Storage(""), upload.WithPolicy(upload.Policy{MaxSize: 1 << 20, Accept: []string{"image/*"}}))
	form := submission.New(admin.Posts(), draft, submission.WithTitle())
	form.OnCreated(func(submission.Event) { _, _ = posts.Refresh(ctx) })
	form.SetTitle("Hello")
	form.SetBody("World")
	require.NoError(t, form.Attach(ctx, upload.FileFromBytes("hi.png", "image/png", []byte("\x89PNG\r\n\x1a\nbody"))))

	id, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, 1, s.store.Uploads())

	st = posts.State()
	require.Equal(t, listing.StatusReady, st.Status)
	require.Len(t, st.Records, 1)
	assert.Equal(t, "Hello", st.Records[0].Title)
	require.NotNil(t, st.Records[0].ImageURL)
	assert.True(t, strings.HasPrefix(*st.Records[0].ImageURL, "/static/uploads/"))

	got, err := admin.Posts().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "World", got.Body)
}

func TestRemoteComments(t *testing.T) {
	s := newServer(t)
	admin := s.signUp(t, adminEmail, "Site Admin")
	reader := s.signUp(t, "reader@example.com", "Reader")
	ctx := context.Background()

	postID, err := admin.Posts().Write(ctx, submission.Values{Title: "P", Body: "B"})
	require.NoError(t, err)

	for i := 1; i <= 12; i++ {
		_, err := reader.Comments(postID).Write(ctx, submission.Values{Body: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
	}

	page, err := reader.Comments(postID).FetchPage(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, 2, page.LastPage)
	assert.EqualValues(t, 12, page.Total)
	assert.Equal(t, "c1", page.Records[1].Body)
}

func TestRemoteErrorsMapToDomainErrors(t *testing.T) {
	s := newServer(t)
	user := s.signUp(t, "user@example.com", "User")
	ctx := context.Background()

	_, err := user.Posts().Get(ctx, 999)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	_, err = user.Posts().Write(ctx, submission.Values{Title: "t", Body: "b"})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, 40301, apiErr.Code)

	remote := user.Storage("")
	body := []byte("\x89PNG\r\n\x1a\n")
	path, err := remote.Upload(ctx, "avatars/u.png", strings.NewReader(string(body)), int64(len(body)), storage.PutOptions{ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "avatars/u.png", path)
	assert.Equal(t, "/static/uploads/avatars/u.png", remote.PublicURL(path))

	_, err = remote.Upload(ctx, "avatars/u.png", strings.NewReader(string(body)), int64(len(body)), storage.PutOptions{ContentType: "image/png"})
	require.Error(t, err)
	assert.True(t, storage.IsDuplicate(err))

	_, err = remote.Upload(ctx, "../x.png", strings.NewReader("x"), 1, storage.PutOptions{ContentType: "image/png"})
	assert.True(t, errors.Is(err, storage.ErrInvalidKey))
}

func TestWatchReceivesEvents(t *testing.T) {
	s := newServer(t)
	admin := s.signUp(t, adminEmail, "Site Admin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan realtime.Event, 4)
	done := make(chan error, 1)
	go func() { done <- admin.Watch(ctx, func(ev realtime.Event) { events <- ev }) }()
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	id, err := admin.Posts().Write(context.Background(), submission.Values{Title: "Live", Body: "now"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventCreated, ev.Type)
		assert.Equal(t, "posts", ev.Collection)
		assert.Equal(t, id, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
