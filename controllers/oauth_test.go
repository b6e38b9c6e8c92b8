package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	return db
}

// fakeProvider serves a token endpoint and a profile endpoint.
func fakeProvider(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "77", "name": "Octo Cat", "email": email})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	oauthProviders["fake"] = oauthProvider{
		endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/authorize",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes:      []string{"profile"},
		credentials: func(config.AppConfig) (string, string) { return "client", "secret" },
		profile: func(ctx context.Context, hc *http.Client) (*oauthProfile, error) {
			var u struct{ ID, Name, Email string }
			if err := getJSON(ctx, hc, srv.URL+"/user", &u); err != nil {
				return nil, err
			}
			return &oauthProfile{ID: u.ID, Name: u.Name, Email: u.Email}, nil
		},
	}
	t.Cleanup(func() { delete(oauthProviders, "fake") })
	return srv
}

func TestOAuthFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret", TokenTTLHours: 1, AdminEmails: []string{"octo@example.com"}})
	utils.SetRedis(nil)
	db := openTestDB(t)
	fakeProvider(t, "octo@example.com")

	a := NewAuthController(db)
	r := gin.New()
	r.GET("/oauth/:provider/login", a.OAuthRedirect)
	r.GET("/oauth/:provider/callback", a.OAuthCallback)

	get := func(path string) (int, envelope) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return w.Code, env
	}
	login := func() string {
		code, env := get("/oauth/fake/login")
		require.Equal(t, http.StatusOK, code)
		var out struct {
			URL   string `json:"authorization_url"`
			State string `json:"state"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		u, err := url.Parse(out.URL)
		require.NoError(t, err)
		assert.Equal(t, out.State, u.Query().Get("state"))
		assert.Equal(t, "http://localhost:8080/api/v1/auth/oauth/fake/callback", u.Query().Get("redirect_uri"))
		return out.State
	}

	state := login()
	code, env := get("/oauth/fake/callback?code=good-code&state=" + state)
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
			IsAdmin  bool   `json:"is_admin"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "Octo Cat", out.User.Username)
	assert.True(t, out.User.IsAdmin)

	// A replayed state is refused before the code is exchanged.
	code, env = get("/oauth/fake/callback?code=good-code&state=" + state)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40006, env.Code)

	// Signing in again links to the same account.
	code, env = get("/oauth/fake/callback?code=good-code&state=" + login())
	require.Equal(t, http.StatusOK, code)
	var again struct {
		User struct{ ID uint } `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, out.User.ID, again.User.ID)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, users)

	code, env = get("/oauth/fake/callback?code=bad-code&state=" + login())
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40007, env.Code)
}

func TestOAuthUnknownOrUnconfiguredProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	a := NewAuthController(openTestDB(t))
	r := gin.New()
	r.GET("/oauth/:provider/login", a.OAuthRedirect)

	for _, p := range []string{"myspace", "github"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/"+p+"/login", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, p)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, 40004, env.Code)
	}
}

func TestUniqueUsername(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	db := openTestDB(t)
	a := NewAuthController(db)
	require.NoError(t, db.Create(&models.User{Username: "sam", Email: "a@example.com"}).Error)
	require.NoError(t, db.Create(&models.User{Username: "sam_1", Email: "b@example.com"}).Error)

	assert.Equal(t, "sam_2", a.uniqueUsername("sam"))
	assert.Equal(t, "dana", a.uniqueUsername(" <b>dana</b> "))
}

func TestRegistrationNormalize(t *testing.T) {
	cases := []struct {
		req   registration
		field string
	}{
		{registration{Email: "not-an-email", DisplayName: "Al", Password: "secret1", ConfirmPassword: "secret1"}, "email"},
		{registration{Email: "Al <al@example.com>", DisplayName: "Al", Password: "secret1", ConfirmPassword: "secret1"}, "email"},
		{registration{Email: "al@example.com", DisplayName: "A", Password: "secret1", ConfirmPassword: "secret1"}, "display_name"},
		{registration{Email: "al@example.com", DisplayName: "Al", Password: "secret1", ConfirmPassword: "secret2"}, "confirm_password"},
		{registration{Email: "al@example.com", DisplayName: "Al", Password: "short", ConfirmPassword: "short"}, "password"},
	}
	for _, c := range cases {
		verr := c.req.normalize()
		require.NotNil(t, verr, c.field)
		assert.Equal(t, c.field, verr.Field)
	}

	ok := registration{Email: " AL@Example.com ", DisplayName: " <i>Al</i> ", Password: "secret1", ConfirmPassword: "secret1"}
	assert.Nil(t, ok.normalize())
	assert.Equal(t, "al@example.com", ok.Email)
	assert.Equal(t, "Al", ok.DisplayName)
}
